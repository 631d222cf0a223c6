package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-dialog-export/internal/cache"
	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/pkg/config"
)

// stubProcessor - мок-реализация DialogProcessor
type stubProcessor struct {
	calls  atomic.Int32
	result *domain.DialogExportResult
	err    error
}

func (p *stubProcessor) ExportDialog(ctx context.Context, dlgType string, id int64) (*domain.DialogExportResult, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func newTestServer(t *testing.T, processor DialogProcessor) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Server.CacheTTLMinutes = 60

	srv, err := New(cfg, processor, NewTaskStore(), cache.NewCacheStore())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// startExport ставит задачу экспорта и возвращает ее идентификатор.
func startExport(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()

	resp, err := http.Post(ts.URL+"/api/v1/export", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created["task_id"])
	return created["task_id"]
}

// waitForStatus опрашивает задачу, пока она не перейдет в терминальный статус.
func waitForStatus(t *testing.T, ts *httptest.Server, taskID string, want TaskStatus) map[string]any {
	t.Helper()

	var status map[string]any
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s", ts.URL, taskID))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status["status"] == string(want)
	}, 3*time.Second, 10*time.Millisecond)
	return status
}

func TestServer(t *testing.T) {
	t.Run("Проверка работоспособности отвечает ok", func(t *testing.T) {
		ts := newTestServer(t, &stubProcessor{})

		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Экспорт проходит полный цикл до результата", func(t *testing.T) {
		processor := &stubProcessor{result: &domain.DialogExportResult{
			Messages: []*domain.Message{{Date: 1, Text: "привет"}},
		}}
		ts := newTestServer(t, processor)

		taskID := startExport(t, ts, `{"type":"user","id":7}`)
		waitForStatus(t, ts, taskID, TaskStatusCompleted)

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s/result", ts.URL, taskID))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result domain.DialogExportResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.Len(t, result.Messages, 1)
		assert.Equal(t, "привет", result.Messages[0].Text)
	})

	t.Run("Повторный экспорт того же диалога обслуживается из кэша", func(t *testing.T) {
		processor := &stubProcessor{result: &domain.DialogExportResult{}}
		ts := newTestServer(t, processor)

		first := startExport(t, ts, `{"type":"user","id":7}`)
		waitForStatus(t, ts, first, TaskStatusCompleted)

		second := startExport(t, ts, `{"type":"user","id":7}`)
		waitForStatus(t, ts, second, TaskStatusCompleted)

		assert.EqualValues(t, 1, processor.calls.Load())
	})

	t.Run("Ошибка экспорта переводит задачу в failed с сообщением", func(t *testing.T) {
		processor := &stubProcessor{err: fmt.Errorf("токен недействителен")}
		ts := newTestServer(t, processor)

		taskID := startExport(t, ts, `{"type":"user","id":7}`)
		status := waitForStatus(t, ts, taskID, TaskStatusFailed)
		assert.Equal(t, "токен недействителен", status["error_message"])

		// Результат незавершенной задачи недоступен.
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s/result", ts.URL, taskID))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Неверный запрос на экспорт отклоняется", func(t *testing.T) {
		ts := newTestServer(t, &stubProcessor{})

		tests := []struct {
			name string
			body string
		}{
			{"Неизвестный тип диалога", `{"type":"channel","id":7}`},
			{"Нулевой идентификатор", `{"type":"user","id":0}`},
			{"Невалидный JSON", `{`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := http.Post(ts.URL+"/api/v1/export", "application/json", strings.NewReader(tt.body))
				require.NoError(t, err)
				defer resp.Body.Close()
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})
		}
	})

	t.Run("Статус несуществующей задачи - 404", func(t *testing.T) {
		ts := newTestServer(t, &stubProcessor{})

		resp, err := http.Get(ts.URL + "/api/v1/tasks/ghost")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
