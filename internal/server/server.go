package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"vk-dialog-export/internal/cache"
	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/pkg/config"
)

// taskTTL — срок жизни записи о задаче экспорта.
const taskTTL = 24 * time.Hour

// DialogProcessor определяет интерфейс для варианта использования, который экспортирует диалоги.
type DialogProcessor interface {
	ExportDialog(ctx context.Context, dlgType string, id int64) (*domain.DialogExportResult, error)
}

// exportRequest — тело запроса на экспорт диалога.
type exportRequest struct {
	Type string `json:"type"` // user, chat, group
	ID   int64  `json:"id"`
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	processor  DialogProcessor
}

// New создает новый экземпляр Server
func New(cfg *config.Config, processor DialogProcessor, taskStore *TaskStore, cacheStore *cache.CacheStore) (*Server, error) {
	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		// Конечная точка для запуска задачи экспорта диалога
		r.Post("/export", func(w http.ResponseWriter, r *http.Request) {
			var req exportRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
				return
			}

			switch req.Type {
			case "user", "chat", "group":
				// all good
			default:
				http.Error(w, "Поле type должно быть одним из: user, chat, group", http.StatusBadRequest)
				return
			}
			if req.ID == 0 {
				http.Error(w, "Требуется идентификатор диалога", http.StatusBadRequest)
				return
			}

			// Генерация уникального идентификатора задачи
			taskID := uuid.NewString()
			taskStore.CreateTask(taskID, taskTTL)

			cacheKey := fmt.Sprintf("%s:%d", req.Type, req.ID)

			// Запуск экспорта в горутине
			go func() {
				taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

				// Повторный запрос того же диалога обслуживается из кэша результатов.
				if cachedItem, found := cacheStore.Get(cacheKey); found {
					taskStore.UpdateTaskResult(taskID, cachedItem.Data)
					slog.Info("Попадание в кэш результатов", "dialog", cacheKey, "task_id", taskID)
					return
				}

				// Контекст задачи с таймаутом из конфигурации.
				taskCtx := context.Background()
				if cfg.Server.TaskTimeoutSeconds > 0 {
					var cancel context.CancelFunc
					taskCtx, cancel = context.WithTimeout(taskCtx, time.Duration(cfg.Server.TaskTimeoutSeconds)*time.Second)
					defer cancel()
				}

				result, err := processor.ExportDialog(taskCtx, req.Type, req.ID)
				if err != nil {
					taskStore.UpdateTaskError(taskID, err.Error())
					slog.Error("Экспорт диалога завершился с ошибкой", "dialog", cacheKey, "task_id", taskID, "error", err)
					return
				}

				taskStore.UpdateTaskResult(taskID, result)
				cacheStore.Put(cacheKey, result, time.Duration(cfg.Server.CacheTTLMinutes)*time.Minute)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
		})

		// Конечная точка для проверки статуса задачи
		r.Get("/tasks/{taskID}", func(w http.ResponseWriter, r *http.Request) {
			taskID := chi.URLParam(r, "taskID")

			task, err := taskStore.GetTask(taskID)
			if err != nil {
				http.Error(w, "Задача не найдена", http.StatusNotFound)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task_id":       task.ID,
				"status":        task.Status,
				"error_message": task.ErrorMessage,
			})
		})

		// Конечная точка для получения результата задачи
		r.Get("/tasks/{taskID}/result", func(w http.ResponseWriter, r *http.Request) {
			taskID := chi.URLParam(r, "taskID")

			task, err := taskStore.GetTask(taskID)
			if err != nil {
				http.Error(w, "Задача не найдена", http.StatusNotFound)
				return
			}

			if task.Status != TaskStatusCompleted {
				http.Error(w, "Задача не завершена", http.StatusBadRequest)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(task.Result)
		})
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s := &Server{
		HTTPServer: httpServer,
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		processor:  processor,
	}

	return s, nil
}

// Router возвращает обработчик HTTP-запросов сервера.
func (s *Server) Router() http.Handler {
	return s.HTTPServer.Handler
}

// StartCleanup запускает фоновую очистку просроченных задач и результатов.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	s.taskStore.StartCleanupTicker(ctx, interval)
	s.cacheStore.StartCleanupTicker(ctx, interval)
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
