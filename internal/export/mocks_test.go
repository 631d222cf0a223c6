package export

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
)

// fakeCaller - мок-реализация ports.Caller для тестирования
type fakeCaller struct {
	mu      sync.Mutex
	calls   []string
	handler func(method string, params url.Values) (json.RawMessage, error)
}

// Call реализует интерфейс ports.Caller
func (f *fakeCaller) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(method, params)
	}
	return nil, nil
}

// countCalls возвращает количество вызовов заданного метода
func (f *fakeCaller) countCalls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

// recorderProgress - мок-реализация ports.Progress, записывающая уведомления
type recorderProgress struct {
	updates [][2]int
	steps   []string
	errors  []string
}

func (r *recorderProgress) NextStage() {}

func (r *recorderProgress) Update(step, total int) {
	r.updates = append(r.updates, [2]int{step, total})
}

func (r *recorderProgress) StepMessage(msg string) {
	r.steps = append(r.steps, msg)
}

func (r *recorderProgress) ClearStepMessage() {}

func (r *recorderProgress) Error(msg string) {
	r.errors = append(r.errors, msg)
}
