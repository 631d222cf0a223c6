package ports

import (
	"context"
	"encoding/json"
	"net/url"

	"vk-dialog-export/internal/domain"
)

// Caller определяет интерфейс для вызова удаленного метода VK API.
// Реализация сама отвечает за транспортные повторы; ошибка уровня API
// возвращается как есть и ядром не повторяется.
type Caller interface {
	// Call вызывает именованный метод с параметрами и возвращает
	// содержимое поля "response" ответа.
	Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error)
}

// Progress определяет интерфейс для отчета о ходе экспорта.
// Все уведомления типа "выстрелил и забыл": ядро никогда не читает
// состояние обратно.
type Progress interface {
	// NextStage переводит отчет на следующий этап (следующий диалог).
	NextStage()
	// Update сообщает о прогрессе текущего этапа.
	Update(step, total int)
	// StepMessage выводит сообщение текущего шага (например, скачиваемый файл).
	StepMessage(msg string)
	// ClearStepMessage убирает сообщение шага.
	ClearStepMessage()
	// Error выводит нефатальную ошибку, не прерывая отображение прогресса.
	Error(msg string)
}

// Renderer определяет интерфейс для сериализации результата экспорта.
type Renderer interface {
	// Extension возвращает расширение выходного файла без точки.
	Extension() string
	// Render сериализует дерево экспорта в байты выходного документа.
	Render(res *domain.DialogExportResult) ([]byte, error)
}
