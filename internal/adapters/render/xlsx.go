package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/ports"
)

const (
	messagesSheet     = "Сообщения"
	participantsSheet = "Участники"
)

// XLSXRenderer выгружает результат экспорта в книгу Excel: лист сообщений
// и лист участников. Вложения представлены сводкой по типам, сами файлы
// остаются в каталоге вложений.
type XLSXRenderer struct{}

// NewXLSXRenderer создает новый экземпляр XLSXRenderer.
func NewXLSXRenderer() ports.Renderer {
	return &XLSXRenderer{}
}

// Extension возвращает расширение выходного файла.
func (r *XLSXRenderer) Extension() string {
	return "xlsx"
}

// Render строит книгу с двумя листами и возвращает ее содержимое.
func (r *XLSXRenderer) Render(res *domain.DialogExportResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := r.writeMessages(f, res); err != nil {
		return nil, err
	}
	if err := r.writeParticipants(f, res); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("не удалось записать книгу: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *XLSXRenderer) writeMessages(f *excelize.File, res *domain.DialogExportResult) error {
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, messagesSheet); err != nil {
		return fmt.Errorf("не удалось переименовать лист: %w", err)
	}

	headers := []string{"Дата", "Отправитель", "Текст", "Вложения", "Переслано"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(messagesSheet, cell, h); err != nil {
			return fmt.Errorf("не удалось записать заголовок: %w", err)
		}
	}

	for i, msg := range res.Messages {
		row := i + 2
		values := []any{
			time.Unix(msg.Date, 0).Format("2006-01-02 15:04:05"),
			r.senderName(res, msg.Sender.ID),
			msg.Text,
			attachmentsSummary(msg.Attachments),
			len(msg.Forwarded),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(messagesSheet, cell, v); err != nil {
				return fmt.Errorf("не удалось записать строку %d: %w", row, err)
			}
		}
	}
	return nil
}

func (r *XLSXRenderer) writeParticipants(f *excelize.File, res *domain.DialogExportResult) error {
	if _, err := f.NewSheet(participantsSheet); err != nil {
		return fmt.Errorf("не удалось создать лист участников: %w", err)
	}

	headers := []string{"ID", "Имя", "Ссылка", "Аватар"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(participantsSheet, cell, h); err != nil {
			return fmt.Errorf("не удалось записать заголовок: %w", err)
		}
	}

	// Карта обходится в порядке идентификаторов, чтобы книга была воспроизводимой.
	ids := make([]int64, 0, len(res.Users))
	for id := range res.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i, id := range ids {
		entity := res.Users[id]
		avatar := ""
		if entity.Avatar != nil {
			avatar = *entity.Avatar
		}
		values := []any{entity.ID, entity.Name, entity.Link, avatar}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(participantsSheet, cell, v); err != nil {
				return fmt.Errorf("не удалось записать участника %d: %w", id, err)
			}
		}
	}
	return nil
}

func (r *XLSXRenderer) senderName(res *domain.DialogExportResult, id int64) string {
	if entity, ok := res.Users[id]; ok {
		return entity.Name
	}
	return fmt.Sprintf("id%d", id)
}

// attachmentsSummary сводит вложения сообщения в строку вида "photo x2, doc".
func attachmentsSummary(atts []domain.Attachment) string {
	if len(atts) == 0 {
		return ""
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(atts))
	for _, att := range atts {
		kind := att.Kind()
		if counts[kind] == 0 {
			order = append(order, kind)
		}
		counts[kind]++
	}

	summary := ""
	for i, kind := range order {
		if i > 0 {
			summary += ", "
		}
		summary += kind
		if counts[kind] > 1 {
			summary += fmt.Sprintf(" x%d", counts[kind])
		}
	}
	return summary
}
