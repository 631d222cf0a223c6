package render

import (
	"encoding/json"
	"fmt"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/ports"
)

// JSONRenderer сериализует результат экспорта в JSON-документ.
type JSONRenderer struct{}

// NewJSONRenderer создает новый экземпляр JSONRenderer.
func NewJSONRenderer() ports.Renderer {
	return &JSONRenderer{}
}

// Extension возвращает расширение выходного файла.
func (r *JSONRenderer) Extension() string {
	return "json"
}

// Render сериализует дерево экспорта с отступами.
func (r *JSONRenderer) Render(res *domain.DialogExportResult) ([]byte, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("не удалось сериализовать результат экспорта: %w", err)
	}
	return data, nil
}
