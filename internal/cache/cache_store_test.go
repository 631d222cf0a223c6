package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-dialog-export/internal/domain"
)

func TestCacheStore(t *testing.T) {
	result := &domain.DialogExportResult{
		Messages: []*domain.Message{{Date: 1, Text: "привет"}},
	}

	t.Run("Сохраненный результат извлекается до истечения срока", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("user:7", result, time.Minute)

		item, ok := cs.Get("user:7")
		require.True(t, ok)
		assert.Same(t, result, item.Data)
	})

	t.Run("Отсутствующий ключ не находится", func(t *testing.T) {
		cs := NewCacheStore()

		_, ok := cs.Get("user:404")
		assert.False(t, ok)
	})

	t.Run("Просроченный элемент не извлекается", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("user:7", result, -time.Second)

		_, ok := cs.Get("user:7")
		assert.False(t, ok)
	})

	t.Run("CleanupExpired удаляет только просроченные элементы", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("user:7", result, -time.Second)
		cs.Put("chat:5", result, time.Minute)

		cs.CleanupExpired()

		_, ok := cs.Get("user:7")
		assert.False(t, ok)
		_, ok = cs.Get("chat:5")
		assert.True(t, ok)
	})

	t.Run("Повторная запись обновляет срок действия", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("user:7", result, -time.Second)
		cs.Put("user:7", result, time.Minute)

		_, ok := cs.Get("user:7")
		assert.True(t, ok)
	})
}
