package export

import (
	"encoding/json"
	"strconv"
	"strings"
)

// largestSizedURL находит в сыром объекте вложения поле с наибольшим числовым
// суффиксом из семейства размерных полей (photo_75, photo_130, photo_604, ...)
// и возвращает его значение. Пустая строка означает, что подходящих полей нет.
func largestSizedURL(payload json.RawMessage, prefix string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}

	best := -1
	var bestURL string
	for key, raw := range fields {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		size, err := strconv.Atoi(key[len(prefix):])
		if err != nil || size <= best {
			continue
		}
		var u string
		if err := json.Unmarshal(raw, &u); err != nil {
			continue
		}
		best = size
		bestURL = u
	}
	return bestURL
}
