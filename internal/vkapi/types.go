package vkapi

import (
	"encoding/json"
	"fmt"
)

// History — ответ messages.getHistory. Items остаются сырыми, чтобы
// экспортер мог сохранить исходный ответ по флагу save_raw.
type History struct {
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
}

// Dialogs — ответ messages.getDialogs.
type Dialogs struct {
	Count int          `json:"count"`
	Items []DialogItem `json:"items"`
}

// DialogItem — один элемент списка диалогов.
type DialogItem struct {
	Message Message `json:"message"`
}

// Message — сообщение в том виде, в котором его возвращает VK API.
type Message struct {
	ID          int64             `json:"id"`
	Date        int64             `json:"date"`
	Body        string            `json:"body"`
	FromID      int64             `json:"from_id"`
	UserID      int64             `json:"user_id"`
	ChatID      int64             `json:"chat_id"`
	Important   bool              `json:"important"`
	UpdateTime  int64             `json:"update_time"`
	Fwd         []json.RawMessage `json:"fwd_messages"`
	Attachments []Attachment      `json:"attachments"`
	Action      string            `json:"action"`
	ActionText  string            `json:"action_text"`
	ActionMID   int64             `json:"action_mid"`
}

// Attachment — помеченное вложение. API кладет полезную нагрузку под ключ,
// совпадающий со значением поля "type", поэтому она извлекается при разборе
// и остается сырой до диспетчеризации по типу.
type Attachment struct {
	Type    string
	Payload json.RawMessage
}

// UnmarshalJSON разбирает форму {"type": "photo", "photo": {...}}.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("не удалось разобрать вложение: %w", err)
	}

	rawType, ok := fields["type"]
	if !ok {
		return fmt.Errorf("вложение не содержит поля type")
	}
	if err := json.Unmarshal(rawType, &a.Type); err != nil {
		return fmt.Errorf("не удалось разобрать тип вложения: %w", err)
	}

	a.Payload = fields[a.Type]
	return nil
}

// Photo — полезная нагрузка вложения-фотографии. Семейство размерных полей
// photo_75, photo_130, ... экспортер разбирает отдельно по сырому объекту.
type Photo struct {
	ID      int64  `json:"id"`
	AlbumID int64  `json:"album_id"`
	OwnerID int64  `json:"owner_id"`
	Text    string `json:"text"`
	Date    int64  `json:"date"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Video — полезная нагрузка вложения-видео. Миниатюры лежат в размерных
// полях photo_N.
type Video struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Views       int    `json:"views"`
	Comments    int    `json:"comments"`
	Platform    string `json:"platform"`
	Date        int64  `json:"date"`
}

// Audio — полезная нагрузка вложения-аудиозаписи.
type Audio struct {
	ID       int64  `json:"id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	URL      string `json:"url"`
}

// Doc — полезная нагрузка вложения-документа. Голосовые сообщения приходят
// как документ с audio_msg внутри preview.
type Doc struct {
	ID      int64       `json:"id"`
	OwnerID int64       `json:"owner_id"`
	Title   string      `json:"title"`
	Size    int64       `json:"size"`
	Ext     string      `json:"ext"`
	URL     string      `json:"url"`
	Date    int64       `json:"date"`
	Preview *DocPreview `json:"preview"`
}

// DocPreview — превью документа.
type DocPreview struct {
	AudioMsg *AudioMsg `json:"audio_msg"`
}

// AudioMsg — данные голосового сообщения внутри превью документа.
type AudioMsg struct {
	Duration int    `json:"duration"`
	LinkMP3  string `json:"link_mp3"`
	LinkOGG  string `json:"link_ogg"`
}

// Sticker — полезная нагрузка вложения-стикера.
type Sticker struct {
	StickerID int64          `json:"sticker_id"`
	Images    []StickerImage `json:"images"`
}

// StickerImage — один из вариантов изображения стикера.
type StickerImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Link — полезная нагрузка вложения-ссылки.
type Link struct {
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	Caption     string          `json:"caption"`
	Description string          `json:"description"`
	Photo       json.RawMessage `json:"photo"`
}

// Gift — полезная нагрузка вложения-подарка. Миниатюры лежат в размерных
// полях thumb_N.
type Gift struct {
	ID int64 `json:"id"`
}

// Count — счетчик вида {"count": N}, используемый в записях со стены.
type Count struct {
	Count int `json:"count"`
}

// Wall — запись со стены. CopyHistory хранит цепочку репостов в сыром виде,
// чтобы рекурсия по ней могла проверить post_type до разбора.
type Wall struct {
	ID          int64             `json:"id"`
	FromID      int64             `json:"from_id"`
	ToID        int64             `json:"to_id"`
	PostType    string            `json:"post_type"`
	Date        int64             `json:"date"`
	Text        string            `json:"text"`
	Views       Count             `json:"views"`
	Likes       Count             `json:"likes"`
	Comments    Count             `json:"comments"`
	Reposts     Count             `json:"reposts"`
	PostSource  json.RawMessage   `json:"post_source"`
	Attachments []Attachment      `json:"attachments"`
	CopyHistory []json.RawMessage `json:"copy_history"`
}

// User — профиль пользователя из users.get.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Group — профиль сообщества из groups.getById.
type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}
