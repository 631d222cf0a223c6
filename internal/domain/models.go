package domain

import "encoding/json"

// Известные типы вложений. Любой другой тип экспортируется как Unknown.
const (
	KindPhoto   = "photo"
	KindVideo   = "video"
	KindAudio   = "audio"
	KindVoice   = "voice"
	KindDoc     = "doc"
	KindSticker = "sticker"
	KindLink    = "link"
	KindGift    = "gift"
	KindPost    = "post"
)

// Entity представляет пользователя или сообщество, на которое ссылается экспорт.
// Отрицательный ID обозначает сообщество/страницу, положительный — человека.
// Создается при первой ссылке и после этого не изменяется.
type Entity struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Link      string `json:"link"`
	// Avatar — относительный путь к скачанной аватарке, nil если она не скачивалась.
	Avatar *string `json:"filename"`
}

// SenderRef — ссылка на отправителя по идентификатору. Сами данные отправителя
// лежат в общей карте пользователей результата экспорта.
type SenderRef struct {
	ID int64 `json:"id"`
}

// Message представляет одно экспортированное сообщение.
// Пересланные сообщения вложены рекурсивно и имеют ту же форму.
type Message struct {
	Date        int64           `json:"date"`
	Text        string          `json:"message"`
	IsImportant bool            `json:"is_important"`
	IsUpdated   bool            `json:"is_updated"`
	UpdatedAt   int64           `json:"updated_at,omitempty"`
	Sender      SenderRef       `json:"sender"`
	Forwarded   []*Message      `json:"forwarded,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Action      string          `json:"action,omitempty"`
	ActionText  string          `json:"action_text,omitempty"`
	ActionMID   int64           `json:"action_mid,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Attachment — закрытое множество вариантов вложения. Каждый вариант несет
// поле Type с тем же значением, что возвращает Kind, чтобы сериализованная
// форма оставалась помеченной.
type Attachment interface {
	Kind() string
}

// Photo — фотография. Filename равен nil, если скачивание не удалось.
type Photo struct {
	Type        string  `json:"type"`
	Filename    *string `json:"filename"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	OwnerID     int64   `json:"owner_id"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Date        int64   `json:"date"`
	ID          int64   `json:"id"`
	AlbumID     int64   `json:"album_id"`
}

func (Photo) Kind() string { return KindPhoto }

// Video — видеозапись. Скачивается только миниатюра.
type Video struct {
	Type              string  `json:"type"`
	Description       string  `json:"description"`
	URL               string  `json:"url"`
	Title             string  `json:"title"`
	Duration          int     `json:"duration"`
	Views             int     `json:"views"`
	Comments          int     `json:"comments"`
	ThumbnailFilename *string `json:"thumbnail_filename"`
	Platform          string  `json:"platform"`
	Date              int64   `json:"date"`
	OwnerID           int64   `json:"owner_id"`
}

func (Video) Kind() string { return KindVideo }

// Audio — аудиозапись.
type Audio struct {
	Type     string  `json:"type"`
	Artist   string  `json:"artist"`
	Title    string  `json:"title"`
	Duration int     `json:"duration"`
	Filename *string `json:"filename"`
	URL      string  `json:"url"`
}

func (Audio) Kind() string { return KindAudio }

// Voice — голосовое сообщение (подтип документа с audio_msg в превью).
type Voice struct {
	Type     string  `json:"type"`
	Filename *string `json:"filename"`
	URL      string  `json:"url"`
	Duration int     `json:"duration"`
	ID       int64   `json:"id"`
	OwnerID  int64   `json:"owner_id"`
	Date     int64   `json:"date"`
}

func (Voice) Kind() string { return KindVoice }

// Doc — прикрепленный документ.
type Doc struct {
	Type     string  `json:"type"`
	Filename *string `json:"filename"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Size     int64   `json:"size"`
	Ext      string  `json:"ext"`
}

func (Doc) Kind() string { return KindDoc }

// Sticker — стикер.
type Sticker struct {
	Type     string  `json:"type"`
	Filename *string `json:"filename"`
	URL      string  `json:"url"`
}

func (Sticker) Kind() string { return KindSticker }

// Link — внешняя ссылка с необязательной картинкой превью.
type Link struct {
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Caption     string  `json:"caption"`
	Description string  `json:"description"`
	Filename    *string `json:"filename"`
}

func (Link) Kind() string { return KindLink }

// Gift — подарок, от него сохраняется только миниатюра.
type Gift struct {
	Type      string  `json:"type"`
	Thumbnail *string `json:"thumbnail"`
}

func (Gift) Kind() string { return KindGift }

// Post — запись со стены (репост). Repost содержит цепочку вложенных
// репостов; глубина ограничена только самой платформой.
type Post struct {
	Type        string          `json:"type"`
	FromID      int64           `json:"from_id"`
	ToID        int64           `json:"to_id"`
	PostType    string          `json:"post_type"`
	Date        int64           `json:"date"`
	Text        string          `json:"text"`
	URL         string          `json:"url"`
	Views       int             `json:"views"`
	Likes       int             `json:"likes"`
	Comments    int             `json:"comments"`
	Reposts     int             `json:"reposts"`
	Source      json.RawMessage `json:"source,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Repost      []*Post         `json:"repost,omitempty"`
}

func (Post) Kind() string { return KindPost }

// Unknown сохраняет только тег типа для нераспознанных вложений.
type Unknown struct {
	Type string `json:"type"`
}

func (u Unknown) Kind() string { return u.Type }

// DialogExportResult — корневой агрегат одного экспорта диалога:
// упорядоченные сообщения плюс все разрешенные пользователи и сообщества.
type DialogExportResult struct {
	Messages []*Message        `json:"messages"`
	Users    map[int64]*Entity `json:"users"`
}
