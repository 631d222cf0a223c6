package export

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-dialog-export/internal/domain"
)

// fileServer считает запросы и запоминает запрошенные пути.
type fileServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()

	fs := &fileServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.paths = append(fs.paths, r.URL.Path)
		fs.mu.Unlock()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("file-bytes"))
	}))
	t.Cleanup(fs.Server.Close)
	return fs
}

func (fs *fileServer) requested() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.paths...)
}

// exportSingle прогоняет экспорт одной страницы с одним сообщением и
// возвращает его вложения.
func exportSingle(t *testing.T, messageJSON string, opts Options, reporter *recorderProgress) []domain.Attachment {
	t.Helper()

	api := historyScript(t, fmt.Sprintf(`{"count":1,"items":[%s]}`, messageJSON))
	optFns := []Option{}
	if reporter != nil {
		optFns = append(optFns, WithProgress(reporter))
	}
	exporter := NewDialogExporter(api, DialogUser, 7, t.TempDir(), opts, optFns...)

	result, err := exporter.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	return result.Messages[0].Attachments
}

func TestDialogExporter_Photo(t *testing.T) {
	t.Run("Скачивается самый крупный размерный вариант", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"photo","photo":{"id":100,"owner_id":7,"text":"закат","width":604,"height":340,"photo_75":"%s/75.jpg","photo_604":"%s/604.jpg","photo_130":"%s/130.jpg"}}]}`,
			fs.URL, fs.URL, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		require.Len(t, atts, 1)

		photo, ok := atts[0].(domain.Photo)
		require.True(t, ok)
		assert.Equal(t, "photo", photo.Kind())
		assert.Equal(t, fs.URL+"/604.jpg", photo.URL)
		assert.Equal(t, "закат", photo.Description)
		require.NotNil(t, photo.Filename)
		assert.Equal(t, "7/100.jpg", *photo.Filename)

		assert.Equal(t, []string{"/604.jpg"}, fs.requested())
	})
}

func TestDialogExporter_UnknownAttachment(t *testing.T) {
	t.Run("Нераспознанный тип сохраняет тег и не мешает остальным вложениям", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"money_transfer","money_transfer":{"amount":100}},{"type":"photo","photo":{"id":5,"photo_130":"%s/130.jpg"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		require.Len(t, atts, 2)

		unknown, ok := atts[0].(domain.Unknown)
		require.True(t, ok)
		assert.Equal(t, "money_transfer", unknown.Kind())

		_, ok = atts[1].(domain.Photo)
		assert.True(t, ok)
	})
}

func TestDialogExporter_Audio(t *testing.T) {
	t.Run("При выключенной политике аудио не скачивается, но запись остается", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"audio","audio":{"id":3,"artist":"Кино","title":"Спокойная ночь","duration":370,"url":"%s/3.mp3"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{Audio: false}, nil)
		require.Len(t, atts, 1)

		audio, ok := atts[0].(domain.Audio)
		require.True(t, ok)
		assert.Equal(t, "Кино", audio.Artist)
		assert.Nil(t, audio.Filename)
		assert.Empty(t, fs.requested(), "выключенная политика не должна порождать сетевых обращений")
	})

	t.Run("При включенной политике аудио скачивается под именем id.mp3", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"audio","audio":{"id":3,"artist":"Кино","title":"Спокойная ночь","url":"%s/3.mp3"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{Audio: true, AudioDepth: 100}, nil)
		require.Len(t, atts, 1)

		audio := atts[0].(domain.Audio)
		require.NotNil(t, audio.Filename)
		assert.Equal(t, "7/3.mp3", *audio.Filename)
		assert.Equal(t, []string{"/3.mp3"}, fs.requested())
	})

	t.Run("Недоступное аудио дает одну ошибку прогресса и ни одной попытки", func(t *testing.T) {
		fs := newFileServer(t)
		reporter := &recorderProgress{}
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"audio","audio":{"id":3,"artist":"Кино","title":"Спокойная ночь","url":"%s/audio_api_unavailable.mp3"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{Audio: true, AudioDepth: 100}, reporter)
		require.Len(t, atts, 1)

		audio := atts[0].(domain.Audio)
		assert.Nil(t, audio.Filename)
		assert.Empty(t, fs.requested())
		require.Len(t, reporter.errors, 1)
		assert.Contains(t, reporter.errors[0], "Кино - Спокойная ночь")
	})

	t.Run("Глубина репоста выше предела отключает скачивание", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":{"id":1,"from_id":7,"post_type":"post","attachments":[{"type":"audio","audio":{"id":3,"url":"%s/3.mp3"}}]}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{Audio: true, AudioDepth: 0}, nil)
		require.Len(t, atts, 1)

		post := atts[0].(*domain.Post)
		require.Len(t, post.Attachments, 1)
		audio := post.Attachments[0].(domain.Audio)
		assert.Nil(t, audio.Filename, "аудио на глубине 1 при пределе 0 не скачивается")
		assert.Empty(t, fs.requested())
	})
}

func TestDialogExporter_Doc(t *testing.T) {
	t.Run("Документ скачивается только при включенной политике", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":9,"title":"отчет","size":2048,"ext":"pdf","url":"%s/9.pdf"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		doc := atts[0].(domain.Doc)
		assert.Nil(t, doc.Filename)
		assert.Empty(t, fs.requested())

		atts = exportSingle(t, msg, Options{Docs: true, DocsDepth: 100}, nil)
		doc = atts[0].(domain.Doc)
		require.NotNil(t, doc.Filename)
		assert.Equal(t, "7/9.pdf", *doc.Filename)
	})

	t.Run("Документ без расширения получает суффикс unknown", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":9,"title":"без имени","url":"%s/9"}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{Docs: true, DocsDepth: 100}, nil)
		doc := atts[0].(domain.Doc)
		require.NotNil(t, doc.Filename)
		assert.Equal(t, "7/9.unknown", *doc.Filename)
	})

	t.Run("Документ без URL дает ошибку прогресса вместо попытки", func(t *testing.T) {
		reporter := &recorderProgress{}
		msg := `{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":9,"title":"удаленный"}}]}`

		atts := exportSingle(t, msg, Options{Docs: true, DocsDepth: 100}, reporter)
		doc := atts[0].(domain.Doc)
		assert.Nil(t, doc.Filename)
		require.Len(t, reporter.errors, 1)
		assert.Contains(t, reporter.errors[0], "удаленный")
	})
}

func TestDialogExporter_Voice(t *testing.T) {
	t.Run("Голосовое сообщение предпочитает mp3 и скачивается по умолчанию", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":4,"owner_id":7,"ext":"mp3","preview":{"audio_msg":{"duration":13,"link_mp3":"%s/4.mp3","link_ogg":"%s/4.ogg"}}}}]}`,
			fs.URL, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		require.Len(t, atts, 1)

		voice, ok := atts[0].(domain.Voice)
		require.True(t, ok)
		assert.Equal(t, 13, voice.Duration)
		require.NotNil(t, voice.Filename)
		assert.Equal(t, "7/4.mp3", *voice.Filename)
		assert.Equal(t, []string{"/4.mp3"}, fs.requested())
	})

	t.Run("Без mp3 используется запасная ссылка ogg", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":4,"ext":"ogg","preview":{"audio_msg":{"duration":13,"link_ogg":"%s/4.ogg"}}}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		voice := atts[0].(domain.Voice)
		require.NotNil(t, voice.Filename)
		assert.Equal(t, "7/4.ogg", *voice.Filename)
	})

	t.Run("Флаг no-voice отключает скачивание", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"doc","doc":{"id":4,"preview":{"audio_msg":{"link_mp3":"%s/4.mp3"}}}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{NoVoice: true}, nil)
		voice := atts[0].(domain.Voice)
		assert.Nil(t, voice.Filename)
		assert.Empty(t, fs.requested())
	})
}

func TestDialogExporter_StickerLinkGift(t *testing.T) {
	t.Run("Стикер скачивается в самом крупном варианте", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"sticker","sticker":{"sticker_id":55,"images":[{"url":"%s/64.png","width":64},{"url":"%s/512.png","width":512},{"url":"%s/128.png","width":128}]}}]}`,
			fs.URL, fs.URL, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		sticker := atts[0].(domain.Sticker)
		assert.Equal(t, fs.URL+"/512.png", sticker.URL)
		require.NotNil(t, sticker.Filename)
		assert.Equal(t, []string{"/512.png"}, fs.requested())
	})

	t.Run("Превью ссылки скачивается при наличии фотографии", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"link","link":{"url":"https://example.com","title":"Статья","photo":{"id":77,"photo_130":"%s/130.jpg"}}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		link := atts[0].(domain.Link)
		assert.Equal(t, "https://example.com", link.URL)
		assert.Equal(t, "Статья", link.Title)
		require.NotNil(t, link.Filename)
		assert.Equal(t, []string{"/130.jpg"}, fs.requested())
	})

	t.Run("Подарок скачивает миниатюру из полей thumb_N", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"gift","gift":{"id":12,"thumb_48":"%s/48.jpg","thumb_256":"%s/256.jpg"}}]}`,
			fs.URL, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		gift := atts[0].(domain.Gift)
		require.NotNil(t, gift.Thumbnail)
		assert.Equal(t, []string{"/256.jpg"}, fs.requested())
	})
}

func TestDialogExporter_Wall(t *testing.T) {
	t.Run("Цепочка репостов обходится рекурсивно", func(t *testing.T) {
		msg := `{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":{
			"id":10,"from_id":7,"to_id":9,"post_type":"post","text":"внешний пост",
			"likes":{"count":3},"reposts":{"count":1},
			"copy_history":[{
				"id":11,"from_id":-5,"post_type":"post","text":"репост",
				"copy_history":[{"id":12,"from_id":7,"post_type":"post","text":"исходный пост"}]
			}]
		}}]}`

		atts := exportSingle(t, msg, Options{}, nil)
		require.Len(t, atts, 1)

		post, ok := atts[0].(*domain.Post)
		require.True(t, ok)
		assert.Equal(t, "внешний пост", post.Text)
		assert.Equal(t, "https://vk.com/wall7_10", post.URL)
		assert.Equal(t, 3, post.Likes)
		assert.JSONEq(t, `{"type":"api","platform":"unknown"}`, string(post.Source))

		require.Len(t, post.Repost, 1)
		assert.Equal(t, "репост", post.Repost[0].Text)
		assert.EqualValues(t, -5, post.Repost[0].FromID)

		require.Len(t, post.Repost[0].Repost, 1)
		assert.Equal(t, "исходный пост", post.Repost[0].Repost[0].Text)
	})

	t.Run("Авторы записи и репостов попадают в кэш сущностей", func(t *testing.T) {
		api := historyScript(t, `{"count":1,"items":[{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":{"id":10,"from_id":-5,"to_id":9,"post_type":"post"}}]}]}`)
		exporter := NewDialogExporter(api, DialogUser, 7, t.TempDir(), Options{})

		result, err := exporter.Export(context.Background())
		require.NoError(t, err)

		assert.Contains(t, result.Users, int64(7))
		assert.Contains(t, result.Users, int64(-5))
		assert.Contains(t, result.Users, int64(9))
		assert.Equal(t, 1, api.countCalls("groups.getById"))
	})

	t.Run("Цепочка репостов глубже потолка обрезается ровно с одной ошибкой", func(t *testing.T) {
		inner := `{"id":1,"from_id":7,"post_type":"post","text":"дно"}`
		for i := 0; i < maxRecursionDepth+50; i++ {
			inner = fmt.Sprintf(`{"id":1,"from_id":7,"post_type":"post","copy_history":[%s]}`, inner)
		}
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":%s}]}`, inner)

		reporter := &recorderProgress{}
		atts := exportSingle(t, msg, Options{}, reporter)
		require.Len(t, atts, 1)

		depth := 0
		for post := atts[0].(*domain.Post); len(post.Repost) > 0; post = post.Repost[0] {
			depth++
		}
		assert.Equal(t, maxRecursionDepth, depth)

		require.Len(t, reporter.errors, 1)
		assert.Contains(t, reporter.errors[0], "Repost chain is nested deeper than 128 levels")
	})

	t.Run("Неподдерживаемый подтип репоста дает ровно одну ошибку и пропускается", func(t *testing.T) {
		reporter := &recorderProgress{}
		msg := `{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":{
			"id":10,"from_id":7,"post_type":"post",
			"copy_history":[{"id":11,"from_id":7,"post_type":"reply","text":"комментарий"}]
		}}]}`

		atts := exportSingle(t, msg, Options{}, reporter)
		post := atts[0].(*domain.Post)
		assert.Empty(t, post.Repost)
		require.Len(t, reporter.errors, 1)
		assert.Equal(t, "No handler for post type: reply", reporter.errors[0])
	})

	t.Run("Вложения записи разбираются на следующем уровне глубины", func(t *testing.T) {
		fs := newFileServer(t)
		msg := fmt.Sprintf(`{"date":1,"from_id":7,"attachments":[{"type":"wall","wall":{"id":10,"from_id":7,"post_type":"post","attachments":[{"type":"photo","photo":{"id":100,"photo_604":"%s/604.jpg"}}]}}]}`, fs.URL)

		atts := exportSingle(t, msg, Options{}, nil)
		post := atts[0].(*domain.Post)
		require.Len(t, post.Attachments, 1)

		photo := post.Attachments[0].(domain.Photo)
		require.NotNil(t, photo.Filename, "фотографии скачиваются на любой глубине")
	})
}
