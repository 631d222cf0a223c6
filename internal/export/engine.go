package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/ports"
	"vk-dialog-export/internal/vkapi"
)

// pageSize — размер страницы истории сообщений.
const pageSize = 200

// chatPeerOffset — смещение идентификатора беседы в peer_id.
const chatPeerOffset = 2000000000

// DialogType определяет вид экспортируемого диалога.
type DialogType string

const (
	// DialogUser — переписка с человеком.
	DialogUser DialogType = "user"
	// DialogChat — групповая беседа.
	DialogChat DialogType = "chat"
	// DialogGroup — диалог с сообществом/публичной страницей.
	DialogGroup DialogType = "group"
)

// Valid сообщает, известен ли вид диалога.
func (t DialogType) Valid() bool {
	switch t {
	case DialogUser, DialogChat, DialogGroup:
		return true
	}
	return false
}

// Options управляют политиками скачивания и сохранением сырых ответов.
type Options struct {
	// Audio включает скачивание аудиозаписей до глубины AudioDepth включительно.
	Audio      bool
	AudioDepth int
	// Docs включает скачивание документов до глубины DocsDepth включительно.
	Docs      bool
	DocsDepth int
	// NoVoice отключает скачивание голосовых сообщений.
	NoVoice bool
	// SaveRaw сохраняет исходный ответ API внутри каждого сообщения.
	SaveRaw bool
}

// Option — функциональная опция для настройки экспортера диалога.
type Option func(*DialogExporter)

// WithProgress устанавливает отчет о прогрессе.
func WithProgress(p ports.Progress) Option {
	return func(e *DialogExporter) {
		if p != nil {
			e.progress = p
		}
	}
}

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(e *DialogExporter) {
		if l != nil {
			e.log = l
		}
	}
}

// WithExporterHTTPClient устанавливает HTTP-клиент для скачивания файлов.
func WithExporterHTTPClient(hc *http.Client) Option {
	return func(e *DialogExporter) {
		if hc != nil {
			e.httpClient = hc
		}
	}
}

// WithDownloader подменяет загрузчик файлов целиком.
func WithDownloader(d *FileDownloader) Option {
	return func(e *DialogExporter) {
		if d != nil {
			e.downloader = d
		}
	}
}

// DialogExporter постранично обходит историю диалога и преобразует каждое
// сообщение, его пересланные сообщения и вложения в нормализованное дерево
// экспорта. Экспортер однопоточен: страницы обрабатываются последовательно,
// рекурсия — в глубину, поэтому кэш сущностей не требует блокировок.
type DialogExporter struct {
	api        ports.Caller
	dlgType    DialogType
	id         int64
	opts       Options
	httpClient *http.Client
	cache      *EntityCache
	downloader *FileDownloader
	progress   ports.Progress
	log        *slog.Logger
}

// NewDialogExporter создает экспортер одного диалога. Вложения пишутся в
// подкаталог с именем идентификатора диалога внутри outputDir; состояние
// кэша и загрузчика живет ровно один экспорт и между диалогами не делится.
func NewDialogExporter(api ports.Caller, dlgType DialogType, id int64, outputDir string, opts Options, optFns ...Option) *DialogExporter {
	e := &DialogExporter{
		api:        api,
		dlgType:    dlgType,
		id:         id,
		opts:       opts,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		progress:   nopProgress{},
		log:        slog.Default(),
	}
	for _, fn := range optFns {
		fn(e)
	}

	if e.downloader == nil {
		e.downloader = NewFileDownloader(outputDir, strconv.FormatInt(id, 10),
			WithDownloaderHTTPClient(e.httpClient),
			WithDownloaderProgress(e.progress),
			WithDownloaderLogger(e.log),
		)
	}
	if e.cache == nil {
		e.cache = NewEntityCache(api, e.downloader, e.log)
	}
	return e
}

// ID возвращает идентификатор диалога.
func (e *DialogExporter) ID() int64 {
	return e.id
}

// Export обходит всю историю диалога и возвращает корневой агрегат экспорта.
// Ошибки удаленных вызовов и конфигурации фатальны; неудачные скачивания
// деградируют в nil-пути внутри дерева.
func (e *DialogExporter) Export(ctx context.Context) (*domain.DialogExportResult, error) {
	ectx := Context{Cache: e.cache}
	result := &domain.DialogExportResult{}

	offset := 0
	step := 0
	for {
		page, err := e.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}

		for _, raw := range page.Items {
			if step == 0 {
				e.progress.Update(0, page.Count)
			}

			msg, err := e.exportMessage(ctx, ectx, raw, 0)
			if err != nil {
				return nil, err
			}
			result.Messages = append(result.Messages, msg)

			step++
			e.progress.Update(step, page.Count)
		}

		offset += len(page.Items)
	}

	result.Users = e.cache.Entities()
	e.log.InfoContext(ctx, "Экспорт диалога завершен",
		"dialog_id", e.id, "messages", len(result.Messages), "entities", len(result.Users))
	return result, nil
}

// fetchPage запрашивает одну страницу истории со смещением offset.
func (e *DialogExporter) fetchPage(ctx context.Context, offset int) (*vkapi.History, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(pageSize))
	params.Set("rev", "1")

	selector, peer := e.peer()
	params.Set(selector, strconv.FormatInt(peer, 10))

	response, err := e.api.Call(ctx, "messages.getHistory", params)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить историю сообщений: %w", err)
	}

	var page vkapi.History
	if err := json.Unmarshal(response, &page); err != nil {
		return nil, fmt.Errorf("не удалось разобрать страницу истории: %w", err)
	}
	return &page, nil
}

// peer возвращает имя параметра выборки и значение идентификатора собеседника.
func (e *DialogExporter) peer() (string, int64) {
	switch e.dlgType {
	case DialogChat:
		return "peer_id", chatPeerOffset + e.id
	case DialogGroup:
		return "peer_id", -e.id
	default:
		return "user_id", e.id
	}
}

// exportMessage преобразует одно сообщение вместе с пересланными сообщениями
// и вложениями. fwdDepth считает уровень вложенности пересылки и служит
// только операционным потолком рекурсии.
func (e *DialogExporter) exportMessage(ctx context.Context, ectx Context, raw json.RawMessage, fwdDepth int) (*domain.Message, error) {
	var src vkapi.Message
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("не удалось разобрать сообщение: %w", err)
	}

	msg := &domain.Message{
		Date:        src.Date,
		Text:        src.Body,
		IsImportant: src.Important,
		Action:      src.Action,
		ActionText:  src.ActionText,
		ActionMID:   src.ActionMID,
	}
	if src.UpdateTime != 0 {
		msg.IsUpdated = true
		msg.UpdatedAt = src.UpdateTime
	}

	senderID := src.FromID
	if senderID == 0 {
		senderID = src.UserID
	}
	if senderID != 0 {
		if _, err := ectx.Cache.Resolve(ctx, senderID, true); err != nil {
			return nil, err
		}
	}
	msg.Sender = domain.SenderRef{ID: senderID}

	if len(src.Fwd) > 0 {
		if fwdDepth >= maxRecursionDepth {
			e.progress.Error(fmt.Sprintf("Forwarded messages are nested deeper than %d levels, truncating", maxRecursionDepth))
		} else {
			for _, fwdRaw := range src.Fwd {
				fwd, err := e.exportMessage(ctx, ectx, fwdRaw, fwdDepth+1)
				if err != nil {
					return nil, err
				}
				msg.Forwarded = append(msg.Forwarded, fwd)
			}
		}
	}

	if len(src.Attachments) > 0 {
		attachments, err := e.exportAttachments(ctx, ectx, src.Attachments)
		if err != nil {
			return nil, err
		}
		msg.Attachments = attachments
	}

	if e.opts.SaveRaw {
		msg.Raw = raw
	}
	return msg, nil
}
