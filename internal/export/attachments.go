package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/vkapi"
)

// attachmentTypeWall — тег вложения-записи со стены; в дереве экспорта такая
// запись представляется вариантом "post".
const attachmentTypeWall = "wall"

// audioUnavailableSentinel встречается в URL аудиозаписей, которые платформа
// больше не отдает. Такие ссылки не скачиваются.
const audioUnavailableSentinel = "audio_api_unavailable.mp3"

// defaultPostSource подставляется, когда запись не сообщает свой источник.
var defaultPostSource = json.RawMessage(`{"type":"api","platform":"unknown"}`)

// exportAttachments диспетчеризует каждое вложение по объявленному типу.
// Нераспознанный тип дает запись Unknown с одним лишь тегом и не влияет на
// разбор остальных вложений списка.
func (e *DialogExporter) exportAttachments(ctx context.Context, ectx Context, atts []vkapi.Attachment) ([]domain.Attachment, error) {
	results := make([]domain.Attachment, 0, len(atts))
	for _, att := range atts {
		var (
			res domain.Attachment
			err error
		)
		switch att.Type {
		case domain.KindPhoto:
			res, err = e.handlePhoto(ctx, att.Payload)
		case domain.KindVideo:
			res, err = e.handleVideo(ctx, ectx, att.Payload)
		case domain.KindAudio:
			res, err = e.handleAudio(ctx, ectx, att.Payload)
		case domain.KindDoc:
			res, err = e.handleDoc(ctx, ectx, att.Payload)
		case attachmentTypeWall:
			res, err = e.handleWall(ctx, ectx, att.Payload)
		case domain.KindSticker:
			res, err = e.handleSticker(ctx, att.Payload)
		case domain.KindLink:
			res, err = e.handleLink(ctx, att.Payload)
		case domain.KindGift:
			res, err = e.handleGift(ctx, att.Payload)
		default:
			res = domain.Unknown{Type: att.Type}
		}
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// downloadImage скачивает самый крупный вариант изображения из размерных
// полей полезной нагрузки.
func (e *DialogExporter) downloadImage(ctx context.Context, payload json.RawMessage, id int64, prefix string) (string, error) {
	return e.downloader.Download(ctx, largestSizedURL(payload, prefix), strconv.FormatInt(id, 10), true, 0)
}

func (e *DialogExporter) handlePhoto(ctx context.Context, payload json.RawMessage) (domain.Attachment, error) {
	var photo vkapi.Photo
	if err := json.Unmarshal(payload, &photo); err != nil {
		return nil, fmt.Errorf("не удалось разобрать фотографию: %w", err)
	}

	downloaded, err := e.downloadImage(ctx, payload, photo.ID, "photo_")
	if err != nil {
		return nil, err
	}

	return domain.Photo{
		Type:        domain.KindPhoto,
		Filename:    optionalPath(downloaded),
		URL:         largestSizedURL(payload, "photo_"),
		Description: photo.Text,
		OwnerID:     photo.OwnerID,
		Width:       photo.Width,
		Height:      photo.Height,
		Date:        photo.Date,
		ID:          photo.ID,
		AlbumID:     photo.AlbumID,
	}, nil
}

func (e *DialogExporter) handleVideo(ctx context.Context, ectx Context, payload json.RawMessage) (domain.Attachment, error) {
	var video vkapi.Video
	if err := json.Unmarshal(payload, &video); err != nil {
		return nil, fmt.Errorf("не удалось разобрать видео: %w", err)
	}

	// Миниатюра скачивается всегда, сами видео не выгружаются.
	thumbnail, err := e.downloadImage(ctx, payload, video.ID, "photo_")
	if err != nil {
		return nil, err
	}

	if video.OwnerID != 0 {
		// Владелец попадает в кэш сущностей: рендеру нужна ссылка на него.
		if _, err := ectx.Cache.Resolve(ctx, video.OwnerID, true); err != nil {
			return nil, err
		}
	}

	platform := video.Platform
	if platform == "" {
		platform = "?"
	}

	return domain.Video{
		Type:              domain.KindVideo,
		Description:       video.Description,
		URL:               fmt.Sprintf("https://vk.com/video%d_%d", video.OwnerID, video.ID),
		Title:             video.Title,
		Duration:          video.Duration,
		Views:             video.Views,
		Comments:          video.Comments,
		ThumbnailFilename: optionalPath(thumbnail),
		Platform:          platform,
		Date:              video.Date,
		OwnerID:           video.OwnerID,
	}, nil
}

func (e *DialogExporter) handleAudio(ctx context.Context, ectx Context, payload json.RawMessage) (domain.Attachment, error) {
	var audio vkapi.Audio
	if err := json.Unmarshal(payload, &audio); err != nil {
		return nil, fmt.Errorf("не удалось разобрать аудиозапись: %w", err)
	}

	var downloaded string
	if e.opts.Audio && ectx.Depth <= e.opts.AudioDepth {
		if audio.URL == "" || strings.Contains(audio.URL, audioUnavailableSentinel) {
			e.progress.Error(fmt.Sprintf("Audio file [%s - %s] is no more available, skipping", audio.Artist, audio.Title))
		} else {
			var err error
			downloaded, err = e.downloader.Download(ctx, audio.URL, fmt.Sprintf("%d.mp3", audio.ID), false, 0)
			if err != nil {
				return nil, err
			}
		}
	}

	return domain.Audio{
		Type:     domain.KindAudio,
		Artist:   audio.Artist,
		Title:    audio.Title,
		Duration: audio.Duration,
		Filename: optionalPath(downloaded),
		URL:      audio.URL,
	}, nil
}

func (e *DialogExporter) handleDoc(ctx context.Context, ectx Context, payload json.RawMessage) (domain.Attachment, error) {
	var doc vkapi.Doc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("не удалось разобрать документ: %w", err)
	}

	// Голосовое сообщение приходит как документ с audio_msg в превью.
	if doc.Preview != nil && doc.Preview.AudioMsg != nil {
		return e.handleVoice(ctx, &doc)
	}

	var downloaded string
	if e.opts.Docs && ectx.Depth <= e.opts.DocsDepth {
		if doc.URL == "" {
			e.progress.Error(fmt.Sprintf("Document [%s] is no more available, skipping", doc.Title))
		} else {
			ext := doc.Ext
			if ext == "" {
				ext = "unknown"
			}
			var err error
			downloaded, err = e.downloader.Download(ctx, doc.URL, fmt.Sprintf("%d.%s", doc.ID, ext), false, doc.Size)
			if err != nil {
				return nil, err
			}
		}
	}

	return domain.Doc{
		Type:     domain.KindDoc,
		Filename: optionalPath(downloaded),
		URL:      doc.URL,
		Title:    doc.Title,
		Size:     doc.Size,
		Ext:      doc.Ext,
	}, nil
}

func (e *DialogExporter) handleVoice(ctx context.Context, doc *vkapi.Doc) (domain.Attachment, error) {
	audioMsg := doc.Preview.AudioMsg

	// Предпочитаем mp3, ogg — запасная кодировка.
	voiceURL := audioMsg.LinkMP3
	if voiceURL == "" {
		voiceURL = audioMsg.LinkOGG
	}

	var downloaded string
	if !e.opts.NoVoice {
		if voiceURL == "" {
			e.progress.Error("Voice message is no more available, skipping")
		} else {
			ext := doc.Ext
			if ext == "" {
				ext = "mp3"
			}
			var err error
			downloaded, err = e.downloader.Download(ctx, voiceURL, fmt.Sprintf("%d.%s", doc.ID, ext), false, 0)
			if err != nil {
				return nil, err
			}
		}
	}

	return domain.Voice{
		Type:     domain.KindVoice,
		Filename: optionalPath(downloaded),
		URL:      voiceURL,
		Duration: audioMsg.Duration,
		ID:       doc.ID,
		OwnerID:  doc.OwnerID,
		Date:     doc.Date,
	}, nil
}

func (e *DialogExporter) handleSticker(ctx context.Context, payload json.RawMessage) (domain.Attachment, error) {
	var sticker vkapi.Sticker
	if err := json.Unmarshal(payload, &sticker); err != nil {
		return nil, fmt.Errorf("не удалось разобрать стикер: %w", err)
	}

	// Берем самый крупный вариант изображения стикера.
	var largest *vkapi.StickerImage
	for i := range sticker.Images {
		if largest == nil || sticker.Images[i].Width > largest.Width {
			largest = &sticker.Images[i]
		}
	}

	var stickerURL, downloaded string
	if largest != nil {
		stickerURL = largest.URL
		var err error
		downloaded, err = e.downloader.Download(ctx, stickerURL, strconv.FormatInt(sticker.StickerID, 10), true, 0)
		if err != nil {
			return nil, err
		}
	}

	return domain.Sticker{
		Type:     domain.KindSticker,
		Filename: optionalPath(downloaded),
		URL:      stickerURL,
	}, nil
}

func (e *DialogExporter) handleLink(ctx context.Context, payload json.RawMessage) (domain.Attachment, error) {
	var link vkapi.Link
	if err := json.Unmarshal(payload, &link); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ссылку: %w", err)
	}

	var downloaded string
	if len(link.Photo) > 0 {
		var photo vkapi.Photo
		if err := json.Unmarshal(link.Photo, &photo); err == nil {
			downloaded, err = e.downloadImage(ctx, link.Photo, photo.ID, "photo_")
			if err != nil {
				return nil, err
			}
		}
	}

	return domain.Link{
		Type:        domain.KindLink,
		URL:         link.URL,
		Title:       link.Title,
		Caption:     link.Caption,
		Description: link.Description,
		Filename:    optionalPath(downloaded),
	}, nil
}

func (e *DialogExporter) handleGift(ctx context.Context, payload json.RawMessage) (domain.Attachment, error) {
	var gift vkapi.Gift
	if err := json.Unmarshal(payload, &gift); err != nil {
		return nil, fmt.Errorf("не удалось разобрать подарок: %w", err)
	}

	thumbnail, err := e.downloadImage(ctx, payload, gift.ID, "thumb_")
	if err != nil {
		return nil, err
	}

	return domain.Gift{
		Type:      domain.KindGift,
		Thumbnail: optionalPath(thumbnail),
	}, nil
}

// handleWall преобразует запись со стены. Вложения записи разбираются на
// следующем уровне глубины; цепочка репостов рекурсивно обходится только для
// элементов с подтипом "post", остальные подтипы пропускаются с сообщением
// об ошибке.
func (e *DialogExporter) handleWall(ctx context.Context, ectx Context, payload json.RawMessage) (domain.Attachment, error) {
	var wall vkapi.Wall
	if err := json.Unmarshal(payload, &wall); err != nil {
		return nil, fmt.Errorf("не удалось разобрать запись со стены: %w", err)
	}

	if wall.FromID != 0 {
		if _, err := ectx.Cache.Resolve(ctx, wall.FromID, true); err != nil {
			return nil, err
		}
	}
	if wall.ToID != 0 {
		if _, err := ectx.Cache.Resolve(ctx, wall.ToID, true); err != nil {
			return nil, err
		}
	}

	source := wall.PostSource
	if len(source) == 0 {
		source = defaultPostSource
	}

	post := &domain.Post{
		Type:     domain.KindPost,
		FromID:   wall.FromID,
		ToID:     wall.ToID,
		PostType: wall.PostType,
		Date:     wall.Date,
		Text:     wall.Text,
		URL:      fmt.Sprintf("https://vk.com/wall%d_%d", wall.FromID, wall.ID),
		Views:    wall.Views.Count,
		Likes:    wall.Likes.Count,
		Comments: wall.Comments.Count,
		Reposts:  wall.Reposts.Count,
		Source:   source,
	}

	if len(wall.Attachments) > 0 {
		attachments, err := e.exportAttachments(ctx, ectx.NextLevel(), wall.Attachments)
		if err != nil {
			return nil, err
		}
		post.Attachments = attachments
	}

	if len(wall.CopyHistory) > 0 {
		if ectx.Depth >= maxRecursionDepth {
			e.progress.Error(fmt.Sprintf("Repost chain is nested deeper than %d levels, truncating", maxRecursionDepth))
			return post, nil
		}
		for _, rawRepost := range wall.CopyHistory {
			var header struct {
				PostType string `json:"post_type"`
			}
			if err := json.Unmarshal(rawRepost, &header); err != nil {
				return nil, fmt.Errorf("не удалось разобрать элемент цепочки репостов: %w", err)
			}
			if header.PostType != "post" {
				e.progress.Error(fmt.Sprintf("No handler for post type: %s", header.PostType))
				continue
			}

			nested, err := e.handleWall(ctx, ectx.NextLevel(), rawRepost)
			if err != nil {
				return nil, err
			}
			post.Repost = append(post.Repost, nested.(*domain.Post))
		}
	}

	return post, nil
}
