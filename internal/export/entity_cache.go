package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/ports"
	"vk-dialog-export/internal/vkapi"
)

// EntityCache мемоизирует разрешенные профили пользователей и сообществ по
// числовому идентификатору. Первый запрос на идентификатор выполняет ровно
// один удаленный вызов и не более одного скачивания аватарки; все последующие
// запросы возвращают кэшированную сущность, даже если в них снова просят
// скачать аватарку — политика первого разрешения действует до конца экспорта.
type EntityCache struct {
	api        ports.Caller
	downloader *FileDownloader
	log        *slog.Logger
	entities   map[int64]*domain.Entity
}

// NewEntityCache создает пустой кэш сущностей. Кэш не заполняется заранее:
// сущность разрешается только когда на нее впервые ссылаются.
func NewEntityCache(api ports.Caller, downloader *FileDownloader, log *slog.Logger) *EntityCache {
	if log == nil {
		log = slog.Default()
	}
	return &EntityCache{
		api:        api,
		downloader: downloader,
		log:        log,
		entities:   make(map[int64]*domain.Entity),
	}
}

// Resolve возвращает сущность по идентификатору, при необходимости разрешая
// ее через API. Отрицательные идентификаторы разрешаются как сообщества,
// неотрицательные — как пользователи. Ошибка удаленного вызова фатальна для
// текущей операции и пробрасывается наверх.
func (c *EntityCache) Resolve(ctx context.Context, id int64, downloadAvatar bool) (*domain.Entity, error) {
	if entity, ok := c.entities[id]; ok {
		return entity, nil
	}

	var (
		entity *domain.Entity
		err    error
	)
	if id < 0 {
		entity, err = c.resolveGroup(ctx, id, downloadAvatar)
	} else {
		entity, err = c.resolveUser(ctx, id, downloadAvatar)
	}
	if err != nil {
		return nil, err
	}

	c.entities[id] = entity
	c.log.DebugContext(ctx, "Сущность разрешена", "id", id, "name", entity.Name)
	return entity, nil
}

// Entities возвращает все сущности, разрешенные за время экспорта.
func (c *EntityCache) Entities() map[int64]*domain.Entity {
	return c.entities
}

func (c *EntityCache) resolveGroup(ctx context.Context, id int64, downloadAvatar bool) (*domain.Entity, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(-id, 10))

	response, err := c.api.Call(ctx, "groups.getById", params)
	if err != nil {
		return nil, fmt.Errorf("не удалось разрешить сообщество %d: %w", -id, err)
	}

	var groups []json.RawMessage
	if err := json.Unmarshal(response, &groups); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ответ groups.getById: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("groups.getById вернул пустой список для %d", -id)
	}

	var group vkapi.Group
	if err := json.Unmarshal(groups[0], &group); err != nil {
		return nil, fmt.Errorf("не удалось разобрать профиль сообщества: %w", err)
	}

	avatar, err := c.downloadAvatar(ctx, groups[0], group.ID, downloadAvatar)
	if err != nil {
		return nil, err
	}

	return &domain.Entity{
		ID:        id,
		Name:      group.Name,
		FirstName: group.Name,
		LastName:  "",
		Link:      "https://vk.com/" + group.ScreenName,
		Avatar:    avatar,
	}, nil
}

func (c *EntityCache) resolveUser(ctx context.Context, id int64, downloadAvatar bool) (*domain.Entity, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(id, 10))
	params.Set("fields", "photo_50,photo_100,photo_200")

	response, err := c.api.Call(ctx, "users.get", params)
	if err != nil {
		return nil, fmt.Errorf("не удалось разрешить пользователя %d: %w", id, err)
	}

	var users []json.RawMessage
	if err := json.Unmarshal(response, &users); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ответ users.get: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("users.get вернул пустой список для %d", id)
	}

	var user vkapi.User
	if err := json.Unmarshal(users[0], &user); err != nil {
		return nil, fmt.Errorf("не удалось разобрать профиль пользователя: %w", err)
	}

	avatar, err := c.downloadAvatar(ctx, users[0], user.ID, downloadAvatar)
	if err != nil {
		return nil, err
	}

	return &domain.Entity{
		ID:        id,
		Name:      strings.TrimSpace(user.FirstName + " " + user.LastName),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Link:      fmt.Sprintf("https://vk.com/id%d", user.ID),
		Avatar:    avatar,
	}, nil
}

// downloadAvatar скачивает самую крупную аватарку из размерных полей профиля.
// Неудача скачивания не фатальна: сущность остается без аватарки.
func (c *EntityCache) downloadAvatar(ctx context.Context, profile json.RawMessage, payloadID int64, enabled bool) (*string, error) {
	if !enabled || c.downloader == nil {
		return nil, nil
	}

	avatarURL := largestSizedURL(profile, "photo_")
	path, err := c.downloader.Download(ctx, avatarURL, strconv.FormatInt(payloadID, 10), true, 0)
	if err != nil {
		return nil, err
	}
	return optionalPath(path), nil
}
