package vkapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL — адрес JSON API VK.
	DefaultBaseURL = "https://api.vk.com/method"
	// DefaultVersion — версия API, с которой работает экспортер.
	DefaultVersion = "5.74"

	defaultRetryCount = 15
	defaultRetryPause = 5 * time.Second
	defaultTimeout    = 20 * time.Second
)

// APIError — ошибка, о которой сообщила удаленная сторона API.
// Такие ошибки терминальны и транспортным циклом повторов не обрабатываются.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return strings.TrimSuffix(e.Message, ".")
}

// Option — функциональная опция для настройки клиента.
type Option func(*Client)

// WithHTTPClient устанавливает HTTP-клиент.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL устанавливает адрес API.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRetryCount устанавливает бюджет транспортных повторов одного вызова.
func WithRetryCount(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retryCount = n
		}
	}
}

// WithRetryPause устанавливает паузу между повторами.
func WithRetryPause(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryPause = d
		}
	}
}

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client вызывает методы VK API поверх HTTPS. Транспортные сбои повторяются
// в пределах бюджета retryCount с паузой retryPause; ошибка уровня API
// (*APIError) возвращается сразу, решать, что с ней делать, должен вызывающий.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	version    string
	retryCount int
	retryPause time.Duration
	log        *slog.Logger
}

// NewClient создает клиент API с заданным токеном доступа.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		token:      token,
		version:    DefaultVersion,
		retryCount: defaultRetryCount,
		retryPause: defaultRetryPause,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call вызывает именованный метод API и возвращает содержимое поля response.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	query := url.Values{}
	for key, vals := range params {
		query[key] = vals
	}
	query.Set("access_token", c.token)
	query.Set("v", c.version)

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, method, query.Encode())

	var lastErr error
	for attempt := 0; attempt < c.retryCount; attempt++ {
		if attempt > 0 {
			c.log.WarnContext(ctx, "Повтор вызова метода API после паузы",
				"method", method, "attempt", attempt+1, "pause", c.retryPause, "error", lastErr)
			select {
			case <-time.After(c.retryPause):
			case <-ctx.Done():
				return nil, fmt.Errorf("вызов метода %s прерван: %w", method, ctx.Err())
			}
		}

		response, err := c.doRequest(ctx, reqURL)
		if err == nil {
			return response, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			// Удаленная сторона ответила осмысленной ошибкой, повторять нет смысла.
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("вызов метода %s прерван: %w", method, ctx.Err())
		}
		lastErr = err
	}

	return nil, fmt.Errorf("не удалось вызвать метод %s после %d попыток: %w", method, c.retryCount, lastErr)
}

func (c *Client) doRequest(ctx context.Context, reqURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать запрос: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать тело ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}

	var reply struct {
		Response json.RawMessage `json:"response"`
		Error    *APIError       `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ответ API: %w", err)
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	return reply.Response, nil
}

// AuthURL возвращает адрес страницы ручной OAuth-авторизации, на которой
// пользователь получает access_token для приложения appID.
func AuthURL(appID string) string {
	query := url.Values{}
	query.Set("client_id", appID)
	query.Set("scope", "messages")
	query.Set("redirect_uri", "https://oauth.vk.com/blank.html")
	query.Set("display", "page")
	query.Set("response_type", "token")
	return "https://oauth.vk.com/authorize?" + query.Encode()
}
