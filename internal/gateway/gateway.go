// Пакет gateway — единая точка выполнения запросов к backend API.
//
// Все запросы консоли проходят через Client.Do: он добавляет заголовки
// (Content-Type и Bearer-токен из хранилища), разбирает ответ по его
// Content-Type и сводит любой исход (успех, ошибка HTTP, сетевой сбой,
// таймаут, некорректный JSON) к значению Outcome. Do не возвращает
// ошибок Go и не паникует.
//
// Ответ 401 — особый случай: хранилище сессии очищается синхронно,
// вызывается хук OnSessionExpired, а исход содержит фиксированное
// сообщение SessionExpiredMessage.
package gateway

import (
	"bytes"
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

	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
)

// Сообщения исходов.
const (
	SessionExpiredMessage = "Session expired. Please login again."
	RequestFailedMessage  = "Request failed"
	NetworkErrorMessage   = "Network error"
)

// DefaultTimeout — таймаут одного запроса по умолчанию.
const DefaultTimeout = 10 * time.Second

// maxBodySize ограничивает размер читаемого тела ответа.
const maxBodySize = 10 << 20

// Request описывает запрос к API. Path — относительный путь от базового URL,
// может содержать query-строку. Query дописывается к ней.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Outcome — единообразный результат запроса.
// Data заполняется, когда ответ объявлен как JSON, Text — иначе.
type Outcome struct {
	Success bool
	Status  int
	Data    json.RawMessage
	Text    string
	Error   string
}

// Failure возвращает неуспешный исход с сообщением.
func Failure(message string) Outcome {
	return Outcome{Success: false, Error: message}
}

// Decode декодирует JSON-тело успешного ответа в v.
func (o Outcome) Decode(v any) error {
	if !o.Success {
		return fmt.Errorf("запрос неуспешен: %s", o.Error)
	}
	if len(o.Data) == 0 {
		return errors.New("ответ не содержит JSON-тела")
	}
	if err := json.Unmarshal(o.Data, v); err != nil {
		return fmt.Errorf("декодирование ответа: %w", err)
	}
	return nil
}

// IsSessionExpired сообщает, завершился ли запрос ответом 401.
func (o Outcome) IsSessionExpired() bool {
	return o.Status == http.StatusUnauthorized
}

// Client — шлюз к backend API для одного клиента консоли.
type Client struct {
	baseURL    string
	store      tokenstore.Store
	httpClient *http.Client
	timeout    time.Duration
	onExpired  func(ctx context.Context)
	logger     *slog.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт HTTP-клиент (транспорт, TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// OnSessionExpired задаёт хук, вызываемый после очистки хранилища по ответу 401.
func OnSessionExpired(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onExpired = fn
	}
}

// New создаёт шлюз. baseURL — единственный origin API (без завершающего слэша).
func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "gateway"))
	return c
}

// BaseURL возвращает базовый URL API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store возвращает хранилище сессии клиента.
func (c *Client) Store() tokenstore.Store {
	return c.store
}

// Get выполняет GET-запрос.
func (c *Client) Get(ctx context.Context, path string, query url.Values) Outcome {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post выполняет POST-запрос с JSON-телом.
func (c *Client) Post(ctx context.Context, path string, body any) Outcome {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put выполняет PUT-запрос с JSON-телом.
func (c *Client) Put(ctx context.Context, path string, body any) Outcome {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete выполняет DELETE-запрос.
func (c *Client) Delete(ctx context.Context, path string) Outcome {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Do выполняет запрос и сводит результат к Outcome.
func (c *Client) Do(ctx context.Context, r Request) Outcome {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := normalizePath(r.Path)
	start := time.Now()

	out := c.do(ctx, method, r)

	observe(method, endpoint, out, time.Since(start))
	if !out.Success {
		c.logger.Debug("Запрос к API неуспешен",
			slog.String("method", method),
			slog.String("path", endpoint),
			slog.Int("status", out.Status),
			slog.String("error", out.Error),
		)
	}
	return out
}

func (c *Client) do(ctx context.Context, method string, r Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return Failure(fmt.Sprintf("сериализация тела запроса: %v", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(r.Path, r.Query), bodyReader)
	if err != nil {
		return Failure(err.Error())
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.store.GetToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Failure(transportMessage(ctx, err))
	}
	defer resp.Body.Close()

	// 401 обрабатывается до чтения тела: сессия очищается при любом теле ответа.
	if resp.StatusCode == http.StatusUnauthorized {
		c.expire(ctx)
		return Outcome{Status: resp.StatusCode, Error: SessionExpiredMessage}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Outcome{Status: resp.StatusCode, Error: transportMessage(ctx, err)}
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	var parsed any
	if isJSON && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Outcome{Status: resp.StatusCode, Error: fmt.Sprintf("некорректный JSON в ответе: %v", err)}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{Status: resp.StatusCode, Error: errorMessage(isJSON, parsed, raw)}
	}

	out := Outcome{Success: true, Status: resp.StatusCode}
	if isJSON {
		out.Data = json.RawMessage(raw)
	} else {
		out.Text = string(raw)
	}
	return out
}

// expire очищает хранилище и уведомляет подписчика.
// Контекст запроса может быть уже отменён, поэтому очистка идёт без его отмены.
func (c *Client) expire(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.logger.Warn("Сессия истекла (401), локальное состояние очищено")
	c.store.ClearAuth(ctx)
	sessionExpiredTotal.Inc()
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

func (c *Client) buildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

// errorMessage извлекает сообщение об ошибке из тела ответа:
// message, затем error (строка или объект с message), затем сырой текст.
func errorMessage(isJSON bool, parsed any, raw []byte) string {
	if !isJSON {
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text
		}
		return RequestFailedMessage
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		if s, ok := parsed.(string); ok && s != "" {
			return s
		}
		return RequestFailedMessage
	}
	if msg, ok := obj["message"].(string); ok && msg != "" {
		return msg
	}
	switch e := obj["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return RequestFailedMessage
}

// transportMessage формирует сообщение для сетевых ошибок и таймаутов.
func transportMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return NetworkErrorMessage
}
