// Пакет middleware — HTTP middleware веб-консоли.
// client.go — привязка запроса к клиенту консоли по cookie.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/console-module/internal/ui/auth"
	"github.com/bigkaa/goartstore/console-module/internal/ui/clients"
)

// contextKey — тип ключей контекста запроса.
type contextKey string

const (
	contextKeyClient contextKey = "console_client"
	contextKeyRoute  contextKey = "console_route"
)

// ClientBinder находит или создаёт клиента консоли для запроса.
type ClientBinder struct {
	cookies  *auth.CookieManager
	registry *clients.Registry
	// reissueAfter — через сколько после выдачи cookie перевыпускается
	reissueAfter time.Duration
	logger       *slog.Logger
}

// NewClientBinder создаёт ClientBinder. Cookie перевыпускается, когда
// прошла половина ttl, чтобы активный клиент не терял привязку.
func NewClientBinder(cookies *auth.CookieManager, registry *clients.Registry, ttl time.Duration, logger *slog.Logger) *ClientBinder {
	return &ClientBinder{
		cookies:      cookies,
		registry:     registry,
		reissueAfter: ttl / 2,
		logger:       logger.With(slog.String("component", "client_binder")),
	}
}

// Middleware кладёт запись клиента в контекст запроса.
// Нет cookie или cookie повреждён — выдаётся новый идентификатор.
func (b *ClientBinder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := b.cookies.FromRequest(r)
			if err != nil {
				b.logger.Debug("Cookie клиента не прочитан, выдаётся новый",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				data = nil
			}

			now := time.Now()
			if data == nil || now.Sub(time.Unix(data.IssuedAt, 0)) > b.reissueAfter {
				if data == nil {
					data = &auth.ClientData{ClientID: uuid.NewString()}
				}
				data.IssuedAt = now.Unix()
				if err := b.cookies.SetCookie(w, data); err != nil {
					b.logger.Error("Ошибка установки cookie клиента", slog.String("error", err.Error()))
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
			}

			entry := b.registry.Get(data.ClientID)
			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), entry)))
		})
	}
}

// WithClient возвращает контекст с записью клиента.
func WithClient(ctx context.Context, e *clients.Entry) context.Context {
	return context.WithValue(ctx, contextKeyClient, e)
}

// ClientFromContext возвращает запись клиента из контекста запроса или nil.
func ClientFromContext(ctx context.Context) *clients.Entry {
	e, _ := ctx.Value(contextKeyClient).(*clients.Entry)
	return e
}
