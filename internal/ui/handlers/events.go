// events.go — SSE-поток состояния сессии клиента.
// Страница загрузки подписывается на него и перезагружается, как только
// разрешение сессии завершилось.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/ui/middleware"
)

// EventsHandler — SSE endpoint состояния сессии.
type EventsHandler struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewEventsHandler создаёт EventsHandler. interval — период heartbeat
// (CM_SSE_INTERVAL).
func NewEventsHandler(interval time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		interval: interval,
		logger:   logger.With(slog.String("component", "ui.events")),
	}
}

// sessionEvent — SSE-событие session.
type sessionEvent struct {
	State       session.State `json:"state"`
	Name        string        `json:"name,omitempty"`
	Roles       []string      `json:"roles"`
	Permissions []string      `json:"permissions"`
}

// HandleSession обрабатывает GET /events/session.
// Формат: event: session\ndata: {json}\n\n; heartbeat — комментарий ": ping".
// Поток завершается при отключении клиента или закрытии контекста сессии.
func (h *EventsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	entry := middleware.ClientFromContext(r.Context())
	if entry == nil {
		WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "клиент консоли не определён")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// ResponseController находит http.Flusher через Unwrap() обёрток middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "SSE не поддерживается")
		return
	}
	// Поток живёт дольше WriteTimeout сервера
	_ = rc.SetWriteDeadline(time.Time{})

	updates, unsubscribe := entry.Context.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	h.logger.Debug("SSE клиент подключён", slog.String("client_id", entry.ID))

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён", slog.String("client_id", entry.ID))
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(w, rc, rec); err != nil {
				h.logger.Debug("Ошибка отправки SSE", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

func (h *EventsHandler) send(w http.ResponseWriter, rc *http.ResponseController, rec session.Record) error {
	event := sessionEvent{
		State:       rec.State,
		Roles:       rec.Roles,
		Permissions: rec.Permissions,
	}
	if rec.Identity != nil {
		event.Name = rec.Identity.Name
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
