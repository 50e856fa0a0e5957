package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRegistry(t *testing.T, apiURL string, size int, ttl time.Duration) (*Registry, *tokenstore.MemoryBackend) {
	t.Helper()
	backend := tokenstore.NewMemoryBackend()
	r := NewRegistry(Options{
		APIURL:         apiURL,
		RequestTimeout: time.Second,
		Size:           size,
		TTL:            ttl,
	}, tokenstore.NewFactory(backend, testLogger()), testLogger())
	t.Cleanup(r.Close)
	return r, backend
}

func awaitSettled(t *testing.T, e *Entry) session.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := e.Context.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	return rec
}

func TestRegistry_GetReusesEntry(t *testing.T) {
	r, _ := newTestRegistry(t, "http://127.0.0.1:1", 10, time.Hour)

	a1 := r.Get("a")
	a2 := r.Get("a")
	b := r.Get("b")

	if a1 != a2 {
		t.Error("повторный Get должен вернуть ту же запись")
	}
	if a1 == b {
		t.Error("разные клиенты не должны делить запись")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	// Без токена разрешение завершается без сетевых запросов
	if rec := awaitSettled(t, a1); rec.State != session.StateUnauthenticated {
		t.Errorf("State = %s, want unauthenticated", rec.State)
	}
}

func TestRegistry_EvictionClosesContext(t *testing.T) {
	r, _ := newTestRegistry(t, "http://127.0.0.1:1", 1, time.Hour)

	a := r.Get("a")
	r.Get("b")

	if !a.Context.Closed() {
		t.Error("вытесненный контекст должен быть закрыт")
	}
	if _, ok := r.Peek("a"); ok {
		t.Error("вытесненный клиент не должен оставаться в реестре")
	}
}

func TestRegistry_TTLExpiry(t *testing.T) {
	r, _ := newTestRegistry(t, "http://127.0.0.1:1", 10, 50*time.Millisecond)

	a := r.Get("a")
	time.Sleep(120 * time.Millisecond)

	again := r.Get("a")
	if again == a {
		t.Error("после TTL должна создаваться новая запись")
	}
	if !a.Context.Closed() {
		t.Error("истёкший контекст должен быть закрыт")
	}
}

func TestRegistry_Close(t *testing.T) {
	r, _ := newTestRegistry(t, "http://127.0.0.1:1", 10, time.Hour)

	a := r.Get("a")
	b := r.Get("b")
	r.Close()

	if !a.Context.Closed() || !b.Context.Closed() {
		t.Error("Close должен закрыть все контексты")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d после Close", r.Len())
	}
}

// Ответ 401 на любой запрос клиента переводит его контекст в unauthenticated.
func TestRegistry_UnauthorizedExpiresContext(t *testing.T) {
	var expired atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expired.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case session.IdentityPath:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"data":{"id":1,"name":"Анна","role_name":"admin"}}`)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	defer srv.Close()

	r, backend := newTestRegistry(t, srv.URL, 10, time.Hour)
	if err := backend.Set(context.Background(), "a", tokenstore.TokenKey, "tok"); err != nil {
		t.Fatal(err)
	}

	e := r.Get("a")
	if rec := awaitSettled(t, e); rec.State != session.StateAuthenticated {
		t.Fatalf("State = %s, want authenticated", rec.State)
	}

	expired.Store(true)
	if _, err := e.Users.List(context.Background(), service.ListParams{}); err == nil {
		t.Fatal("ожидалась ошибка при ответе 401")
	}

	if got := e.Context.State(); got != session.StateUnauthenticated {
		t.Errorf("State = %s, want unauthenticated", got)
	}
	if tok := e.Gateway.Store().GetToken(context.Background()); tok != "" {
		t.Errorf("токен должен быть удалён, получено %q", tok)
	}
}
