package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/bigkaa/goartstore/console-module/internal/gateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// call — записанный запрос к API.
type call struct {
	method string
	path   string
	query  url.Values
	body   json.RawMessage
}

// fakeAPI записывает запросы и отвечает по ключу "METHOD path".
type fakeAPI struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]gateway.Outcome
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: make(map[string]gateway.Outcome)}
}

func (f *fakeAPI) on(method, path string, out gateway.Outcome) {
	f.responses[method+" "+path] = out
}

func (f *fakeAPI) record(method, path string, query url.Values, body any) gateway.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	var raw json.RawMessage
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	f.calls = append(f.calls, call{method: method, path: path, query: query, body: raw})
	out, ok := f.responses[method+" "+path]
	if !ok {
		return gateway.Outcome{Status: 404, Error: "Not found"}
	}
	return out
}

func (f *fakeAPI) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) Get(_ context.Context, path string, query url.Values) gateway.Outcome {
	return f.record("GET", path, query, nil)
}

func (f *fakeAPI) Post(_ context.Context, path string, body any) gateway.Outcome {
	return f.record("POST", path, nil, body)
}

func (f *fakeAPI) Put(_ context.Context, path string, body any) gateway.Outcome {
	return f.record("PUT", path, nil, body)
}

func (f *fakeAPI) Delete(_ context.Context, path string) gateway.Outcome {
	return f.record("DELETE", path, nil, nil)
}

// ok — успешный JSON-ответ.
func ok(body string) gateway.Outcome {
	return gateway.Outcome{Success: true, Status: 200, Data: json.RawMessage(body)}
}
