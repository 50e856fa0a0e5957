package tokenstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// runStoreContract проверяет поведение Store, общее для всех бэкендов.
func runStoreContract(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("пустое хранилище", func(t *testing.T) {
		s := New(backend, "empty-client", testLogger())
		if got := s.GetToken(ctx); got != "" {
			t.Errorf("GetToken() = %q, ожидалась пустая строка", got)
		}
		if snap := s.GetSnapshot(ctx); snap != nil {
			t.Errorf("GetSnapshot() = %+v, ожидался nil", snap)
		}
		// Удаление отсутствующего токена не должно ломать хранилище
		s.RemoveToken(ctx)
		s.ClearAuth(ctx)
	})

	t.Run("запись и чтение токена", func(t *testing.T) {
		s := New(backend, "roundtrip", testLogger())
		for _, tok := range []string{"abc", "eyJhbGciOi.payload.sig", "токен с пробелами"} {
			s.SetToken(ctx, tok)
			if got := s.GetToken(ctx); got != tok {
				t.Errorf("GetToken() = %q, ожидался %q", got, tok)
			}
		}
	})

	t.Run("RemoveToken оставляет снимок", func(t *testing.T) {
		s := New(backend, "remove", testLogger())
		s.SetToken(ctx, "t1")
		s.SetSnapshot(ctx, &Snapshot{Roles: []string{"admin"}})

		s.RemoveToken(ctx)

		if got := s.GetToken(ctx); got != "" {
			t.Errorf("GetToken() после RemoveToken = %q", got)
		}
		if s.GetSnapshot(ctx) == nil {
			t.Error("снимок не должен удаляться RemoveToken")
		}
	})

	t.Run("ClearAuth удаляет токен и снимок", func(t *testing.T) {
		s := New(backend, "clear", testLogger())
		s.SetToken(ctx, "t1")
		s.SetSnapshot(ctx, &Snapshot{
			Identity:    json.RawMessage(`{"id":1,"name":"Admin"}`),
			Roles:       []string{"admin"},
			Permissions: []string{"users.view"},
			SavedAt:     time.Now().UTC(),
		})

		s.ClearAuth(ctx)

		if got := s.GetToken(ctx); got != "" {
			t.Errorf("GetToken() после ClearAuth = %q", got)
		}
		if snap := s.GetSnapshot(ctx); snap != nil {
			t.Errorf("GetSnapshot() после ClearAuth = %+v", snap)
		}
	})

	t.Run("снимок сохраняет содержимое", func(t *testing.T) {
		s := New(backend, "snapshot", testLogger())
		s.SetSnapshot(ctx, &Snapshot{
			Identity:    json.RawMessage(`{"id":7}`),
			Roles:       []string{"manager"},
			Permissions: []string{"a", "b"},
		})

		snap := s.GetSnapshot(ctx)
		if snap == nil {
			t.Fatal("GetSnapshot() = nil")
		}
		if len(snap.Roles) != 1 || snap.Roles[0] != "manager" {
			t.Errorf("Roles = %v", snap.Roles)
		}
		if len(snap.Permissions) != 2 {
			t.Errorf("Permissions = %v", snap.Permissions)
		}
		if string(snap.Identity) != `{"id":7}` {
			t.Errorf("Identity = %s", snap.Identity)
		}

		s.SetSnapshot(ctx, nil)
		if s.GetSnapshot(ctx) != nil {
			t.Error("SetSnapshot(nil) должен удалять снимок")
		}
	})

	t.Run("пространства имён изолированы", func(t *testing.T) {
		a := New(backend, "client-a", testLogger())
		b := New(backend, "client-b", testLogger())
		a.SetToken(ctx, "token-a")
		b.SetToken(ctx, "token-b")

		a.ClearAuth(ctx)

		if got := b.GetToken(ctx); got != "token-b" {
			t.Errorf("токен клиента b = %q, ожидался token-b", got)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runStoreContract(t, NewMemoryBackend())
}

func TestMemoryBackend_ReleasesEmptyNamespaces(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	s := New(b, "c1", testLogger())

	s.SetToken(ctx, "t")
	if b.Namespaces() != 1 {
		t.Fatalf("Namespaces() = %d, ожидалось 1", b.Namespaces())
	}
	s.ClearAuth(ctx)
	if b.Namespaces() != 0 {
		t.Errorf("Namespaces() = %d после ClearAuth, ожидалось 0", b.Namespaces())
	}
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	if err != nil {
		t.Fatalf("NewFileBackend() вернул ошибку: %v", err)
	}
	runStoreContract(t, b)
}

func TestFileBackend_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend() вернул ошибку: %v", err)
	}
	ctx := context.Background()
	s := New(b, "cli", testLogger())

	s.SetToken(ctx, "secret-token")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("файл не создан: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("права файла = %o, ожидалось 600", perm)
	}

	// Последняя запись удаляет файл целиком
	s.ClearAuth(ctx)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("файл должен быть удалён после ClearAuth, err = %v", err)
	}
}

func TestFileBackend_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	first, _ := NewFileBackend(path)
	New(first, "cli", testLogger()).SetToken(ctx, "persisted")

	second, _ := NewFileBackend(path)
	if got := New(second, "cli", testLogger()).GetToken(ctx); got != "persisted" {
		t.Errorf("GetToken() = %q, ожидался persisted", got)
	}
}

func TestFileBackend_CorruptedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, _ := NewFileBackend(path)

	if got := New(b, "cli", testLogger()).GetToken(context.Background()); got != "" {
		t.Errorf("GetToken() = %q, ожидалась пустая строка", got)
	}
}

func TestFileBackend_NullNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"cli": null}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b, _ := NewFileBackend(path)
	ctx := context.Background()

	if err := b.Set(ctx, "cli", TokenKey, "x"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if got, ok, err := b.Get(ctx, "cli", TokenKey); err != nil || !ok || got != "x" {
		t.Errorf("Get() = %q, %v, %v; ожидалось \"x\"", got, ok, err)
	}
}

func TestFactory(t *testing.T) {
	factory := NewFactory(NewMemoryBackend(), testLogger())
	ctx := context.Background()

	factory("x").SetToken(ctx, "tx")
	if got := factory("x").GetToken(ctx); got != "tx" {
		t.Errorf("хранилище из фабрики не видит токен: %q", got)
	}
	if got := factory("y").GetToken(ctx); got != "" {
		t.Errorf("чужое пространство имён видит токен: %q", got)
	}
}
