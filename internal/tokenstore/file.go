package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend хранит все пространства имён в одном JSON-файле (режим 0600).
// Используется consolectl: ~/.console/credentials.json.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend создаёт бэкенд и каталог для файла (режим 0700).
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("создание каталога %s: %w", filepath.Dir(path), err)
	}
	return &FileBackend{path: path}, nil
}

// Path возвращает путь к файлу.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Get(_ context.Context, namespace, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return "", false, err
	}
	val, ok := data[namespace][key]
	return val, ok, nil
}

func (b *FileBackend) Set(_ context.Context, namespace, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return err
	}
	ns := data[namespace]
	if ns == nil {
		ns = make(map[string]string)
		data[namespace] = ns
	}
	ns[key] = value
	return b.save(data)
}

func (b *FileBackend) Delete(_ context.Context, namespace string, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return err
	}
	ns, ok := data[namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(data, namespace)
	}
	if len(data) == 0 {
		if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("удаление файла учётных данных: %w", err)
		}
		return nil
	}
	return b.save(data)
}

// load читает файл. Отсутствующий файл — пустое хранилище.
func (b *FileBackend) load() (map[string]map[string]string, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение файла учётных данных: %w", err)
	}

	data := make(map[string]map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("разбор файла учётных данных: %w", err)
	}
	return data, nil
}

// save записывает файл через временный файл и rename.
func (b *FileBackend) save(data map[string]map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация учётных данных: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("запись файла учётных данных: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("замена файла учётных данных: %w", err)
	}
	return nil
}
