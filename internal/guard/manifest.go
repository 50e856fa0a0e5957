package guard

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
)

//go:embed routes.yaml
var defaultRoutes []byte

// Route — маршрут консоли и требования к доступу.
type Route struct {
	Path   string `yaml:"path"`
	Title  string `yaml:"title"`
	Menu   string `yaml:"menu"`
	Public bool   `yaml:"public"`

	rbac.Requirement `yaml:",inline"`
}

// MenuSection — раздел навигации с доступными пользователю пунктами.
type MenuSection struct {
	Name  string
	Items []Route
}

// Manifest — набор маршрутов консоли.
type Manifest struct {
	routes []Route
}

type manifestFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadManifest загружает манифест из файла path или встроенный,
// если path пустой.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return ParseManifest(defaultRoutes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста маршрутов %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest разбирает YAML-манифест. Неизвестные поля — ошибка.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file manifestFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ошибка разбора манифеста маршрутов: %w", err)
	}

	seen := make(map[string]bool, len(file.Routes))
	for i, r := range file.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("маршрут #%d: путь %q должен начинаться с /", i+1, r.Path)
		}
		if seen[r.Path] {
			return nil, fmt.Errorf("маршрут %s объявлен повторно", r.Path)
		}
		if r.Public && !r.Requirement.IsZero() {
			return nil, fmt.Errorf("маршрут %s: публичный маршрут не может иметь требований", r.Path)
		}
		seen[r.Path] = true
	}
	return &Manifest{routes: file.Routes}, nil
}

// Routes возвращает копию списка маршрутов.
func (m *Manifest) Routes() []Route {
	out := make([]Route, len(m.routes))
	copy(out, m.routes)
	return out
}

// Lookup находит маршрут с самым длинным совпадающим префиксом пути.
// Префикс совпадает по границе сегмента: /roles подходит для /roles/7,
// но не для /rolesx.
func (m *Manifest) Lookup(path string) (Route, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	var (
		best  Route
		found bool
	)
	for _, r := range m.routes {
		if path != r.Path && !strings.HasPrefix(path, r.Path+"/") {
			continue
		}
		if !found || len(r.Path) > len(best.Path) {
			best, found = r, true
		}
	}
	return best, found
}

// Menu строит навигацию: разделы в порядке первого появления,
// только пункты, требования которых выполнены.
func (m *Manifest) Menu(checker *rbac.Checker) []MenuSection {
	var sections []MenuSection
	index := make(map[string]int)
	for _, r := range m.routes {
		if r.Menu == "" || r.Public || !checker.Allows(r.Requirement) {
			continue
		}
		i, ok := index[r.Menu]
		if !ok {
			i = len(sections)
			index[r.Menu] = i
			sections = append(sections, MenuSection{Name: r.Menu})
		}
		sections[i].Items = append(sections[i].Items, r)
	}
	return sections
}
