// Пакет contract — объявленные конверты ответов backend API (OpenAPI 3)
// и их проверка. Используется в строгом режиме (CM_STRICT_ENVELOPES):
// вместо перебора вариантов вложенности ответ сверяется с единственной
// объявленной формой, а расхождение считается ошибкой.
package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// Имена схем конвертов.
const (
	LoginEnvelope       = "LoginEnvelope"
	IdentityEnvelope    = "IdentityEnvelope"
	PermissionsEnvelope = "PermissionsEnvelope"
	ListEnvelope        = "ListEnvelope"
)

// ErrEnvelopeMismatch — тело ответа не соответствует объявленному конверту.
var ErrEnvelopeMismatch = errors.New("ответ не соответствует контракту")

// Validator проверяет тела ответов по схемам из openapi.yaml.
type Validator struct {
	doc *openapi3.T
}

// Load загружает и валидирует встроенный контракт.
func Load() (*Validator, error) {
	return LoadFromData(specYAML)
}

// LoadFromData загружает контракт из YAML/JSON.
func LoadFromData(data []byte) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("загрузка контракта: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("валидация контракта: %w", err)
	}
	return &Validator{doc: doc}, nil
}

// Validate сверяет JSON-тело со схемой name.
// Ошибка несоответствия оборачивает ErrEnvelopeMismatch.
func (v *Validator) Validate(name string, body []byte) error {
	ref, ok := v.doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("схема %q не объявлена в контракте", name)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("%w: %s: некорректный JSON: %v", ErrEnvelopeMismatch, name, err)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEnvelopeMismatch, name, err)
	}
	return nil
}

// Schemas возвращает имена объявленных схем.
func (v *Validator) Schemas() []string {
	names := make([]string, 0, len(v.doc.Components.Schemas))
	for name := range v.doc.Components.Schemas {
		names = append(names, name)
	}
	return names
}
