package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate проверяет только наличие обязательных полей. Бизнес-правила
// (уникальность, формат) проверяет сервер.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях используем JSON-имена полей
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError — перечень незаполненных полей.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("не заполнены обязательные поля: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate проверяет входные данные формы.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}
