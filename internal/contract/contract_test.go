package contract

import (
	"errors"
	"testing"
)

func TestLoad(t *testing.T) {
	v, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := map[string]bool{
		LoginEnvelope: false, IdentityEnvelope: false,
		PermissionsEnvelope: false, ListEnvelope: false,
	}
	for _, name := range v.Schemas() {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("схема %s не объявлена", name)
		}
	}
}

func TestValidate(t *testing.T) {
	v, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	tests := []struct {
		name    string
		schema  string
		body    string
		wantErr bool
	}{
		{"токен под data", LoginEnvelope, `{"data":{"access_token":"abc"}}`, false},
		{"токен на верхнем уровне", LoginEnvelope, `{"access_token":"abc"}`, true},
		{"пустой токен", LoginEnvelope, `{"data":{"access_token":""}}`, true},
		{"identity под одним data", IdentityEnvelope, `{"data":{"id":1,"name":"Admin","role_id":2,"role_name":"admin"}}`, false},
		{"identity без роли", IdentityEnvelope, `{"data":{"id":"u-1","role_id":null,"role_name":null}}`, false},
		{"identity под двумя data", IdentityEnvelope, `{"data":{"data":{"id":1}}}`, true},
		{"права строками", PermissionsEnvelope, `{"data":{"permissions":["users.view","users.create"]}}`, false},
		{"права объектами", PermissionsEnvelope, `{"data":{"permissions":[{"id":1,"name":"users.view"}]}}`, false},
		{"права без data", PermissionsEnvelope, `{"permissions":["users.view"]}`, true},
		{"список", ListEnvelope, `{"data":[{"id":1}],"total":1,"page":1,"per_page":10}`, false},
		{"список объектом", ListEnvelope, `{"data":{"id":1}}`, true},
		{"не JSON", LoginEnvelope, `<html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.schema, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEnvelopeMismatch) {
				t.Errorf("ошибка должна оборачивать ErrEnvelopeMismatch: %v", err)
			}
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	err = v.Validate("Nope", []byte(`{}`))
	if err == nil {
		t.Fatal("ожидалась ошибка для необъявленной схемы")
	}
	if errors.Is(err, ErrEnvelopeMismatch) {
		t.Error("необъявленная схема — ошибка конфигурации, а не несоответствие")
	}
}
