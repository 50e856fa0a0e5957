package pages

import (
	"context"

	"github.com/a-h/templ"
)

// Option — вариант поля select.
type Option struct {
	Value string
	Label string
}

// Field — поле формы. Type: text, email, password, textarea, select.
type Field struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Required bool
	Options  []Option
	Error    string
}

// FormData — форма создания или редактирования ресурса.
type FormData struct {
	Title  string
	Nav    *Nav
	Action string
	Fields []Field
	Submit string
	Back   string
	Error  string
}

// Form — страница с формой.
func Form(d FormData) templ.Component {
	return Layout(d.Title, d.Nav, FormBody(d))
}

// FormBody — только форма, без разметки страницы.
func FormBody(d FormData) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.child(ctx, Message("error", d.Error))
		h.raw(`<form method="post"`)
		h.url("action", d.Action)
		h.raw(`>`)
		for _, f := range d.Fields {
			renderField(h, f)
		}
		submit := d.Submit
		if submit == "" {
			submit = "Сохранить"
		}
		h.raw(`<p><button type="submit">`)
		h.text(submit)
		h.raw(`</button>`)
		if d.Back != "" {
			h.raw(` <a`)
			h.url("href", d.Back)
			h.raw(`>Отмена</a>`)
		}
		h.raw(`</p></form>`)
	})
}

func renderField(h *html, f Field) {
	h.raw(`<label`)
	h.attr("for", f.Name)
	h.raw(`>`)
	h.text(f.Label)
	h.raw(`</label>`)

	switch f.Type {
	case "textarea":
		h.raw(`<textarea`)
		fieldAttrs(h, f)
		h.raw(`>`)
		h.text(f.Value)
		h.raw(`</textarea>`)
	case "select":
		h.raw(`<select`)
		fieldAttrs(h, f)
		h.raw(`>`)
		for _, o := range f.Options {
			h.raw(`<option`)
			h.attr("value", o.Value)
			if o.Value == f.Value {
				h.raw(` selected`)
			}
			h.raw(`>`)
			h.text(o.Label)
			h.raw(`</option>`)
		}
		h.raw(`</select>`)
	default:
		typ := f.Type
		if typ == "" {
			typ = "text"
		}
		h.raw(`<input`)
		h.attr("type", typ)
		fieldAttrs(h, f)
		if typ != "password" {
			h.attr("value", f.Value)
		}
		h.raw(`>`)
	}

	if f.Error != "" {
		h.raw(`<div class="error">`)
		h.text(f.Error)
		h.raw(`</div>`)
	}
}

func fieldAttrs(h *html, f Field) {
	h.attr("id", f.Name)
	h.attr("name", f.Name)
	if f.Required {
		h.raw(` required`)
	}
}

// PermissionItem — право в списке назначения роли.
type PermissionItem struct {
	Name    string
	Checked bool
}

// RoleData — страница роли с назначением прав.
type RoleData struct {
	Nav    *Nav
	Name   string
	Action string
	Items  []PermissionItem
	Notice string
	Error  string
}

// RoleDetail — роль и её права. Отправка формы синхронизирует набор прав.
func RoleDetail(d RoleData) templ.Component {
	return Layout("Роль: "+d.Name, d.Nav, component(func(ctx context.Context, h *html) {
		h.child(ctx, Message("notice", d.Notice))
		h.child(ctx, Message("error", d.Error))
		h.raw(`<form method="post"`)
		h.url("action", d.Action)
		h.raw(`>`)
		if len(d.Items) == 0 {
			h.raw(`<p class="muted">Права не заведены</p>`)
		}
		for _, item := range d.Items {
			h.raw(`<label><input type="checkbox" name="permissions"`)
			h.attr("value", item.Name)
			if item.Checked {
				h.raw(` checked`)
			}
			h.raw(`> `)
			h.text(item.Name)
			h.raw(`</label>`)
		}
		h.raw(`<p><button type="submit">Сохранить права</button> <a href="/roles">К списку ролей</a></p></form>`)
	}))
}
