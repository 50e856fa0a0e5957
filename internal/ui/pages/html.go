// Пакет pages — HTML-страницы веб-консоли.
//
// Страницы — компоненты templ.Component, собранные через
// templ.ComponentFunc; весь пользовательский текст экранируется
// templ.EscapeString.
package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// html накапливает первую ошибку записи.
type html struct {
	w   io.Writer
	err error
}

// raw пишет разметку как есть.
func (h *html) raw(parts ...string) {
	for _, s := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, s)
	}
}

// text пишет экранированный текст.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr пишет атрибут с экранированным значением.
func (h *html) attr(name, value string) {
	h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

// url пишет атрибут со ссылкой, небезопасные схемы заменяются.
func (h *html) url(name, value string) {
	h.attr(name, string(templ.URL(value)))
}

// child рендерит вложенный компонент.
func (h *html) child(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// component строит templ.Component из функции рендера.
func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

// Stack объединяет компоненты по порядку.
func Stack(items ...templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		for _, c := range items {
			h.child(ctx, c)
		}
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
