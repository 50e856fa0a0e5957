package pages

import (
	"context"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/console-module/internal/guard"
)

// Nav — навигация для страниц аутентифицированного пользователя.
type Nav struct {
	UserName string
	Current  string
	Sections []guard.MenuSection
}

var sectionTitles = map[string]string{
	"main":    "Главное",
	"account": "Управление",
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;display:flex;min-height:100vh;color:#1f2933}
nav{width:220px;background:#1f2933;color:#e4e7eb;padding:1rem}
nav a{color:#e4e7eb;text-decoration:none;display:block;padding:.3rem 0}
nav a.active{font-weight:bold}
nav h4{margin:1rem 0 .3rem;color:#9aa5b1;font-size:.8rem;text-transform:uppercase}
main{flex:1;padding:1.5rem 2rem}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #e4e7eb;padding:.4rem;text-align:left}
.error{color:#b91c1c}
.notice{color:#047857}
.muted{color:#7b8794}
form.inline{display:inline}
label{display:block;margin:.5rem 0 .2rem}`

// Layout — общая разметка страницы. nav == nil — без меню (вход, ошибки).
func Layout(title string, nav *Nav, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!DOCTYPE html><html lang="ru"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(` · Console</title><style>`, styles, `</style></head><body>`)
		if nav != nil {
			renderNav(h, nav)
		}
		h.raw(`<main><h1>`)
		h.text(title)
		h.raw(`</h1>`)
		h.child(ctx, body)
		h.raw(`</main></body></html>`)
	})
}

func renderNav(h *html, nav *Nav) {
	h.raw(`<nav><div>`)
	h.text(nav.UserName)
	h.raw(`</div>`)
	for _, s := range nav.Sections {
		title := sectionTitles[s.Name]
		if title == "" {
			title = s.Name
		}
		h.raw(`<h4>`)
		h.text(title)
		h.raw(`</h4>`)
		for _, item := range s.Items {
			h.raw(`<a`)
			h.url("href", item.Path)
			if item.Path == nav.Current {
				h.raw(` class="active"`)
			}
			h.raw(`>`)
			h.text(item.Title)
			h.raw(`</a>`)
		}
	}
	h.raw(`<form method="post" action="/logout"><button type="submit">Выйти</button></form></nav>`)
}

// Message — абзац с текстом; class задаёт оформление (error, notice, muted).
func Message(class, text string) templ.Component {
	return component(func(_ context.Context, h *html) {
		if text == "" {
			return
		}
		h.raw(`<p`)
		h.attr("class", class)
		h.raw(`>`)
		h.text(text)
		h.raw(`</p>`)
	})
}
