package pages

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// DependencyStatus — состояние зависимости консоли по данным topologymetrics.
type DependencyStatus struct {
	Name    string
	Healthy bool
	Known   bool
}

// DashboardData — данные главной страницы.
type DashboardData struct {
	Nav          *Nav
	Name         string
	Email        string
	Roles        []string
	Permissions  []string
	Dependencies []DependencyStatus
}

// Dashboard — главная страница.
func Dashboard(d DashboardData) templ.Component {
	return Layout("Обзор", d.Nav, component(func(_ context.Context, h *html) {
		h.raw(`<p>Здравствуйте, <strong>`)
		h.text(d.Name)
		h.raw(`</strong>`)
		if d.Email != "" {
			h.raw(` <span class="muted">`)
			h.text(d.Email)
			h.raw(`</span>`)
		}
		h.raw(`</p><table><tr><th>Роли</th><td>`)
		h.text(joinOrDash(d.Roles))
		h.raw(`</td></tr><tr><th>Права</th><td>`)
		h.text(joinOrDash(d.Permissions))
		h.raw(`</td></tr></table>`)

		if len(d.Dependencies) == 0 {
			return
		}
		h.raw(`<h2>Зависимости</h2><table><tr><th>Зависимость</th><th>Состояние</th></tr>`)
		for _, dep := range d.Dependencies {
			h.raw(`<tr><td>`)
			h.text(dep.Name)
			h.raw(`</td><td>`)
			switch {
			case !dep.Known:
				h.raw(`<span class="muted">нет данных</span>`)
			case dep.Healthy:
				h.raw(`<span class="notice">доступна</span>`)
			default:
				h.raw(`<span class="error">недоступна</span>`)
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</table>`)
	}))
}

// Attribute — пара имя/значение для страницы профиля.
type Attribute struct {
	Name  string
	Value string
}

// Profile — страница профиля: все атрибуты identity.
func Profile(nav *Nav, attrs []Attribute) templ.Component {
	return Layout("Профиль", nav, component(func(_ context.Context, h *html) {
		h.raw(`<table>`)
		for _, a := range attrs {
			h.raw(`<tr><th>`)
			h.text(a.Name)
			h.raw(`</th><td>`)
			h.text(a.Value)
			h.raw(`</td></tr>`)
		}
		h.raw(`</table>`)
	}))
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	return strings.Join(items, ", ")
}
