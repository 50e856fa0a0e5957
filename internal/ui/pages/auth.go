package pages

import (
	"context"

	"github.com/a-h/templ"
)

// LoginData — данные формы входа.
type LoginData struct {
	Email string
	From  string
	Error string
}

// Login — страница входа.
func Login(d LoginData) templ.Component {
	form := component(func(ctx context.Context, h *html) {
		h.child(ctx, Message("error", d.Error))
		h.raw(`<form method="post" action="/login">`)
		if d.From != "" {
			h.raw(`<input type="hidden" name="from"`)
			h.attr("value", d.From)
			h.raw(`>`)
		}
		h.raw(`<label for="email">Email</label><input id="email" name="email" type="email" required autofocus`)
		h.attr("value", d.Email)
		h.raw(`><label for="password">Пароль</label><input id="password" name="password" type="password" required>`)
		h.raw(`<p><button type="submit">Войти</button></p></form>`)
	})
	return Layout("Вход", nil, form)
}

// Unauthorized — страница отказа в доступе.
func Unauthorized() templ.Component {
	return Layout("Нет доступа", nil, component(func(_ context.Context, h *html) {
		h.raw(`<p>Недостаточно прав для просмотра этой страницы.</p>`)
		h.raw(`<p><a href="/dashboard">На главную</a> · <a href="/login">Войти под другой учётной записью</a></p>`)
	}))
}

// Loading — страница ожидания, пока сессия разрешается. greeting берётся
// из предварительного снимка и только отображается. Страница обновляется
// по событию /events/session или, без JavaScript, по заголовку Refresh.
func Loading(greeting string) templ.Component {
	return Layout("Загрузка", nil, component(func(ctx context.Context, h *html) {
		h.child(ctx, Message("muted", greeting))
		h.raw(`<p>Проверяем сессию…</p>`)
		h.raw(`<script>(function(){var es=new EventSource("/events/session");` +
			`es.addEventListener("session",function(e){var s=JSON.parse(e.data);` +
			`if(s.state==="authenticated"||s.state==="unauthenticated"){es.close();location.reload();}});})();</script>`)
	}))
}

// ErrorPage — страница ошибки запроса к API.
func ErrorPage(title, message string, nav *Nav) templ.Component {
	return Layout(title, nav, Message("error", message))
}
