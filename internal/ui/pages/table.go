package pages

import (
	"context"
	"net/url"

	"github.com/a-h/templ"
)

// Action — кнопка строки, отправляющая POST на URL.
type Action struct {
	Label   string
	URL     string
	Confirm string
}

// Row — строка таблицы. Link — ссылка с первой ячейки.
type Row struct {
	Cells   []string
	Link    string
	Actions []Action
}

// TableData — список ресурса с поиском и пагинацией.
type TableData struct {
	Title     string
	Nav       *Nav
	Path      string
	Columns   []string
	Rows      []Row
	Search    string
	Searching bool
	Page      int
	PerPage   int
	Total     int
	HasNext   bool
	CreateURL string
	Notice    string
	Error     string
	// Extra рендерится под таблицей (например, форма добавления).
	Extra templ.Component
}

// Table — страница списка.
func Table(d TableData) templ.Component {
	return Layout(d.Title, d.Nav, component(func(ctx context.Context, h *html) {
		h.child(ctx, Message("notice", d.Notice))
		h.child(ctx, Message("error", d.Error))

		if d.CreateURL != "" {
			h.raw(`<p><a`)
			h.url("href", d.CreateURL)
			h.raw(`>Создать</a></p>`)
		}
		if d.Searching {
			h.raw(`<form method="get"`)
			h.url("action", d.Path)
			h.raw(`><input type="search" name="search" placeholder="Поиск"`)
			h.attr("value", d.Search)
			h.raw(`> <button type="submit">Найти</button></form>`)
		}

		h.raw(`<table><tr>`)
		for _, c := range d.Columns {
			h.raw(`<th>`)
			h.text(c)
			h.raw(`</th>`)
		}
		h.raw(`<th></th></tr>`)
		if len(d.Rows) == 0 {
			h.raw(`<tr><td class="muted"`)
			h.attr("colspan", itoa(len(d.Columns)+1))
			h.raw(`>Нет записей</td></tr>`)
		}
		for _, row := range d.Rows {
			renderRow(h, row)
		}
		h.raw(`</table>`)

		renderPager(h, d)
		h.child(ctx, d.Extra)
	}))
}

func renderRow(h *html, row Row) {
	h.raw(`<tr>`)
	for i, cell := range row.Cells {
		h.raw(`<td>`)
		if i == 0 && row.Link != "" {
			h.raw(`<a`)
			h.url("href", row.Link)
			h.raw(`>`)
			h.text(cell)
			h.raw(`</a>`)
		} else {
			h.text(cell)
		}
		h.raw(`</td>`)
	}
	h.raw(`<td>`)
	for _, a := range row.Actions {
		h.raw(`<form class="inline" method="post"`)
		h.url("action", a.URL)
		if a.Confirm != "" {
			h.attr("onsubmit", "return confirm("+jsString(a.Confirm)+")")
		}
		h.raw(`><button type="submit">`)
		h.text(a.Label)
		h.raw(`</button></form> `)
	}
	h.raw(`</td></tr>`)
}

func renderPager(h *html, d TableData) {
	if d.Page <= 1 && !d.HasNext {
		return
	}
	h.raw(`<p>`)
	if d.Page > 1 {
		h.raw(`<a`)
		h.url("href", pageURL(d.Path, d.Search, d.Page-1, d.PerPage))
		h.raw(`>← Назад</a> `)
	}
	h.raw(`<span class="muted">Страница `)
	h.text(itoa(d.Page))
	if d.Total > 0 && d.PerPage > 0 {
		h.text(" из " + itoa((d.Total+d.PerPage-1)/d.PerPage))
	}
	h.raw(`</span>`)
	if d.HasNext {
		h.raw(` <a`)
		h.url("href", pageURL(d.Path, d.Search, d.Page+1, d.PerPage))
		h.raw(`>Вперёд →</a>`)
	}
	h.raw(`</p>`)
}

// pageURL строит ссылку на страницу списка с сохранением поиска.
func pageURL(path, search string, page, perPage int) string {
	q := url.Values{}
	q.Set("page", itoa(page))
	if perPage > 0 {
		q.Set("per_page", itoa(perPage))
	}
	if search != "" {
		q.Set("search", search)
	}
	return path + "?" + q.Encode()
}

// jsString — строковый литерал JavaScript в одинарных кавычках.
func jsString(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '\'')
	for _, r := range s {
		switch r {
		case '\'', '\\':
			out = append(out, '\\', r)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, r)
		}
	}
	return string(append(out, '\''))
}
