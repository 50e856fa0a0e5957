// list.go — постраничная загрузка списков ресурсов.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bigkaa/goartstore/console-module/internal/gateway"
)

// Параметры списка по умолчанию.
const (
	DefaultPerPage = 10
	MaxPerPage     = 1000
)

// API — запросы сервисного слоя. Реализуется gateway.Client.
type API interface {
	Get(ctx context.Context, path string, query url.Values) gateway.Outcome
	Post(ctx context.Context, path string, body any) gateway.Outcome
	Put(ctx context.Context, path string, body any) gateway.Outcome
	Delete(ctx context.Context, path string) gateway.Outcome
}

// resource — описание списка ресурса: путь, выбираемые поля и поле поиска.
type resource struct {
	path        string
	fields      string
	searchField string
}

// ListParams — параметры загрузки страницы.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// listQuery строит query-строку списка:
// select, page, per_page, sortby=id, order=desc и фильтр like по полю поиска.
func listQuery(res resource, p ListParams) url.Values {
	p = p.normalized()
	q := url.Values{}
	if res.fields != "" {
		q.Set("select", res.fields)
	}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
	q.Set("sortby", "id")
	q.Set("order", "desc")
	if p.Search != "" && res.searchField != "" {
		q.Set(res.searchField, "like."+p.Search)
	}
	return q
}

// Page — страница списка.
type Page[T any] struct {
	Items   []T
	Total   int
	Page    int
	PerPage int
}

// HasNext сообщает, есть ли следующая страница. Если API не сообщил
// общее количество, полная страница считается признаком продолжения.
func (p Page[T]) HasNext() bool {
	if p.Total > 0 {
		return p.Page*p.PerPage < p.Total
	}
	return len(p.Items) > 0 && len(p.Items) == p.PerPage
}

// TotalPages возвращает число страниц (0, если общее количество неизвестно).
func (p Page[T]) TotalPages() int {
	if p.Total <= 0 || p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// listEnvelope — известные формы ответа списка:
// [...], {data: [...]}, {data: {data: [...]}}, общее количество в total или meta.total.
type listEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Total *int            `json:"total"`
	Meta  struct {
		Total *int `json:"total"`
	} `json:"meta"`
}

func (e listEnvelope) total() (int, bool) {
	if e.Meta.Total != nil {
		return *e.Meta.Total, true
	}
	if e.Total != nil {
		return *e.Total, true
	}
	return 0, false
}

// parseList извлекает элементы и общее количество из тела ответа.
func parseList[T any](body json.RawMessage) ([]T, int, error) {
	body = bytes.TrimSpace(body)
	total := 0
	for range 2 {
		if len(body) == 0 {
			break
		}
		if body[0] == '[' {
			var items []T
			if err := json.Unmarshal(body, &items); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
			}
			return items, total, nil
		}
		var env listEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		if t, ok := env.total(); ok && total == 0 {
			total = t
		}
		body = bytes.TrimSpace(env.Data)
	}
	if len(body) > 0 && body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return items, total, nil
	}
	return nil, 0, fmt.Errorf("%w: в ответе нет списка", ErrUnexpectedResponse)
}

// listResource загружает страницу ресурса.
func listResource[T any](ctx context.Context, api API, res resource, params ListParams) (Page[T], error) {
	params = params.normalized()
	out := api.Get(ctx, res.path, listQuery(res, params))
	if err := outcomeError(out); err != nil {
		return Page[T]{}, err
	}
	items, total, err := parseList[T](out.Data)
	if err != nil {
		return Page[T]{}, fmt.Errorf("список %s: %w", res.path, err)
	}
	return Page[T]{Items: items, Total: total, Page: params.Page, PerPage: params.PerPage}, nil
}

// decodeEntity декодирует сущность, разворачивая до двух уровней {data: {...}}.
// Пустое тело даёт nil без ошибки.
func decodeEntity[T any](out gateway.Outcome) (*T, error) {
	body := bytes.TrimSpace(out.Data)
	if len(body) == 0 {
		return nil, nil
	}
	for range 2 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(body, &env) != nil {
			break
		}
		inner := bytes.TrimSpace(env.Data)
		if len(inner) == 0 || inner[0] != '{' {
			break
		}
		body = inner
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &v, nil
}

// Pager загружает список страница за страницей по требованию.
type Pager[T any] struct {
	fetch  func(context.Context, ListParams) (Page[T], error)
	params ListParams
	done   bool
}

// NewPager создаёт Pager, начиная со страницы params.Page.
func NewPager[T any](fetch func(context.Context, ListParams) (Page[T], error), params ListParams) *Pager[T] {
	return &Pager[T]{fetch: fetch, params: params.normalized()}
}

// Next загружает следующую страницу. false — страниц больше нет.
func (p *Pager[T]) Next(ctx context.Context) (Page[T], bool, error) {
	if p.done {
		return Page[T]{}, false, nil
	}
	page, err := p.fetch(ctx, p.params)
	if err != nil {
		return Page[T]{}, false, err
	}
	if len(page.Items) == 0 {
		p.done = true
		return page, false, nil
	}
	if !page.HasNext() {
		p.done = true
	}
	p.params.Page++
	return page, true, nil
}

// All загружает все страницы, но не более limit элементов (0 — без ограничения).
func (p *Pager[T]) All(ctx context.Context, limit int) ([]T, error) {
	var all []T
	for {
		page, ok, err := p.Next(ctx)
		if err != nil {
			return all, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, page.Items...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
	}
}
