package service

import (
	"context"
	"errors"
	"testing"
)

func TestListQuery(t *testing.T) {
	tests := []struct {
		name   string
		res    resource
		params ListParams
		want   string
	}{
		{
			name:   "пользователи, значения по умолчанию",
			res:    usersResource,
			params: ListParams{},
			want:   "order=desc&page=1&per_page=10&select=id%2Cname%2Cemail%2Crole%2Cstatus&sortby=id",
		},
		{
			name:   "роли с поиском",
			res:    rolesResource,
			params: ListParams{Page: 3, PerPage: 25, Search: "adm"},
			want:   "name=like.adm&order=desc&page=3&per_page=25&select=id%2Cname&sortby=id",
		},
		{
			name:   "отделы: поиск по имени и коду",
			res:    departmentsResource,
			params: ListParams{Page: 1, PerPage: 10, Search: "it"},
			want:   "name%2Ccode=like.it&order=desc&page=1&per_page=10&select=id%2Cname%2Ccode&sortby=id",
		},
		{
			name:   "per_page ограничен сверху",
			res:    resource{path: "/x"},
			params: ListParams{PerPage: 5000},
			want:   "order=desc&page=1&per_page=1000&sortby=id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listQuery(tt.res, tt.params).Encode(); got != tt.want {
				t.Errorf("listQuery() = %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNames []string
		wantTotal int
		wantErr   bool
	}{
		{"голый массив", `[{"id":1,"name":"a"}]`, []string{"a"}, 0, false},
		{"data-массив и total", `{"data":[{"id":1,"name":"a"},{"id":2,"name":"b"}],"total":12}`, []string{"a", "b"}, 12, false},
		{"meta.total", `{"data":[{"id":1,"name":"a"}],"meta":{"total":7}}`, []string{"a"}, 7, false},
		{"двойная вложенность", `{"data":{"data":[{"id":"x","name":"c"}],"total":3}}`, []string{"c"}, 3, false},
		{"пустой список", `{"data":[]}`, []string{}, 0, false},
		{"нет списка", `{"message":"ok"}`, nil, 0, true},
		{"не JSON", `oops`, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := parseList[Role]([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrUnexpectedResponse) {
					t.Errorf("ожидалась ErrUnexpectedResponse, получено %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseList() error: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) != len(tt.wantNames) {
				t.Fatalf("items = %+v, want %v", items, tt.wantNames)
			}
			for i, it := range items {
				if it.Name != tt.wantNames[i] {
					t.Errorf("items[%d].Name = %q, want %q", i, it.Name, tt.wantNames[i])
				}
			}
		})
	}
}

func TestPage_HasNext(t *testing.T) {
	tests := []struct {
		name string
		page Page[int]
		want bool
	}{
		{"известен total, есть ещё", Page[int]{Items: []int{1, 2}, Total: 5, Page: 1, PerPage: 2}, true},
		{"известен total, последняя", Page[int]{Items: []int{5}, Total: 5, Page: 3, PerPage: 2}, false},
		{"total неизвестен, полная страница", Page[int]{Items: []int{1, 2}, Page: 1, PerPage: 2}, true},
		{"total неизвестен, неполная", Page[int]{Items: []int{1}, Page: 1, PerPage: 2}, false},
		{"пустая", Page[int]{Page: 1, PerPage: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.page.HasNext(); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (Page[int]{Total: 5, PerPage: 2}).TotalPages(); got != 3 {
		t.Errorf("TotalPages() = %d, want 3", got)
	}
	if got := (Page[int]{PerPage: 2}).TotalPages(); got != 0 {
		t.Errorf("TotalPages() без total = %d, want 0", got)
	}
}

func TestPager(t *testing.T) {
	data := []int{1, 2, 3, 4, 5}
	var requested []int
	fetch := func(_ context.Context, p ListParams) (Page[int], error) {
		requested = append(requested, p.Page)
		start := (p.Page - 1) * p.PerPage
		end := min(start+p.PerPage, len(data))
		if start >= len(data) {
			return Page[int]{Page: p.Page, PerPage: p.PerPage, Total: len(data)}, nil
		}
		return Page[int]{Items: data[start:end], Page: p.Page, PerPage: p.PerPage, Total: len(data)}, nil
	}

	t.Run("все страницы", func(t *testing.T) {
		requested = nil
		all, err := NewPager(fetch, ListParams{PerPage: 2}).All(context.Background(), 0)
		if err != nil {
			t.Fatalf("All() error: %v", err)
		}
		if len(all) != 5 {
			t.Errorf("All() = %v", all)
		}
		if len(requested) != 3 {
			t.Errorf("запрошены страницы %v, ожидалось 3 запроса", requested)
		}
	})

	t.Run("ограничение количества", func(t *testing.T) {
		requested = nil
		all, err := NewPager(fetch, ListParams{PerPage: 2}).All(context.Background(), 3)
		if err != nil {
			t.Fatalf("All() error: %v", err)
		}
		if len(all) != 3 || len(requested) != 2 {
			t.Errorf("All() = %v, запросы %v", all, requested)
		}
	})

	t.Run("после конца Next возвращает false", func(t *testing.T) {
		p := NewPager(fetch, ListParams{Page: 3, PerPage: 2})
		page, more, err := p.Next(context.Background())
		if err != nil || !more || len(page.Items) != 1 {
			t.Fatalf("Next() = %+v, %v, %v", page, more, err)
		}
		if _, more, _ := p.Next(context.Background()); more {
			t.Error("ожидался конец списка")
		}
	})

	t.Run("ошибка загрузки", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewPager(func(context.Context, ListParams) (Page[int], error) { return Page[int]{}, boom }, ListParams{})
		if _, err := p.All(context.Background(), 0); !errors.Is(err, boom) {
			t.Errorf("ожидалась boom, получено %v", err)
		}
	})
}
