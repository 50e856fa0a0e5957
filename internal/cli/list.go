package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/console-module/internal/service"
)

// listFlags — параметры постраничной загрузки.
type listFlags struct {
	page    int
	perPage int
	search  string
	all     bool
	limit   int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "номер страницы")
	cmd.Flags().IntVar(&f.perPage, "per-page", service.DefaultPerPage, "записей на странице")
	cmd.Flags().StringVar(&f.search, "search", "", "поиск по вхождению")
	cmd.Flags().BoolVar(&f.all, "all", false, "загрузить все страницы")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "с --all: не более указанного числа записей (0 — без ограничения)")
}

func (f *listFlags) params() service.ListParams {
	return service.ListParams{Page: f.page, PerPage: f.perPage, Search: f.search}
}

func newListCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать справочники консоли",
	}
	cmd.AddCommand(
		newListUsersCommand(a),
		newListRolesCommand(a),
		newListDepartmentsCommand(a),
		newListPermissionsCommand(a),
	)
	return cmd
}

func newListUsersCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Пользователи",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireSession(cmd); err != nil {
				return err
			}
			header := []string{"ID", "Имя", "Email", "Роль", "Статус"}
			row := func(u service.User) []string {
				return []string{u.ID.String(), u.Name, u.Email, u.Role, u.Status}
			}
			return runList(cmd, &f, a.client.users.List, a.client.users.Pager, header, row, "пользователей")
		},
	}
	f.register(cmd)
	return cmd
}

func newListRolesCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Роли",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireSession(cmd); err != nil {
				return err
			}
			header := []string{"ID", "Название", "Описание"}
			row := func(r service.Role) []string {
				return []string{r.ID.String(), r.Name, r.Description}
			}
			return runList(cmd, &f, a.client.roles.List, a.client.roles.Pager, header, row, "ролей")
		},
	}
	f.register(cmd)
	return cmd
}

func newListDepartmentsCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "departments",
		Short: "Отделы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireSession(cmd); err != nil {
				return err
			}
			header := []string{"ID", "Название", "Код", "Удалён"}
			row := func(d service.Department) []string {
				return []string{d.ID.String(), d.Name, d.Code, d.DeletedAt}
			}
			return runList(cmd, &f, a.client.departments.List, a.client.departments.Pager, header, row, "отделов")
		},
	}
	f.register(cmd)
	return cmd
}

func newListPermissionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Права",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireSession(cmd); err != nil {
				return err
			}
			items, err := a.client.permissions.List(cmd.Context())
			if err != nil {
				return listError("прав", err)
			}

			rows := [][]string{{"ID", "Название", "Описание"}}
			for _, p := range items {
				rows = append(rows, []string{p.ID.String(), p.Name, p.Description})
			}
			if err := renderTable(cmd, rows); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), pterm.Info.Sprintf("Всего: %d", len(items)))
			return nil
		},
	}
}

// runList загружает одну страницу или, с --all, все страницы через Pager
// и выводит их таблицей.
func runList[T any](
	cmd *cobra.Command,
	f *listFlags,
	list func(context.Context, service.ListParams) (service.Page[T], error),
	pager func(service.ListParams) *service.Pager[T],
	header []string,
	row func(T) []string,
	what string,
) error {
	rows := [][]string{header}

	if f.all {
		items, err := pager(f.params()).All(cmd.Context(), f.limit)
		if err != nil {
			return listError(what, err)
		}
		for _, item := range items {
			rows = append(rows, row(item))
		}
		if err := renderTable(cmd, rows); err != nil {
			return err
		}
		fmt.Fprintln(out(cmd), pterm.Info.Sprintf("Загружено: %d", len(items)))
		return nil
	}

	page, err := list(cmd.Context(), f.params())
	if err != nil {
		return listError(what, err)
	}
	for _, item := range page.Items {
		rows = append(rows, row(item))
	}
	if err := renderTable(cmd, rows); err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), pterm.Info.Sprintf("Страница %d из %d, всего: %d",
		page.Page, page.TotalPages(), page.Total))
	return nil
}

func renderTable(cmd *cobra.Command, rows [][]string) error {
	if len(rows) == 1 {
		fmt.Fprintln(out(cmd), pterm.Warning.Sprint("Записей нет"))
		return nil
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Srender()
	if err != nil {
		return fmt.Errorf("вывод таблицы: %w", err)
	}
	fmt.Fprintln(out(cmd), table)
	return nil
}

// listError дополняет ошибку подсказкой, когда сессия истекла.
func listError(what string, err error) error {
	if errors.Is(err, service.ErrSessionExpired) {
		return fmt.Errorf("загрузка %s: %w (выполните consolectl login)", what, err)
	}
	return fmt.Errorf("загрузка %s: %w", what, err)
}
