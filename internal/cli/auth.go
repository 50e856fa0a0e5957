package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/console-module/internal/session"
)

func newLoginCommand(a *app) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти в backend API и сохранить токен",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("укажите --email")
			}

			switch {
			case passwordStdin:
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("чтение пароля из stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			case password == "":
				p, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Пароль")
				if err != nil {
					return fmt.Errorf("ввод пароля: %w", err)
				}
				password = p
			}

			outcome, rec := a.client.session.Login(cmd.Context(), email, password)
			if !outcome.Success {
				return fmt.Errorf("вход не выполнен: %s", outcome.Error)
			}
			if !rec.Authenticated() {
				return errors.New("токен получен, но сессию разрешить не удалось")
			}

			fmt.Fprintln(out(cmd), pterm.Success.Sprintf("Вход выполнен: %s", describeIdentity(rec.Identity)))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email пользователя")
	cmd.Flags().StringVar(&password, "password", "", "пароль (без флага запрашивается интерактивно)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "прочитать пароль из первой строки stdin")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Завершить сессию и удалить сохранённый токен",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Серверный выход выполняется без учёта результата,
			// локальное состояние очищается всегда.
			a.client.session.Logout(cmd.Context())
			fmt.Fprintln(out(cmd), pterm.Success.Sprint("Выход выполнен"))
			return nil
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Показать текущего пользователя, его роли и права",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cached {
				return printCached(cmd, a)
			}

			rec, err := a.requireSession(cmd)
			if err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintln(w, pterm.Info.Sprintf("Пользователь: %s", describeIdentity(rec.Identity)))
			printAccess(cmd, rec.Roles, rec.Permissions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "показать сохранённый снимок без запросов к API")
	return cmd
}

// printCached выводит последний сохранённый снимок сессии.
// Снимок не подтверждён сервером и не считается входом.
func printCached(cmd *cobra.Command, a *app) error {
	snap, ok := a.client.resolver.Cached(cmd.Context())
	if !ok {
		return errors.New("сохранённого снимка сессии нет")
	}

	w := out(cmd)
	fmt.Fprintln(w, pterm.Warning.Sprintf("Снимок от %s, не подтверждён сервером",
		snap.SavedAt.Local().Format(time.DateTime)))
	fmt.Fprintln(w, pterm.Info.Sprintf("Пользователь: %s", describeIdentity(snap.Identity)))
	printAccess(cmd, snap.Roles, snap.Permissions)
	return nil
}

func printAccess(cmd *cobra.Command, roles, permissions []string) {
	w := out(cmd)
	fmt.Fprintf(w, "Роли:  %s\n", joinOrDash(roles))
	fmt.Fprintf(w, "Права: %s\n", joinOrDash(permissions))
}

func describeIdentity(id *session.Identity) string {
	if id == nil {
		return "-"
	}
	name := id.Name
	if name == "" {
		name = id.ID
	}
	if id.Email != "" {
		name += " <" + id.Email + ">"
	}
	return name
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
