// Пакет cli — команды consolectl.
//
// Процесс consolectl — один клиент консоли: одна запись сессии на всё
// время работы, токен хранится в JSON-файле (--credentials).
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/console-module/internal/config"
	"github.com/bigkaa/goartstore/console-module/internal/gateway"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
)

// storeNamespace — пространство имён consolectl в файле учётных данных.
const storeNamespace = "consolectl"

// errNotLoggedIn — команда требует аутентифицированной сессии.
var errNotLoggedIn = errors.New("вход не выполнен: выполните consolectl login")

// options — значения глобальных флагов.
type options struct {
	apiURL      string
	credentials string
	timeout     time.Duration
	logLevel    string
}

// client — собранные зависимости одной команды.
type client struct {
	logger   *slog.Logger
	gateway  *gateway.Client
	resolver *session.Resolver
	session  *session.Context

	users       *service.UsersService
	roles       *service.RolesService
	departments *service.DepartmentsService
	permissions *service.PermissionsService
}

// app связывает корневую команду с клиентом, который создаётся
// в PersistentPreRunE и закрывается в PersistentPostRun.
type app struct {
	opts    options
	loadErr error
	client  *client
}

// NewRootCommand создаёт дерево команд consolectl.
// Умолчания флагов берутся из переменных окружения CM_*.
func NewRootCommand() *cobra.Command {
	a := &app{}

	defaults, err := config.LoadClient()
	if err != nil {
		a.loadErr = err
		defaults = &config.ClientConfig{
			APIURL:         config.DefaultAPIURL,
			RequestTimeout: 10 * time.Second,
			LogLevel:       slog.LevelWarn,
		}
	}

	root := &cobra.Command{
		Use:   "consolectl",
		Short: "Консоль администрирования: вход, сессия и справочники",
		Long: `consolectl — клиент командной строки консоли администрирования.
Выполняет вход в backend API, показывает состояние сессии и списки
пользователей, ролей, отделов и прав.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.apiURL, "api-url", defaults.APIURL, "базовый URL backend API (CM_API_URL)")
	flags.StringVar(&a.opts.credentials, "credentials", defaults.CredentialsPath, "файл учётных данных (CM_CREDENTIALS_FILE)")
	flags.DurationVar(&a.opts.timeout, "timeout", defaults.RequestTimeout, "таймаут запроса к API (CM_REQUEST_TIMEOUT)")
	flags.StringVar(&a.opts.logLevel, "log-level", defaults.LogLevel.String(), "уровень логирования: debug, info, warn, error")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newStatusCommand(a),
		newListCommand(a),
	)
	return root
}

// Execute запускает consolectl и завершает процесс с кодом 1 при ошибке.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

// setup собирает клиент: файл учётных данных, шлюз, Resolver и Context.
func (a *app) setup(cmd *cobra.Command) error {
	if a.loadErr != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", a.loadErr)
	}
	if a.opts.credentials == "" {
		return errors.New("не задан файл учётных данных: укажите --credentials")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.opts.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})).
		With(slog.String("component", "consolectl"))

	backend, err := tokenstore.NewFileBackend(a.opts.credentials)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла учётных данных: %w", err)
	}
	store := tokenstore.New(backend, storeNamespace, logger)

	c := &client{logger: logger}
	c.gateway = gateway.New(a.opts.apiURL, store,
		gateway.WithTimeout(a.opts.timeout),
		gateway.WithLogger(logger),
		gateway.OnSessionExpired(func(_ context.Context) {
			c.session.Expire()
		}),
	)
	c.resolver = session.NewResolver(c.gateway, store, logger)
	c.session = session.NewContext(c.resolver, logger)
	c.users = service.NewUsersService(c.gateway, logger)
	c.roles = service.NewRolesService(c.gateway, logger)
	c.departments = service.NewDepartmentsService(c.gateway, logger)
	c.permissions = service.NewPermissionsService(c.gateway, logger)

	a.client = c
	return nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.session.Close()
	}
}

// requireSession запускает разрешение сессии и ждёт результата.
// Без аутентификации возвращает errNotLoggedIn.
func (a *app) requireSession(cmd *cobra.Command) (session.Record, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*a.opts.timeout)
	defer cancel()

	a.client.session.Start()
	rec, err := a.client.session.Await(ctx)
	if err != nil {
		return rec, fmt.Errorf("ожидание разрешения сессии: %w", err)
	}
	if !rec.Authenticated() {
		return rec, errNotLoggedIn
	}
	return rec, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
