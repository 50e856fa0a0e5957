// Пакет clients — реестр клиентов веб-консоли.
//
// Каждому браузеру (cookie console_client) соответствует Entry: своё
// хранилище токена, шлюз к API, Resolver и единственный session.Context.
// Реестр — LRU с TTL поверх hashicorp/golang-lru/v2/expirable; срок
// продлевается при каждом обращении, вытесненный контекст закрывается.
package clients

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/console-module/internal/contract"
	"github.com/bigkaa/goartstore/console-module/internal/gateway"
	"github.com/bigkaa/goartstore/console-module/internal/service"
	"github.com/bigkaa/goartstore/console-module/internal/session"
	"github.com/bigkaa/goartstore/console-module/internal/tokenstore"
)

// Prometheus-метрики реестра.
var (
	clientsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cm_clients_active",
		Help: "Количество клиентов консоли с активным контекстом сессии.",
	})
	clientsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_clients_evicted_total",
		Help: "Количество контекстов сессий, вытесненных из реестра (TTL или размер).",
	})
)

// Entry — всё, что относится к одному клиенту консоли.
type Entry struct {
	ID       string
	Context  *session.Context
	Resolver *session.Resolver
	Gateway  *gateway.Client

	Users       *service.UsersService
	Roles       *service.RolesService
	Departments *service.DepartmentsService
	Permissions *service.PermissionsService
}

// Options — параметры реестра.
type Options struct {
	// APIURL — базовый URL backend API.
	APIURL string
	// RequestTimeout — таймаут одного запроса к API.
	RequestTimeout time.Duration
	// HTTPClient — общий HTTP-клиент (nil — http.DefaultClient).
	HTTPClient *http.Client
	// Strict — валидатор контракта для строгой проверки конвертов (nil — мягкий режим).
	Strict *contract.Validator
	// Size — максимальное число удерживаемых клиентов.
	Size int
	// TTL — время жизни клиента без обращений.
	TTL time.Duration
}

// Registry — реестр клиентов. Безопасен для конкурентного использования.
type Registry struct {
	opts   Options
	stores tokenstore.Factory
	cache  *expirable.LRU[string, *Entry]
	mu     sync.Mutex // сериализует создание записей
	logger *slog.Logger
}

// NewRegistry создаёт реестр. stores выдаёт хранилище по идентификатору клиента.
func NewRegistry(opts Options, stores tokenstore.Factory, logger *slog.Logger) *Registry {
	r := &Registry{
		opts:   opts,
		stores: stores,
		logger: logger.With(slog.String("component", "client_registry")),
	}
	r.cache = expirable.NewLRU[string, *Entry](opts.Size, r.onEvict, opts.TTL)
	return r
}

// onEvict вызывается под блокировкой LRU: обращаться к кэшу нельзя.
func (r *Registry) onEvict(id string, e *Entry) {
	e.Context.Close()
	clientsActive.Dec()
	clientsEvictedTotal.Inc()
	r.logger.Debug("Клиент вытеснен из реестра", slog.String("client_id", id))
}

// Get возвращает запись клиента id, создавая её при первом обращении.
// Новая запись сразу начинает разрешение сессии. Обращение продлевает TTL.
func (r *Registry) Get(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.cache.Get(id); ok {
		r.cache.Add(id, e)
		return e
	}
	// Истёкшая, но ещё не удалённая запись: Add заменил бы её без onEvict.
	r.cache.Remove(id)

	e := r.build(id)
	r.cache.Add(id, e)
	clientsActive.Inc()
	e.Context.Start()

	r.logger.Debug("Клиент зарегистрирован", slog.String("client_id", id))
	return e
}

// Peek возвращает запись без создания и без продления TTL.
func (r *Registry) Peek(id string) (*Entry, bool) {
	return r.cache.Peek(id)
}

// Len возвращает число удерживаемых клиентов.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close закрывает все контексты сессий.
func (r *Registry) Close() {
	r.cache.Purge()
}

func (r *Registry) build(id string) *Entry {
	store := r.stores(id)
	logger := r.logger.With(slog.String("client_id", id))

	var sc *session.Context
	gw := gateway.New(r.opts.APIURL, store,
		gateway.WithHTTPClient(r.opts.HTTPClient),
		gateway.WithTimeout(r.opts.RequestTimeout),
		gateway.WithLogger(logger),
		gateway.OnSessionExpired(func(context.Context) {
			sc.Expire()
		}),
	)

	var resolverOpts []session.ResolverOption
	if r.opts.Strict != nil {
		resolverOpts = append(resolverOpts, session.WithStrictEnvelopes(r.opts.Strict))
	}
	resolver := session.NewResolver(gw, store, logger, resolverOpts...)
	sc = session.NewContext(resolver, logger)

	return &Entry{
		ID:          id,
		Context:     sc,
		Resolver:    resolver,
		Gateway:     gw,
		Users:       service.NewUsersService(gw, logger),
		Roles:       service.NewRolesService(gw, logger),
		Departments: service.NewDepartmentsService(gw, logger),
		Permissions: service.NewPermissionsService(gw, logger),
	}
}
