package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/console-module/internal/gateway"
)

// Authenticator — операции разрешения сессии. Реализуется Resolver,
// в тестах подменяется фейком.
type Authenticator interface {
	Login(ctx context.Context, email, password string) gateway.Outcome
	ResolveSession(ctx context.Context) Record
	Logout(ctx context.Context)
}

// Context — единственный держатель записи сессии клиента.
//
// Переходы: uninitialized → loading (Start) → authenticated | unauthenticated;
// Refresh и Login снова переводят в loading; Logout и Expire сразу дают
// unauthenticated. Каждая попытка разрешения получает номер поколения,
// фиксируется только результат последней выданной попытки.
// После Close результаты отбрасываются, подписки закрываются.
//
// Безопасен для конкурентного использования.
type Context struct {
	auth   Authenticator
	logger *slog.Logger

	mu      sync.RWMutex
	record  Record
	gen     uint64
	settled chan struct{} // закрывается, когда запись покидает loading
	closed  bool
	subs    map[int]chan Record
	nextSub int
}

// NewContext создаёт контекст в состоянии uninitialized.
func NewContext(auth Authenticator, logger *slog.Logger) *Context {
	return &Context{
		auth:    auth,
		logger:  logger.With(slog.String("component", "session_context")),
		record:  Record{State: StateUninitialized, Roles: []string{}, Permissions: []string{}},
		settled: make(chan struct{}),
		subs:    make(map[int]chan Record),
	}
}

// Start запускает первое разрешение сессии. Повторные вызовы ничего не делают.
// Проверка состояния и выдача поколения идут под одной блокировкой.
func (c *Context) Start() {
	c.mu.Lock()
	if c.record.State != StateUninitialized {
		c.mu.Unlock()
		return
	}
	gen, ok := c.beginLocked()
	c.mu.Unlock()
	if ok {
		c.resolveAsync(gen)
	}
}

// Refresh запускает новое разрешение сессии в фоне.
func (c *Context) Refresh() {
	gen, ok := c.begin()
	if !ok {
		return
	}
	c.resolveAsync(gen)
}

func (c *Context) resolveAsync(gen uint64) {
	go func() {
		rec := c.auth.ResolveSession(context.Background())
		c.commit(gen, rec)
	}()
}

// Login выполняет вход и затем полное разрешение сессии. Роли и права
// берутся только из разрешения, а не из ответа на вход.
// Возвращает исход входа и запись после разрешения.
func (c *Context) Login(ctx context.Context, email, password string) (gateway.Outcome, Record) {
	out := c.auth.Login(ctx, email, password)
	if !out.Success {
		return out, c.Snapshot()
	}

	gen, ok := c.begin()
	if !ok {
		return out, c.Snapshot()
	}
	// Разрешение не должно прерываться отменой запроса пользователя.
	rec := c.auth.ResolveSession(context.WithoutCancel(ctx))
	c.commit(gen, rec)
	return out, c.Snapshot()
}

// Logout завершает сессию на сервере (без учёта результата) и сбрасывает
// запись в исходное неаутентифицированное состояние. Незавершённые
// разрешения отбрасываются.
func (c *Context) Logout(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	c.auth.Logout(context.WithoutCancel(ctx))
	c.reset("logout")
}

// Expire принудительно переводит сессию в unauthenticated. Вызывается
// шлюзом после ответа 401, хранилище к этому моменту уже очищено.
func (c *Context) Expire() {
	c.reset("expired")
}

// reset фиксирует неаутентифицированное состояние новым поколением.
func (c *Context) reset(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.gen++
	c.record = Record{State: StateUnauthenticated, Roles: []string{}, Permissions: []string{}}
	c.markSettledLocked()
	c.broadcastLocked()
	c.logger.Debug("Сессия сброшена", slog.String("reason", reason))
}

// begin переводит запись в loading и выдаёт номер поколения.
func (c *Context) begin() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked()
}

func (c *Context) beginLocked() (uint64, bool) {
	if c.closed {
		return 0, false
	}

	c.gen++
	if isClosed(c.settled) {
		c.settled = make(chan struct{})
	}
	c.record.State = StateLoading
	c.broadcastLocked()
	return c.gen, true
}

// commit фиксирует результат попытки gen, если она последняя.
func (c *Context) commit(gen uint64, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("Результат разрешения отброшен: контекст закрыт")
		return
	}
	if gen != c.gen {
		c.logger.Debug("Результат устаревшего разрешения отброшен",
			slog.Uint64("generation", gen),
			slog.Uint64("current", c.gen),
		)
		return
	}

	c.record = rec.clone()
	c.markSettledLocked()
	c.broadcastLocked()
}

func (c *Context) markSettledLocked() {
	if !isClosed(c.settled) {
		close(c.settled)
	}
}

// Snapshot возвращает копию текущей записи.
func (c *Context) Snapshot() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.clone()
}

// State возвращает текущее состояние.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.State
}

// Checker возвращает предикаты авторизации по текущей записи.
func (c *Context) Checker() *rbac.Checker {
	return c.Snapshot().Checker()
}

// Await ждёт завершения разрешения сессии или отмены ctx и возвращает
// текущую запись. При отмене вместе с записью возвращается ctx.Err().
func (c *Context) Await(ctx context.Context) (Record, error) {
	for {
		c.mu.RLock()
		rec := c.record.clone()
		ch := c.settled
		closed := c.closed
		c.mu.RUnlock()

		if rec.State.Settled() || closed {
			return rec, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return rec, ctx.Err()
		}
	}
}

// Subscribe возвращает канал с обновлениями записи и функцию отписки.
// В канале всегда хранится самое свежее значение: медленный подписчик
// пропускает промежуточные состояния.
func (c *Context) Subscribe() (<-chan Record, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Record, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.record.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Context) broadcastLocked() {
	rec := c.record.clone()
	for _, ch := range c.subs {
		select {
		case ch <- rec:
		default:
			// Вытесняем устаревшее значение
			select {
			case <-ch:
			default:
			}
			ch <- rec
		}
	}
}

// Close закрывает контекст: последующие результаты разрешения
// отбрасываются, подписки закрываются, ожидающие Await возвращаются.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.markSettledLocked()
}

// Closed сообщает, закрыт ли контекст.
func (c *Context) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
