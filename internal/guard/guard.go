// Пакет guard — решение о доступе к странице консоли.
//
// Decide — чистая функция: состояние сессии и требования маршрута
// на входе, одно из трёх решений на выходе (показать, подождать,
// перенаправить). Выполняется один раз на каждую навигацию.
package guard

import (
	"net/url"
	"strings"

	"github.com/bigkaa/goartstore/console-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/console-module/internal/session"
)

// Цели перенаправления.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	// DefaultReturnPath — куда возвращать после входа без параметра from.
	DefaultReturnPath = "/dashboard"
)

// Kind — вид решения.
type Kind int

const (
	// Render — страницу можно показывать.
	Render Kind = iota
	// Suspend — сессия ещё разрешается, решения пока нет.
	Suspend
	// Redirect — перенаправить на Target.
	Redirect
)

// String возвращает название решения для логов и метрик.
func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Suspend:
		return "suspend"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision — результат проверки навигации.
type Decision struct {
	Kind   Kind
	Target string
}

// Decide принимает решение для запрошенного пути from.
//
// Порядок проверок фиксирован: загрузка, аутентификация, роли, права.
// Неаутентифицированный пользователь всегда уходит на вход, даже если
// ролей ему бы тоже не хватило. Пустой список требований означает
// отсутствие проверки.
func Decide(state session.State, checker *rbac.Checker, req rbac.Requirement, from string) Decision {
	switch {
	case !state.Settled():
		return Decision{Kind: Suspend}
	case state != session.StateAuthenticated:
		return Decision{Kind: Redirect, Target: LoginTarget(from)}
	case !checker.RolesSatisfied(req):
		return Decision{Kind: Redirect, Target: UnauthorizedPath}
	case !checker.PermissionsSatisfied(req):
		return Decision{Kind: Redirect, Target: UnauthorizedPath}
	default:
		return Decision{Kind: Render}
	}
}

// LoginTarget строит адрес страницы входа с исходным путём в параметре from.
func LoginTarget(from string) string {
	if from == "" || from == LoginPath || !isLocalPath(from) {
		return LoginPath
	}
	return LoginPath + "?from=" + url.QueryEscape(from)
}

// ReturnPath проверяет значение from после входа. Допускаются только
// локальные пути, иначе возвращается DefaultReturnPath.
func ReturnPath(from string) string {
	if !isLocalPath(from) || from == LoginPath || strings.HasPrefix(from, LoginPath+"?") {
		return DefaultReturnPath
	}
	return from
}

// isLocalPath — путь внутри консоли, без схемы и хоста.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
