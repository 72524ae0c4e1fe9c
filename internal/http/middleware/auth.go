package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextSubjectKey = "subject"
	ContextRoleKey    = "role"
)

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			_ = c.Error(apperror.ErrUnauthorized)
			c.Abort()
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		subject, role, err := tokens.ParseAccess(raw)
		if err != nil {
			_ = c.Error(apperror.Wrap(err, apperror.ErrCodeUnauthorized, "токен невалиден"))
			c.Abort()
			return
		}

		c.Set(ContextSubjectKey, subject)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole пропускает запросы с достаточной ролью. Оператору доступно
// всё, что доступно наблюдателю.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := c.GetString(ContextRoleKey)
		if current == service.RoleOperator || current == role {
			c.Next()
			return
		}
		_ = c.Error(apperror.ErrForbidden)
		c.Abort()
	}
}
