package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: api.GET("/withdrawals/:id", UUIDValidator("id"), handler.GetWithdrawal)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			_ = c.Error(apperror.Validation("параметр %s должен быть валидным UUID", paramName))
			c.Abort()
			return
		}
		c.Next()
	}
}
