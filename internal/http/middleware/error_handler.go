package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		statusCode := http.StatusInternalServerError
		code := apperror.ErrCodeInternal
		message := "внутренняя ошибка сервера"

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			statusCode = appErr.HTTPStatus
			code = appErr.Code
			if !masked(appErr.Code) {
				message = appErr.Message
			}
		}

		fields := logrus.Fields{
			"error":  err.Error(),
			"code":   code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}
		if statusCode >= http.StatusInternalServerError {
			logger.L().WithFields(fields).Error("Request error")
		} else {
			logger.L().WithFields(fields).Debug("Request rejected")
		}

		c.JSON(statusCode, gin.H{"error": message, "code": code})
	}
}

// masked коды, текст которых может содержать детали хранилища.
func masked(code apperror.ErrorCode) bool {
	return code == apperror.ErrCodeInternal || code == apperror.ErrCodeDatabaseError
}
