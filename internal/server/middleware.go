package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/apperrors"
	"github.com/inkpath/backend/internal/auth"
	"go.uber.org/zap"
)

const (
	accountContextKey = "inkpath_account"
	requestIDHeader   = "X-Request-ID"
	bearerPrefix      = "Bearer "
)

const (
	messageMissingToken = "Not authorised, no token provided"
	messageInvalidToken = "Invalid token"
)

// requestLogger logs one line per request with a request id; health and metrics probes
// are not logged.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				logger.Error("request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("client error", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// authorizeRequest requires a valid bearer token naming an existing account and attaches
// that account to the request.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		authFailuresTotal.WithLabelValues("missing_token").Inc()
		h.respondError(c, apperrors.New(apperrors.KindMissingToken, messageMissingToken))
		return
	}

	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		authFailuresTotal.WithLabelValues("invalid_token").Inc()
		h.respondError(c, apperrors.Wrap(apperrors.KindInvalidToken, messageInvalidToken, err))
		return
	}

	account, err := h.accounts.Resolve(c.Request.Context(), subject)
	if err != nil {
		if apperrors.HasKind(err, apperrors.KindAccountNotFound) {
			authFailuresTotal.WithLabelValues("account_not_found").Inc()
		}
		h.respondError(c, err)
		return
	}
	c.Set(accountContextKey, account)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}

func callerFrom(c *gin.Context) (accounts.Account, bool) {
	value, exists := c.Get(accountContextKey)
	if !exists {
		return accounts.Account{}, false
	}
	account, ok := value.(accounts.Account)
	return account, ok && account.ID != ""
}
