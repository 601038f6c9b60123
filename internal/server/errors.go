package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/apperrors"
)

const messageUnexpected = "An unexpected error occurred"

type errorResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Stack   *string `json:"stack"`
}

// respondError aborts the request with the uniform error body for err.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	message := apperrors.MessageOf(err)
	if kind == "" {
		message = messageUnexpected
	}

	var stack *string
	if h.exposeStacks {
		trace := err.Error()
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			trace = appErr.Stack()
		}
		stack = &trace
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Status: "error", Message: message, Stack: stack})
}

func (h *httpHandler) handleNotFound(c *gin.Context) {
	h.respondError(c, apperrors.Newf(apperrors.KindNotFound, "Not Found - %s", c.Request.URL.RequestURI()))
}
