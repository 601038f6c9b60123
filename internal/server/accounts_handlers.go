package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/apperrors"
	"go.uber.org/zap"
)

const messageInvalidBody = "Validation failed: request body must be valid JSON"

type registerRequestPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	UserID    string `json:"userId"`
	ExpiresIn int64  `json:"expiresIn"`
}

type profileRequestPayload struct {
	ProfileImage *string `json:"profileImage"`
	Bio          *string `json:"bio"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.KindValidation, messageInvalidBody, err))
		return
	}
	account, err := h.accounts.Register(c.Request.Context(), accounts.Registration{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.KindValidation, messageInvalidBody, err))
		return
	}
	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(account.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.String("account_id", account.ID), zap.Error(err))
		h.respondError(c, apperrors.Wrap(apperrors.KindPersistence, "Failed to issue token", err))
		return
	}
	c.JSON(http.StatusOK, loginResponsePayload{
		Token:     token,
		Email:     account.Email,
		UserID:    account.ID,
		ExpiresIn: expiresIn,
	})
}

func (h *httpHandler) handleListAccounts(c *gin.Context) {
	list, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleGetAccount(c *gin.Context) {
	account, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) handleUpdateAccount(c *gin.Context) {
	var request profileRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.KindValidation, messageInvalidBody, err))
		return
	}
	account, err := h.accounts.UpdateProfile(c.Request.Context(), c.Param("id"), accounts.ProfileUpdate{
		ProfileImage: request.ProfileImage,
		Bio:          request.Bio,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	if err := h.authoring.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User successfully deleted"})
}
