package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/apperrors"
	"github.com/inkpath/backend/internal/stories"
)

type storyUpdateRequestPayload struct {
	Title    *string            `json:"title"`
	Synopsis *string            `json:"synopsis"`
	Publish  *bool              `json:"publish"`
	Chapters *[]stories.Chapter `json:"chapters"`
}

type publishRequestPayload struct {
	Publish *bool `json:"publish"`
}

func (h *httpHandler) handleListStories(c *gin.Context) {
	list, err := h.stories.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleGetStory(c *gin.Context) {
	story, err := h.stories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *httpHandler) handleCreateStory(c *gin.Context) {
	caller, _ := callerFrom(c)
	story, err := h.authoring.CreateStory(c.Request.Context(), caller.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *httpHandler) handleUpdateStory(c *gin.Context) {
	var request storyUpdateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.KindValidation, messageInvalidBody, err))
		return
	}
	story, err := h.stories.Update(c.Request.Context(), c.Param("id"), stories.Update{
		Title:    request.Title,
		Synopsis: request.Synopsis,
		Publish:  request.Publish,
		Chapters: request.Chapters,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": story})
}

func (h *httpHandler) handleDeleteStory(c *gin.Context) {
	if err := h.authoring.DeleteStory(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Story successfully deleted"})
}

func (h *httpHandler) handleLike(c *gin.Context) {
	caller, _ := callerFrom(c)
	story, err := h.stories.Like(c.Request.Context(), c.Param("id"), caller.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *httpHandler) handleUnlike(c *gin.Context) {
	caller, _ := callerFrom(c)
	story, err := h.stories.Unlike(c.Request.Context(), c.Param("id"), caller.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *httpHandler) handleIsLiked(c *gin.Context) {
	caller, _ := callerFrom(c)
	liked, err := h.stories.IsLikedBy(c.Request.Context(), c.Param("id"), caller.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *httpHandler) handleSetPublish(c *gin.Context) {
	var request publishRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.KindValidation, messageInvalidBody, err))
		return
	}
	if request.Publish == nil {
		h.respondError(c, apperrors.New(apperrors.KindValidation, "Validation failed: publish is required"))
		return
	}
	story, err := h.stories.SetPublish(c.Request.Context(), c.Param("id"), *request.Publish)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *httpHandler) handleAddFavourite(c *gin.Context) {
	caller, _ := callerFrom(c)
	account, err := h.authoring.AddFavourite(c.Request.Context(), caller.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) handleRemoveFavourite(c *gin.Context) {
	caller, _ := callerFrom(c)
	account, err := h.authoring.RemoveFavourite(c.Request.Context(), caller.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
