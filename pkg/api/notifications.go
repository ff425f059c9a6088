package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/middleware/authz"
	"github.com/learnhub/learnhub/pkg/repository"
)

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, controller.NewValidationError(key+" must be an integer", map[string]interface{}{key: raw})
	}
	return value, nil
}

func (h *handlers) listNotifications(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		controller.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit", repository.DefaultPageSize)
	if err != nil {
		controller.Error(c, err)
		return
	}

	result, err := h.deps.Notifications.List(c.Request.Context(), authz.Claims(c).Subject, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.OK(c, result)
}

func (h *handlers) unreadCount(c *gin.Context) {
	count, err := h.deps.Notifications.UnreadCount(c.Request.Context(), authz.Claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.OK(c, gin.H{"unread": count})
}

func (h *handlers) markRead(c *gin.Context) {
	if err := h.deps.Notifications.MarkRead(c.Request.Context(), authz.Claims(c).Subject, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	controller.NoContent(c)
}

func (h *handlers) markAllRead(c *gin.Context) {
	updated, err := h.deps.Notifications.MarkAllRead(c.Request.Context(), authz.Claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.OK(c, gin.H{"updated": updated})
}

func (h *handlers) sendTest(c *gin.Context) {
	created, err := h.deps.Notifications.SendTest(c.Request.Context(), authz.Claims(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Created(c, created)
}
