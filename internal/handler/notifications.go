package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"

	"amalnama/internal/model"
)

func (h *Handler) notifications(c *gin.Context) {
	notes, err := h.app.Notify.ByUser(c.Request.Context(), current(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}

func (h *Handler) unread(c *gin.Context) {
	n, err := h.app.Notify.UnreadCount(c.Request.Context(), current(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// owned loads notification id, hiding other users' notifications.
func (h *Handler) owned(c *gin.Context) (model.Notification, bool) {
	id := c.Param("id")
	n, err := h.app.Notify.Get(c.Request.Context(), id)
	if err == nil && n.UserID != current(c).User.ID {
		err = errors.NotFoundf("notification %s", id)
	}
	if err != nil {
		fail(c, err)
		return model.Notification{}, false
	}
	return n, true
}

func (h *Handler) markRead(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.app.Notify.MarkAsRead(c.Request.Context(), n.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) readAll(c *gin.Context) {
	if err := h.app.Notify.MarkAllAsRead(c.Request.Context(), current(c).User.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	n, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.app.Notify.Delete(c.Request.Context(), n.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
