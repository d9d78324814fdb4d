// README: In-app inbox handlers for the calling user.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"haulr/internal/http/middleware"
	"haulr/internal/modules/notification"
	"haulr/internal/types"
)

const inboxPageSize = 50

type Inbox interface {
	ListUnread(ctx context.Context, userID types.ID, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id types.ID) error
}

type NotificationHandler struct {
	inbox Inbox
}

func NewNotificationHandler(inbox Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) ListUnread(c *gin.Context) {
	items, err := h.inbox.ListUnread(c.Request.Context(), types.ID(middleware.CallerUID(c)), inboxPageSize)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": items})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	err := h.inbox.MarkRead(c.Request.Context(), types.ID(middleware.CallerUID(c)), types.ID(c.Param("id")))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
