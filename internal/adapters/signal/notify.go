package signal

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/jbataille/visio/internal/domain"
)

type getNotificationsPayload struct {
	Limit      int  `json:"limit"`
	UnreadOnly bool `json:"unreadOnly"`
}

func (ctl *Controller) handleGetNotifications(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p getNotificationsPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "notification-error", err)
		return
	}
	ctl.sendEvent(c, "notifications", map[string]any{
		"notifications": ctl.Notifier.List(identity.UserID, p.Limit, p.UnreadOnly),
		"unreadCount":   ctl.Notifier.UnreadCount(identity.UserID),
	})
}

type notificationPayload struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

func (ctl *Controller) handleMarkRead(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p notificationPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "notification-error", err)
		return
	}
	if !ctl.Notifier.MarkRead(identity.UserID, p.NotificationID) {
		ctl.sendError(c, "notification-error", domain.NotFound("notification not found"))
		return
	}
	ctl.sendEvent(c, "notification-read", map[string]any{
		"notificationId": p.NotificationID,
		"unreadCount":    ctl.Notifier.UnreadCount(identity.UserID),
	})
}

func (ctl *Controller) handleMarkAllRead(identity domain.Identity, c *wsConn) {
	count := ctl.Notifier.MarkAllRead(identity.UserID)
	ctl.sendEvent(c, "all-notifications-read", map[string]any{"marked": count})
}

func (ctl *Controller) handleDeleteNotification(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p notificationPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "notification-error", err)
		return
	}
	if !ctl.Notifier.Delete(identity.UserID, p.NotificationID) {
		ctl.sendError(c, "notification-error", domain.NotFound("notification not found"))
		return
	}
	ctl.sendEvent(c, "notification-deleted", map[string]any{"notificationId": p.NotificationID})
}

func (ctl *Controller) handleUnreadCount(identity domain.Identity, c *wsConn) {
	ctl.sendEvent(c, "unread-count", map[string]any{
		"unreadCount": ctl.Notifier.UnreadCount(identity.UserID),
	})
}
