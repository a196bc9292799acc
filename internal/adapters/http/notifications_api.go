package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jbataille/visio/internal/domain"
)

func (api *API) listNotifications(c *gin.Context) {
	identity := identityOf(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	unreadOnly := c.Query("unread") == "true"
	c.JSON(http.StatusOK, gin.H{
		"notifications": api.Notifier.List(identity.UserID, limit, unreadOnly),
		"unreadCount":   api.Notifier.UnreadCount(identity.UserID),
	})
}

func (api *API) notificationUnreadCount(c *gin.Context) {
	identity := identityOf(c)
	c.JSON(http.StatusOK, gin.H{"unreadCount": api.Notifier.UnreadCount(identity.UserID)})
}

func (api *API) markNotificationRead(c *gin.Context) {
	identity := identityOf(c)
	if !api.Notifier.MarkRead(identity.UserID, c.Param("id")) {
		fail(c, domain.NotFound("notification not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (api *API) markAllNotificationsRead(c *gin.Context) {
	identity := identityOf(c)
	c.JSON(http.StatusOK, gin.H{"marked": api.Notifier.MarkAllRead(identity.UserID)})
}

func (api *API) deleteNotification(c *gin.Context) {
	identity := identityOf(c)
	if !api.Notifier.Delete(identity.UserID, c.Param("id")) {
		fail(c, domain.NotFound("notification not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (api *API) notificationStats(c *gin.Context) {
	identity := identityOf(c)
	if identity.Role != domain.RoleAdmin {
		fail(c, domain.Forbidden("admin only"))
		return
	}
	c.JSON(http.StatusOK, api.Notifier.Stats())
}
