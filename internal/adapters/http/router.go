// Package http is the REST adapter: auth, scheduled meetings, recordings and
// notification queries around the live signaling core.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/adapters/signal"
	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/auth"
	"github.com/jbataille/visio/internal/config"
	"github.com/jbataille/visio/internal/domain"
	"github.com/jbataille/visio/internal/storage"
)

// API bundles the collaborators behind the REST surface.
type API struct {
	Coordinator *app.Coordinator
	Recorder    *app.Recorder
	Notifier    *app.Notifier
	Tokens      *auth.Manager

	Users      *storage.Users
	Meetings   *storage.Meetings
	Recordings *storage.Recordings
}

func SetupRouter(ctx context.Context, cfg *config.Config, api *API, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/ws/signal", func(c *gin.Context) {
		ws.HandleWS(ctx, c)
	})

	pub := r.Group("/api/auth")
	pub.POST("/register", api.register)
	pub.POST("/login", api.login)

	priv := r.Group("/api", api.authRequired())
	priv.POST("/auth/refresh", api.refresh)
	priv.GET("/auth/profile", api.profile)
	priv.PUT("/auth/profile", api.updateProfile)

	priv.GET("/users", api.listUsers)

	priv.GET("/meetings/active", api.listActiveMeetings)
	priv.GET("/meetings/active/:id", api.getActiveMeeting)
	priv.GET("/meetings/active/:id/participants", api.listMeetingParticipants)
	priv.GET("/meetings/stats", api.meetingStats)
	priv.POST("/meetings/scheduled", api.scheduleMeeting)
	priv.GET("/meetings/scheduled", api.listScheduled)
	priv.PUT("/meetings/scheduled/:id", api.updateScheduled)
	priv.DELETE("/meetings/scheduled/:id", api.cancelScheduled)

	priv.GET("/recordings", api.listRecordings)
	priv.GET("/recordings/meeting/:id", api.recordingsForMeeting)
	priv.GET("/recordings/stats", api.recordingStats)
	priv.DELETE("/recordings/:id", api.deleteRecording)

	priv.GET("/notifications", api.listNotifications)
	priv.GET("/notifications/unread-count", api.notificationUnreadCount)
	priv.PUT("/notifications/:id/read", api.markNotificationRead)
	priv.PUT("/notifications/read-all", api.markAllNotificationsRead)
	priv.DELETE("/notifications/:id", api.deleteNotification)
	priv.GET("/notifications/stats", api.notificationStats)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

// fail maps a coded domain error onto an HTTP status.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.CodeOf(err) {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeForbidden:
		status = http.StatusForbidden
	case domain.CodeConflict:
		status = http.StatusConflict
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeAlreadyClosed:
		status = http.StatusGone
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  string(domain.CodeOf(err)),
	})
}
