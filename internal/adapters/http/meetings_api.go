package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jbataille/visio/internal/domain"
	"github.com/jbataille/visio/internal/storage"
)

func (api *API) listActiveMeetings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"meetings": api.Coordinator.List()})
}

func (api *API) getActiveMeeting(c *gin.Context) {
	snap, err := api.Coordinator.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (api *API) listMeetingParticipants(c *gin.Context) {
	participants, err := api.Coordinator.Participants(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (api *API) meetingStats(c *gin.Context) {
	st := api.Coordinator.Stats()
	c.JSON(http.StatusOK, gin.H{
		"activeMeetings":    st.ActiveMeetings,
		"totalParticipants": st.TotalParticipants,
		"activeRecordings":  api.Recorder.ActiveCount(),
	})
}

type scheduleRequest struct {
	Title        string         `json:"title" binding:"required,max=200"`
	Description  string         `json:"description"`
	ScheduledFor time.Time      `json:"scheduledFor" binding:"required"`
	DurationMin  int            `json:"durationMinutes" binding:"min=0,max=1440"`
	Password     string         `json:"password"`
	Options      map[string]any `json:"options"`
}

func (api *API) scheduleMeeting(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Validation("invalid meeting payload"))
		return
	}
	if req.ScheduledFor.Before(time.Now()) {
		fail(c, domain.Validation("scheduledFor must be in the future"))
		return
	}
	identity := identityOf(c)
	rec, err := api.Meetings.Schedule(c.Request.Context(), string(identity.UserID), storage.ScheduleRequest{
		Title:        req.Title,
		Description:  req.Description,
		ScheduledFor: req.ScheduledFor,
		DurationMin:  req.DurationMin,
		Password:     req.Password,
		Options:      req.Options,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (api *API) listScheduled(c *gin.Context) {
	identity := identityOf(c)
	recs, err := api.Meetings.Mine(c.Request.Context(), string(identity.UserID), c.Query("scope"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": recs})
}

type updateScheduledRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	ScheduledFor *time.Time `json:"scheduledFor"`
	DurationMin  *int       `json:"durationMinutes"`
}

func (api *API) updateScheduled(c *gin.Context) {
	var req updateScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Validation("invalid meeting payload"))
		return
	}
	changes := make(map[string]any)
	if req.Title != nil {
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.ScheduledFor != nil {
		changes["scheduled_for"] = *req.ScheduledFor
	}
	if req.DurationMin != nil {
		changes["duration_min"] = *req.DurationMin
	}
	if len(changes) == 0 {
		fail(c, domain.Validation("nothing to update"))
		return
	}
	identity := identityOf(c)
	rec, err := api.Meetings.Update(c.Request.Context(), string(identity.UserID), c.Param("id"), changes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *API) cancelScheduled(c *gin.Context) {
	identity := identityOf(c)
	if err := api.Meetings.Cancel(c.Request.Context(), string(identity.UserID), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
