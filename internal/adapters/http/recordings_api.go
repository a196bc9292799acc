package http

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/domain"
)

func (api *API) listRecordings(c *gin.Context) {
	identity := identityOf(c)
	if c.Query("all") == "true" && identity.Role == domain.RoleAdmin {
		recs, err := api.Recordings.All(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recordings": recs})
		return
	}
	recs, err := api.Recordings.ByOwner(c.Request.Context(), string(identity.UserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (api *API) recordingsForMeeting(c *gin.Context) {
	recs, err := api.Recordings.ForMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (api *API) recordingStats(c *gin.Context) {
	st, err := api.Recordings.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalRecordings":  st.TotalRecordings,
		"totalDuration":    st.TotalDurationMS,
		"totalSize":        st.TotalSize,
		"recordingsByType": st.ByType,
		"activeRecordings": api.Recorder.ActiveCount(),
	})
}

// deleteRecording removes the durable record and unlinks its file. Owner or
// admin only.
func (api *API) deleteRecording(c *gin.Context) {
	identity := identityOf(c)
	rec, err := api.Recordings.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if rec.StartedBy != string(identity.UserID) && identity.Role != domain.RoleAdmin {
		fail(c, domain.Forbidden("not the recording owner"))
		return
	}
	if _, err := api.Recordings.Delete(c.Request.Context(), rec.ID); err != nil {
		fail(c, err)
		return
	}
	if rec.FilePath != "" {
		if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
			log.Error().Err(err).Str("module", "adapters.http").Str("recording", rec.ID).Msg("unlink recording file")
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
