package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jbataille/visio/internal/domain"
	"github.com/jbataille/visio/internal/storage"
)

type credentials struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

func (api *API) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Validation("invalid registration payload"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}
	rec, err := api.Users.Create(c.Request.Context(), req.Username, string(hash), domain.RoleUser)
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", rec.ID).Msg("user registered")
	api.issueToken(c, rec)
}

func (api *API) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Validation("invalid login payload"))
		return
	}
	rec, err := api.Users.ByUsername(c.Request.Context(), req.Username)
	if err != nil {
		fail(c, domain.Forbidden("invalid credentials"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		fail(c, domain.Forbidden("invalid credentials"))
		return
	}
	api.issueToken(c, rec)
}

func (api *API) refresh(c *gin.Context) {
	identity := identityOf(c)
	rec, err := api.Users.ByID(c.Request.Context(), string(identity.UserID))
	if err != nil {
		fail(c, err)
		return
	}
	api.issueToken(c, rec)
}

func (api *API) profile(c *gin.Context) {
	identity := identityOf(c)
	rec, err := api.Users.ByID(c.Request.Context(), string(identity.UserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(rec))
}

type updateProfileRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
}

func (api *API) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Validation("invalid profile payload"))
		return
	}
	identity := identityOf(c)
	if err := api.Users.UpdateUsername(c.Request.Context(), string(identity.UserID), req.Username); err != nil {
		fail(c, err)
		return
	}
	rec, err := api.Users.ByID(c.Request.Context(), string(identity.UserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(rec))
}

func (api *API) listUsers(c *gin.Context) {
	if identityOf(c).Role != domain.RoleAdmin {
		fail(c, domain.Forbidden("admin only"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	recs, err := api.Users.List(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := api.Users.Count(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		views = append(views, userView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"users": views, "total": total})
}

func (api *API) issueToken(c *gin.Context, rec storage.UserRecord) {
	identity, err := domain.NewIdentity(domain.UserID(rec.ID), rec.Username, rec.Role)
	if err != nil {
		fail(c, err)
		return
	}
	token, err := api.Tokens.Issue(identity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userView(rec),
	})
}

func userView(rec storage.UserRecord) gin.H {
	return gin.H{
		"id":        rec.ID,
		"username":  rec.Username,
		"role":      rec.Role,
		"createdAt": rec.CreatedAt,
	}
}
