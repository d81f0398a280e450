package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// RegisterExplorationRoutes mounts the exploration API. Edits go through the
// editor endpoints in the voiceartist package.
func RegisterExplorationRoutes(r *gin.Engine, svc *service.Service, auth, optional gin.HandlerFunc) {
	g := r.Group("/api/v1/explorations")

	g.GET("", optional, func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			list []*exploration.Summary
			err  error
		)
		if raw := c.Query("ids"); raw != "" {
			list, err = svc.Summaries(ctx, strings.Split(raw, ","))
		} else {
			list, err = svc.NonPrivateSummaries(ctx)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		user := middleware.UserID(c)
		out := make([]map[string]interface{}, 0, len(list))
		for _, s := range list {
			if s.IsPrivate() && !summaryHasRole(s, user) {
				continue
			}
			out = append(out, s.ToDict())
		}
		c.JSON(http.StatusOK, gin.H{"summaries": out})
	})

	g.POST("", auth, func(c *gin.Context) {
		var req struct {
			Title    string `json:"title"`
			Category string `json:"category"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		e, err := svc.Create(c.Request.Context(), middleware.UserID(c), req.Title, req.Category)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"exploration_id": e.ID, "version": e.Version})
	})

	g.GET("/:id", optional, func(c *gin.Context) {
		ctx := c.Request.Context()
		rights, err := svc.Rights(ctx, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		user := middleware.UserID(c)
		if !rights.CanView(user) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		e, err := svc.Get(ctx, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"exploration": e,
			"rights": gin.H{
				"status":           rights.Status,
				"can_edit":         rights.CanEdit(user),
				"can_voiceover":    rights.CanVoiceover(user),
				"owner_ids":        rights.OwnerIDs,
				"voice_artist_ids": rights.VoiceArtistIDs,
			},
		})
	})

	g.PUT("/:id/status", auth, func(c *gin.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		var err error
		switch req.Status {
		case exploration.StatusPublic:
			err = svc.Publish(ctx, c.Param("id"), middleware.UserID(c))
		case exploration.StatusPrivate:
			if !middleware.HasRole(c, models.RoleModerator) && !middleware.HasRole(c, models.RoleAdmin) {
				err = service.ErrForbidden
				break
			}
			err = svc.Unpublish(ctx, c.Param("id"))
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be public or private"})
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	})

	g.POST("/:id/rating", auth, func(c *gin.Context) {
		var req struct {
			Rating int `json:"user_rating"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sum, err := svc.Rate(c.Request.Context(), c.Param("id"), req.Rating)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ratings": sum.Ratings})
	})
}

func summaryHasRole(s *exploration.Summary, user string) bool {
	if user == "" {
		return false
	}
	for _, ids := range [][]string{s.OwnerIDs, s.EditorIDs, s.VoiceArtistIDs, s.ViewerIDs} {
		for _, id := range ids {
			if id == user {
				return true
			}
		}
	}
	return false
}

func writeError(c *gin.Context, err error) {
	var (
		verr *exploration.ValidationError
		cerr *changes.ValidationError
		nerr *collection.ValidationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr), errors.As(err, &nerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "You do not have credentials to access this page."})
	case errors.Is(err, service.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
