package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection/service"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// RegisterCollectionRoutes mounts the collection API. auth guards writes,
// read routes accept anonymous requests through optional.
func RegisterCollectionRoutes(r *gin.Engine, svc *service.Service, auth, optional gin.HandlerFunc) {
	g := r.Group("/api/v1/collections")

	g.GET("", optional, func(c *gin.Context) {
		list, err := svc.Summaries(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"collections": list})
	})

	g.POST("", auth, func(c *gin.Context) {
		var req struct {
			Title     string `json:"title"`
			Category  string `json:"category"`
			Objective string `json:"objective"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		col, err := svc.Create(c.Request.Context(), middleware.UserID(c), req.Title, req.Category, req.Objective)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"collection_id": col.ID, "version": col.Version})
	})

	g.POST("/import", auth, func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		col, err := svc.ImportYAML(c.Request.Context(), middleware.UserID(c), string(body))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"collection_id": col.ID})
	})

	g.GET("/:id", optional, func(c *gin.Context) {
		col, ok := loadVisible(c, svc)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"collection": collectionDict(col)})
	})

	g.PUT("/:id", auth, func(c *gin.Context) {
		var req struct {
			Version       *int                     `json:"version"`
			CommitMessage string                   `json:"commit_message"`
			ChangeList    []map[string]interface{} `json:"change_list"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Version == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid POST request: a version must be specified."})
			return
		}
		col, err := svc.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.ChangeList, req.CommitMessage, *req.Version)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"collection": collectionDict(col)})
	})

	g.PUT("/:id/status", auth, func(c *gin.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || (req.Status != collection.StatusPublic && req.Status != collection.StatusPrivate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be public or private"})
			return
		}
		if err := svc.SetStatus(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Status); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	})

	g.GET("/:id/yaml", optional, func(c *gin.Context) {
		col, ok := loadVisible(c, svc)
		if !ok {
			return
		}
		text, err := col.ToYAML()
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/x-yaml; charset=utf-8", []byte(text))
	})

	g.GET("/:id/export", auth, func(c *gin.Context) {
		if _, ok := loadVisible(c, svc); !ok {
			return
		}
		exp, err := svc.ExportYAML(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, exp)
	})

	g.GET("/:id/next", optional, func(c *gin.Context) {
		col, ok := loadVisible(c, svc)
		if !ok {
			return
		}
		var completed []string
		if raw := c.Query("completed"); raw != "" {
			completed = strings.Split(raw, ",")
		}
		c.JSON(http.StatusOK, gin.H{
			"next_exploration_id": nullable(col.NextExplorationID(completed)),
			"completed":           len(completed),
		})
	})
}

// loadVisible fetches the collection and hides private ones from users
// without a role.
func loadVisible(c *gin.Context, svc *service.Service) (*collection.Collection, bool) {
	ctx := c.Request.Context()
	sum, err := svc.Summary(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sum.IsPrivate() && !sum.DoesUserHaveAnyRole(middleware.UserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	col, err := svc.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return col, true
}

func collectionDict(col *collection.Collection) gin.H {
	out := gin.H(col.ToMap())
	out["version"] = col.Version
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func writeError(c *gin.Context, err error) {
	var verr *collection.ValidationError
	var cerr *changes.ValidationError
	var vmis *service.VersionError
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &vmis):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "You do not have permission to edit this collection."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
