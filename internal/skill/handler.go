package skill

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/jobs"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

const JobTypeCommitAudit = "skill_commit_audit"

// RegisterRoutes mounts the curriculum admin skill API and the commit audit
// job. All routes require auth.
func RegisterRoutes(r *gin.Engine, svc *Service, runner *jobs.Runner, auth gin.HandlerFunc) {
	g := r.Group("/api/v1/skills", auth, middleware.RequireRole(models.RoleCurriculumAdmin, models.RoleAdmin))

	g.POST("", func(c *gin.Context) {
		var req struct {
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sk, err := svc.Create(c.Request.Context(), middleware.UserID(c), req.Description)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"skill_id": sk.ID, "version": sk.Version})
	})

	g.GET("/:id", func(c *gin.Context) {
		sk, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"skill": sk})
	})

	g.PUT("/:id", func(c *gin.Context) {
		var req struct {
			Version       *int                     `json:"version"`
			CommitMessage string                   `json:"commit_message"`
			ChangeList    []map[string]interface{} `json:"change_dicts"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Version == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid POST request: a version must be specified."})
			return
		}
		sk, err := svc.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.ChangeList, req.CommitMessage, *req.Version)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"skill": sk})
	})

	g.POST("/:id/questions", func(c *gin.Context) {
		var req struct {
			QuestionIDs []string `json:"question_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.LinkQuestions(c.Request.Context(), c.Param("id"), req.QuestionIDs); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	r.POST("/api/v1/admin/jobs/"+JobTypeCommitAudit, auth, middleware.RequireRole(models.RoleAdmin), func(c *gin.Context) {
		found := []CommitCmdsError{}
		run, err := runner.Start(c.Request.Context(), JobTypeCommitAudit, func(ctx context.Context) (map[string]interface{}, error) {
			errs, err := svc.AuditCommits(ctx)
			if err != nil {
				return nil, err
			}
			found = errs
			return map[string]interface{}{"errors": len(errs)}, nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"job_id": run.JobID, "status": run.Status, "errors": found})
	})
}

func writeError(c *gin.Context, err error) {
	var (
		verr *ValidationError
		cerr *changes.ValidationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
