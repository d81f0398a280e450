package story

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/learner"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

func isCurriculumAdmin(c *gin.Context) bool {
	return middleware.HasRole(c, models.RoleCurriculumAdmin) || middleware.HasRole(c, models.RoleAdmin)
}

// RegisterRoutes mounts the story viewer and the curriculum admin story and
// topic API.
func RegisterRoutes(r *gin.Engine, svc *Service, auth, optional gin.HandlerFunc) {
	r.GET("/learn/:classroom/:topic/story/:story", optional, func(c *gin.Context) {
		if err := svc.CheckAccess(c.Request.Context(), c.Param("topic"), c.Param("story"), isCurriculumAdmin(c)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"classroom_url_fragment": c.Param("classroom"),
			"topic_url_fragment":     c.Param("topic"),
			"story_url_fragment":     c.Param("story"),
		})
	})

	r.GET("/story_data_handler/:classroom/:topic/:story", optional, func(c *gin.Context) {
		data, err := svc.StoryData(c.Request.Context(), c.Param("topic"), c.Param("story"), middleware.UserID(c), isCurriculumAdmin(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
	})

	progress := r.Group("/story_progress_handler/:classroom/:topic/:story/:node_id", auth)
	progress.GET("", func(c *gin.Context) {
		loc, err := svc.ProgressRedirect(c.Request.Context(), middleware.UserID(c),
			c.Param("classroom"), c.Param("topic"), c.Param("story"), c.Param("node_id"), isCurriculumAdmin(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Redirect(http.StatusFound, loc)
	})
	progress.POST("", func(c *gin.Context) {
		res, err := svc.RecordProgress(c.Request.Context(), middleware.UserID(c),
			c.Param("topic"), c.Param("story"), c.Param("node_id"), isCurriculumAdmin(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin := r.Group("/api/v1", auth, middleware.RequireRole(models.RoleCurriculumAdmin, models.RoleAdmin))

	admin.POST("/stories", func(c *gin.Context) {
		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			TopicID     string `json:"topic_id"`
			URLFragment string `json:"url_fragment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := svc.Topic(c.Request.Context(), req.TopicID); err != nil {
			writeError(c, err)
			return
		}
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		st := NewDefault(id, req.Title, req.Description, req.TopicID, req.URLFragment)
		if err := svc.Create(c.Request.Context(), middleware.UserID(c), st); err != nil {
			writeError(c, err)
			return
		}
		if _, err := svc.UpdateTopic(c.Request.Context(), req.TopicID, func(t *Topic) error {
			return t.AddCanonicalStory(id)
		}); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"story_id": id})
	})

	admin.GET("/stories/:id", func(c *gin.Context) {
		st, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": st})
	})

	admin.PUT("/stories/:id", func(c *gin.Context) {
		var req struct {
			Version       *int                     `json:"version"`
			CommitMessage string                   `json:"commit_message"`
			ChangeList    []map[string]interface{} `json:"change_dicts"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cur, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if req.Version == nil || *req.Version != cur.Version {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Trying to update an outdated version of the story. Please reload the page and try again."})
			return
		}
		st, err := svc.Update(c.Request.Context(), cur.ID, middleware.UserID(c), req.ChangeList, req.CommitMessage)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": st})
	})

	admin.POST("/topics", func(c *gin.Context) {
		var t Topic
		if err := c.ShouldBindJSON(&t); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if t.ID == "" {
			t.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		if t.CanonicalStories == nil {
			t.CanonicalStories = []StoryReference{}
		}
		if t.AdditionalStoryIDs == nil {
			t.AdditionalStoryIDs = []string{}
		}
		if err := svc.SaveTopic(c.Request.Context(), &t); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"topic": t})
	})

	admin.PUT("/topics/:id/publish", func(c *gin.Context) {
		var req struct {
			Published bool `json:"published"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, err := svc.UpdateTopic(c.Request.Context(), c.Param("id"), func(t *Topic) error {
			t.Published = req.Published
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"topic": t})
	})

	admin.PUT("/topics/:id/stories/:story_id/publish", func(c *gin.Context) {
		var req struct {
			Published bool `json:"published"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, err := svc.UpdateTopic(c.Request.Context(), c.Param("id"), func(t *Topic) error {
			if req.Published {
				return t.PublishStory(c.Param("story_id"))
			}
			return t.UnpublishStory(c.Param("story_id"))
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"topic": t})
	})
}

func writeError(c *gin.Context, err error) {
	var (
		verr *ValidationError
		cerr *changes.ValidationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr),
		errors.Is(err, learner.ErrInvalidID), errors.Is(err, ErrURLFragmentUsed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTopicNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
