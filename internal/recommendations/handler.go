package recommendations

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

func RegisterRoutes(r *gin.Engine, svc *Service, auth gin.HandlerFunc) {
	r.GET("/api/v1/explorations/:id/recommendations", func(c *gin.Context) {
		ids, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"recommended_exploration_ids": ids})
	})

	admin := r.Group("/api/v1/admin/topic_similarities", auth, middleware.RequireRole(models.RoleAdmin))
	admin.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, svc.TopicSimilaritiesCSV())
	})
	admin.PUT("", func(c *gin.Context) {
		var req struct {
			Data string `json:"data"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.UpdateTopicSimilarities(c.Request.Context(), req.Data); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
