package featureflag

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// RegisterRoutes mounts the client evaluation endpoint and the admin rules API.
func RegisterRoutes(r *gin.Engine, svc *Service, auth gin.HandlerFunc) {
	r.GET("/platform_features_evaluation_handler", func(c *gin.Context) {
		client := map[string]interface{}{}
		for _, k := range []string{"platform_type", "browser_type", "app_version"} {
			if v, ok := c.GetQuery(k); ok {
				client[k] = v
			}
		}
		ec, err := svc.CreateEvaluationContextForClient(client)
		if err != nil {
			writeError(c, err)
			return
		}
		values, err := svc.EvaluateAllForClient(c.Request.Context(), ec)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, values)
	})

	admin := r.Group("/api/v1/admin/features", auth, middleware.RequireRole(models.RoleAdmin))

	admin.GET("", func(c *gin.Context) {
		dicts, err := svc.GetAllFeatureFlagDicts(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"feature_flags": dicts, "server_mode": string(svc.ServerMode())})
	})

	admin.GET("/:name/history", func(c *gin.Context) {
		commits, err := svc.History(c.Request.Context(), c.Param("name"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"commits": commits})
	})

	admin.PUT("/:name", func(c *gin.Context) {
		var req struct {
			CommitMessage string `json:"commit_message"`
			NewRules      []Rule `json:"new_rules"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.NewRules == nil {
			req.NewRules = []Rule{}
		}
		f, err := svc.UpdateFeatureFlagRules(c.Request.Context(), c.Param("name"), middleware.UserID(c), req.CommitMessage, req.NewRules)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"feature_flag": f.ToMap()})
	})
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnknownFeature):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
