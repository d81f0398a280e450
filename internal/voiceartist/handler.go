package voiceartist

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	expservice "github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// RegisterRoutes mounts the exploration editor endpoints voice artists use
// and the voice artist management endpoints. Every route requires auth.
func RegisterRoutes(r *gin.Engine, svc *Service, auth gin.HandlerFunc) {
	create := r.Group("/createhandler", auth)

	create.PUT("/data/:exp_id", func(c *gin.Context) {
		var req SaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, &exploration.ValidationError{Msg: err.Error()})
			return
		}
		out, err := svc.SaveChanges(c.Request.Context(), middleware.UserID(c), c.Param("exp_id"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	create.PUT("/autosave_draft/:exp_id", func(c *gin.Context) {
		var req struct {
			ChangeList []map[string]interface{} `json:"change_list"`
			Version    *int                     `json:"version"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, &exploration.ValidationError{Msg: err.Error()})
			return
		}
		if req.Version == nil {
			writeError(c, &exploration.ValidationError{Msg: "Invalid POST request: a version must be specified."})
			return
		}
		res, err := svc.AutosaveDraft(c.Request.Context(), middleware.UserID(c), c.Param("exp_id"), req.ChangeList, *req.Version)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	create.POST("/autosave_draft/:exp_id", func(c *gin.Context) {
		if err := svc.DiscardDraft(c.Request.Context(), middleware.UserID(c), c.Param("exp_id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	create.POST("/started_translation_tutorial_event/:exp_id", func(c *gin.Context) {
		if err := svc.StartedTranslationTutorial(c.Request.Context(), middleware.UserID(c), c.Param("exp_id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	create.POST("/voiceover_upload/:exp_id", func(c *gin.Context) {
		fh, err := c.FormFile("raw_audio_file")
		if err != nil {
			writeError(c, &exploration.ValidationError{Msg: "No audio supplied"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		defer f.Close()
		res, err := svc.UploadVoiceover(c.Request.Context(), middleware.UserID(c), c.Param("exp_id"),
			fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	manage := r.Group("/voice_artist_management_handler", auth, middleware.RequireRole(models.RoleVoiceoverAdmin))

	manage.POST("/exploration/:exp_id", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
			writeError(c, ErrUnknownUser)
			return
		}
		if err := svc.AssignVoiceArtist(c.Request.Context(), c.Param("exp_id"), req.Username); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	manage.DELETE("/exploration/:exp_id", func(c *gin.Context) {
		if err := svc.DeassignVoiceArtist(c.Request.Context(), c.Param("exp_id"), c.Query("voice_artist")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})
}

func writeError(c *gin.Context, err error) {
	var (
		expErr *exploration.ValidationError
		chErr  *changes.ValidationError
		colErr *collection.ValidationError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &expErr), errors.As(err, &chErr), errors.As(err, &colErr),
		errors.Is(err, ErrNotVoiceoverChange), errors.Is(err, ErrUnknownUser):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, expservice.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, expservice.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrStorageDisabled):
		status = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Errorf("voice artist handler %s: %v", c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status_code": status, "error": msg})
}
