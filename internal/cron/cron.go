// Package cron exposes the periodic maintenance jobs as HTTP endpoints that
// an external scheduler hits with the shared cron secret.
package cron

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/jobs"
	"github.com/openlearn/openlearn/backend/go-services/internal/recommendations"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/internal/users"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

const (
	JobTypeJobsCleanup    = "jobs_cleanup"
	JobTypeModelsCleanup  = "models_cleanup"
	JobTypeDashboardStats = "dashboard_stats"

	// Finished job runs are kept this long.
	JobRetention = 90 * 24 * time.Hour
	// Snapshot content of old versions is dropped after this long.
	DefaultSnapshotRetention = 365 * 24 * time.Hour
)

type DraftCleaner interface {
	DeleteExpiredDrafts(ctx context.Context) (int, error)
}

// OwnerCounter counts owned entities per user id.
type OwnerCounter interface {
	CountByOwner(ctx context.Context) (map[string]int, error)
}

type Handler struct {
	Runner            *jobs.Runner
	Recommendations   *recommendations.Service
	Drafts            DraftCleaner
	Snapshots         snapshot.Store
	Collections       OwnerCounter
	Explorations      OwnerCounter
	Stats             users.StatsRepository
	SnapshotRetention time.Duration

	now func() time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// RegisterRoutes mounts the cron endpoints behind guard.
func RegisterRoutes(r *gin.Engine, h *Handler, guard gin.HandlerFunc) {
	g := r.Group("/cron", guard)
	g.GET("/explorations/recommendations", h.run(recommendations.JobRecommendations, h.Recommendations.ComputeRecommendations))
	g.GET("/explorations/search_rank", h.run(recommendations.JobSearchRanks, h.Recommendations.UpdateSearchRanks))
	g.GET("/jobs/cleanup", h.run(JobTypeJobsCleanup, h.cleanupJobs))
	g.GET("/models/cleanup", h.run(JobTypeModelsCleanup, h.cleanupModels))
	g.GET("/users/dashboard_stats", h.run(JobTypeDashboardStats, h.dashboardStats))
}

// RegisterStatsRoutes serves the stats computed by the dashboard job.
func RegisterStatsRoutes(r *gin.Engine, stats users.StatsRepository, auth gin.HandlerFunc) {
	r.GET("/api/v1/users/me/dashboard_stats", auth, func(c *gin.Context) {
		s, err := stats.Get(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if s == nil {
			s = &users.DashboardStats{UserID: middleware.UserID(c)}
		}
		c.JSON(http.StatusOK, s)
	})
}

func (h *Handler) run(jobType string, fn jobs.Func) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := h.Runner.Start(c.Request.Context(), jobType, fn)
		if err != nil {
			if run == nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "job": run})
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": run})
	}
}

func (h *Handler) cleanupJobs(ctx context.Context) (map[string]interface{}, error) {
	n, err := h.Runner.Store().DeleteFinishedBefore(ctx, h.clock().Add(-JobRetention))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted_runs": n}, nil
}

func (h *Handler) cleanupModels(ctx context.Context) (map[string]interface{}, error) {
	drafts, err := h.Drafts.DeleteExpiredDrafts(ctx)
	if err != nil {
		return nil, err
	}
	retention := h.SnapshotRetention
	if retention <= 0 {
		retention = DefaultSnapshotRetention
	}
	snaps, err := h.Snapshots.DeleteOlderThan(ctx, h.clock().Add(-retention))
	if err != nil {
		return nil, err
	}
	logger.With("job", JobTypeModelsCleanup).Infof("deleted %d drafts and %d snapshot contents", drafts, snaps)
	return map[string]interface{}{"deleted_drafts": drafts, "deleted_snapshot_contents": snaps}, nil
}

func (h *Handler) dashboardStats(ctx context.Context) (map[string]interface{}, error) {
	cols, err := h.Collections.CountByOwner(ctx)
	if err != nil {
		return nil, err
	}
	exps, err := h.Explorations.CountByOwner(ctx)
	if err != nil {
		return nil, err
	}
	n, err := users.RecordDashboardStats(ctx, h.Stats, cols, exps, h.clock())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"users": n}, nil
}
