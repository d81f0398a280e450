package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

// Func is the body of a job. The returned map is stored as the run output.
type Func func(ctx context.Context) (map[string]interface{}, error)

// Runner executes jobs synchronously and records their lifecycle.
type Runner struct {
	store Store
	now   func() time.Time
}

func NewRunner(store Store) *Runner {
	return &Runner{store: store, now: time.Now}
}

func (r *Runner) Store() Store { return r.store }

// Start runs fn as a job of jobType and returns the finished run. A failing
// fn yields a run with StatusFailed together with fn's error.
func (r *Runner) Start(ctx context.Context, jobType string, fn Func) (*Run, error) {
	start := r.now()
	run := &Run{
		JobID:     uuid.NewString(),
		Type:      jobType,
		Status:    StatusRunning,
		CreatedAt: start,
		UpdatedAt: start,
	}
	log := logger.With("job", jobType, "run", run.JobID)
	if err := r.store.Save(ctx, run); err != nil {
		return nil, err
	}
	log.Infof("started")

	out, jobErr := fn(ctx)
	run.UpdatedAt = r.now()
	run.Output = out
	if jobErr != nil {
		run.Status = StatusFailed
		run.Error = jobErr.Error()
		log.Errorf("failed: %v", jobErr)
	} else {
		run.Status = StatusSucceeded
		log.Infof("succeeded in %s", run.UpdatedAt.Sub(start))
	}
	metrics.CronRuns.WithLabelValues(jobType, run.Status).Inc()
	metrics.CronDuration.WithLabelValues(jobType).Observe(run.UpdatedAt.Sub(start).Seconds())

	if err := r.store.Save(ctx, run); err != nil {
		return run, err
	}
	return run, jobErr
}
