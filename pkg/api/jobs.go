package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/jobs"
)

const defaultFailedJobsLimit = 20

// FailedJobs is the operator view over jobs that exhausted their attempts.
type FailedJobs interface {
	FailedJobs(ctx context.Context, queue string, limit int) ([]*jobs.FailedJob, error)
	RetryFailed(ctx context.Context, queue string, ids []string) (int, error)
}

type failedJobView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

type retryFailedRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

func (h *handlers) listFailedJobs(c *gin.Context) {
	limit := defaultFailedJobsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			controller.Error(c, controller.NewValidationError("limit must be a positive integer", nil))
			return
		}
		limit = n
	}

	failed, err := h.deps.Jobs.FailedJobs(c.Request.Context(), c.Param("queue"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]failedJobView, 0, len(failed))
	for _, f := range failed {
		if f.Job == nil {
			continue
		}
		out = append(out, failedJobView{
			ID:       f.Job.ID,
			Name:     f.Job.Name,
			Attempts: f.Job.Attempt,
			Reason:   f.Reason,
			FailedAt: f.FailedAt,
		})
	}
	controller.OK(c, gin.H{"queue": c.Param("queue"), "jobs": out})
}

func (h *handlers) retryFailedJobs(c *gin.Context) {
	var req retryFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		controller.Error(c, controller.NewValidationError("ids must list at least one job id", nil))
		return
	}
	retried, err := h.deps.Jobs.RetryFailed(c.Request.Context(), c.Param("queue"), req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("failed jobs requeued", "queue", c.Param("queue"), "requested", len(req.IDs), "retried", retried)
	controller.Accepted(c, gin.H{"queue": c.Param("queue"), "retried": retried})
}
