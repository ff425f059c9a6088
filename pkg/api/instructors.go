package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/notification"
)

type declineResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	DeleteJobID string    `json:"deleteJobId"`
	DeleteAfter time.Time `json:"deleteAfter"`
}

func (h *handlers) getInstructor(c *gin.Context) {
	found, err := h.deps.Instructors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.OK(c, found)
}

func (h *handlers) declineInstructor(c *gin.Context) {
	id := c.Param("id")
	handle, err := h.deps.Instructors.Decline(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.notifyInstructor(c.Request.Context(), id, notification.TypeWarning,
		"Application declined",
		"Your instructor application was declined. Your data will be removed unless the decision is reversed.")
	controller.Accepted(c, declineResponse{
		ID:          id,
		Status:      string(instructor.StatusRejected),
		DeleteJobID: handle.ID,
		DeleteAfter: handle.RunAt,
	})
}

func (h *handlers) reinstateInstructor(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Instructors.Reinstate(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.notifyInstructor(c.Request.Context(), id, notification.TypeInfo,
		"Application back in review",
		"Your instructor application is being reviewed again.")
	controller.OK(c, gin.H{"id": id, "status": instructor.StatusPending})
}

func (h *handlers) approveInstructor(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Instructors.Approve(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.notifyInstructor(c.Request.Context(), id, notification.TypeSuccess,
		"Application approved",
		"Welcome aboard! You can now publish courses.")
	controller.OK(c, gin.H{"id": id, "status": instructor.StatusApproved})
}

// notifyInstructor is best effort: the status change already happened.
func (h *handlers) notifyInstructor(ctx context.Context, id string, kind notification.Type, title, message string) {
	_, err := h.deps.Notifications.Create(ctx, notification.Input{UserID: id, Title: title, Message: message, Type: kind})
	if err != nil {
		h.log.WithContext(ctx).Warn("failed to notify instructor", "instructor_id", id, "error", err)
	}
}
