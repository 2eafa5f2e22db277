package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"course-platform-backend/internal/background"
	"course-platform-backend/internal/service"
)

// ReconcileTrigger is the part of the reconciler the admin API drives.
type ReconcileTrigger interface {
	Trigger() error
	LastReport() (service.SweepReport, time.Time, error)
}

type ReconcileHandler struct {
	reconciler ReconcileTrigger
}

func NewReconcileHandler(reconciler ReconcileTrigger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

func (h *ReconcileHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.reconciler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation is disabled"})
		return false
	}
	return true
}

// Trigger queues a sweep. A sweep already in flight is reported as accepted.
func (h *ReconcileHandler) Trigger(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	if err := h.reconciler.Trigger(); err != nil {
		if errors.Is(err, background.ErrJobAlreadyScheduled) {
			c.JSON(http.StatusAccepted, gin.H{"message": "sweep already running"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "sweep scheduled"})
}

func (h *ReconcileHandler) Status(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	report, finishedAt, err := h.reconciler.LastReport()
	response := gin.H{"report": report}
	if !finishedAt.IsZero() {
		response["finished_at"] = finishedAt
	}
	if err != nil {
		response["error"] = err.Error()
	}

	c.JSON(http.StatusOK, response)
}
