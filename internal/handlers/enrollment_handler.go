package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"course-platform-backend/internal/service"
)

type EnrollmentHandler struct {
	enrollmentService *service.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

func (h *EnrollmentHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.enrollmentService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enrollments are not available"})
		return false
	}
	return true
}

// Enroll joins a free course.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	enrollment, err := h.enrollmentService.Enroll(c.Request.Context(), userID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

func (h *EnrollmentHandler) Check(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	enrolled, err := h.enrollmentService.IsEnrolled(c.Request.Context(), userID, courseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrolled": enrolled})
}

func (h *EnrollmentHandler) List(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	enrollments, err := h.enrollmentService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}
