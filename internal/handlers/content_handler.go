package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/service"
)

// ContentHandler exposes lesson and quiz mutations on a course axis.
type ContentHandler struct {
	contentService *service.ContentService
}

func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

func (h *ContentHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.contentService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "course content is not available"})
		return false
	}
	return true
}

func (h *ContentHandler) Outline(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	outline, err := h.contentService.Outline(c.Request.Context(), courseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outline": outline})
}

func (h *ContentHandler) Reorder(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	var req models.ReorderContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outline, err := h.contentService.Reorder(c.Request.Context(), courseID, req.Items)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outline": outline})
}

func (h *ContentHandler) CreateLesson(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	var req models.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lesson, err := h.contentService.CreateLesson(c.Request.Context(), courseID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"lesson": lesson})
}

func (h *ContentHandler) GetLesson(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	lessonID, ok := requireUint(c, "lessonId", "lesson")
	if !ok {
		return
	}

	lesson, err := h.contentService.GetLesson(c.Request.Context(), courseID, lessonID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lesson": lesson})
}

func (h *ContentHandler) UpdateLesson(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	lessonID, ok := requireUint(c, "lessonId", "lesson")
	if !ok {
		return
	}

	var req models.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lesson, err := h.contentService.UpdateLesson(c.Request.Context(), courseID, lessonID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lesson": lesson})
}

func (h *ContentHandler) DeleteLesson(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	lessonID, ok := requireUint(c, "lessonId", "lesson")
	if !ok {
		return
	}

	if err := h.contentService.DeleteLesson(c.Request.Context(), courseID, lessonID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "lesson deleted"})
}

func (h *ContentHandler) CreateQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}

	var req models.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.contentService.CreateQuiz(c.Request.Context(), courseID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quiz": quiz})
}

func (h *ContentHandler) GetQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	quizID, ok := requireUint(c, "quizId", "quiz")
	if !ok {
		return
	}

	quiz, err := h.contentService.GetQuiz(c.Request.Context(), courseID, quizID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

func (h *ContentHandler) UpdateQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	quizID, ok := requireUint(c, "quizId", "quiz")
	if !ok {
		return
	}

	var req models.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.contentService.UpdateQuiz(c.Request.Context(), courseID, quizID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

func (h *ContentHandler) DeleteQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return
	}
	quizID, ok := requireUint(c, "quizId", "quiz")
	if !ok {
		return
	}

	if err := h.contentService.DeleteQuiz(c.Request.Context(), courseID, quizID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "quiz deleted"})
}
