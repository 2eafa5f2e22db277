package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"course-platform-backend/internal/middleware"
	"course-platform-backend/internal/models"
	"course-platform-backend/internal/service"
)

type QuizHandler struct {
	quizService *service.QuizService
}

func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

func (h *QuizHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.quizService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "quizzes are not available"})
		return false
	}
	return true
}

func (h *QuizHandler) quizPath(c *gin.Context) (uint, uint, bool) {
	courseID, ok := requireUint(c, "id", "course")
	if !ok {
		return 0, 0, false
	}
	quizID, ok := requireUint(c, "quizId", "quiz")
	if !ok {
		return 0, 0, false
	}
	return courseID, quizID, true
}

func (h *QuizHandler) ReplaceQuestions(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, quizID, ok := h.quizPath(c)
	if !ok {
		return
	}

	var req models.ReplaceQuizQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := h.quizService.ReplaceQuestions(c.Request.Context(), courseID, quizID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// Questions lists a quiz's questions. Explanations are withheld from non-admins.
func (h *QuizHandler) Questions(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, quizID, ok := h.quizPath(c)
	if !ok {
		return
	}

	questions, err := h.quizService.Questions(c.Request.Context(), courseID, quizID)
	if err != nil {
		writeError(c, err)
		return
	}

	if !middleware.IsAdmin(c) {
		for i := range questions {
			questions[i].Explanation = ""
		}
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *QuizHandler) Submit(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, quizID, ok := h.quizPath(c)
	if !ok {
		return
	}

	var req models.SubmitQuizAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.quizService.SubmitAttempt(c.Request.Context(), userID, courseID, quizID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"result": result})
}

func (h *QuizHandler) Attempts(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, quizID, ok := h.quizPath(c)
	if !ok {
		return
	}

	attempts, err := h.quizService.Attempts(c.Request.Context(), userID, courseID, quizID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
