package service

import (
	"context"
	"errors"
	"testing"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/repository"
)

func newQuizFixture(t *testing.T) (*QuizService, *ContentService, models.Course, models.Quiz, []models.QuizQuestion, models.User) {
	t.Helper()
	db := newTestDB(t)
	contentRepo := repository.NewContentRepository(db)
	content := NewContentService(contentRepo, repository.NewCourseRepository(db), nil)
	quizzes := NewQuizService(contentRepo, repository.NewQuizRepository(db), repository.NewEnrollmentRepository(db))

	course := seedCourse(t, db, "Quiz Course", 0)
	user := seedUser(t, db, "learner@example.com")
	ctx := context.Background()

	quiz, err := content.CreateQuiz(ctx, course.ID, models.CreateQuizRequest{Title: "Check", PassScore: 50})
	if err != nil {
		t.Fatalf("failed to create quiz: %v", err)
	}
	questions, err := quizzes.ReplaceQuestions(ctx, course.ID, quiz.ID, models.ReplaceQuizQuestionsRequest{
		Questions: []models.QuizQuestionInput{
			{Prompt: "2 + 2", Options: []string{"3", "4"}, CorrectOption: 1},
			{Prompt: "Go keyword for goroutines", Options: []string{"go", "async", "spawn"}, CorrectOption: 0},
		},
	})
	if err != nil {
		t.Fatalf("failed to store questions: %v", err)
	}
	if err := db.Create(&models.Enrollment{UserID: user.ID, CourseID: course.ID, Source: models.EnrollmentSourceFree}).Error; err != nil {
		t.Fatalf("failed to enroll: %v", err)
	}
	return quizzes, content, course, *quiz, questions, user
}

func TestSubmitAttemptGrades(t *testing.T) {
	quizzes, _, course, quiz, questions, user := newQuizFixture(t)
	ctx := context.Background()

	if len(questions) != 2 || questions[0].Position != 0 || questions[1].Position != 1 {
		t.Fatalf("expected ordered questions, got %+v", questions)
	}

	result, err := quizzes.SubmitAttempt(ctx, user.ID, course.ID, quiz.ID, models.SubmitQuizAttemptRequest{
		Answers: []models.QuizAnswerSubmission{
			{QuestionID: questions[0].ID, SelectedOption: 1},
			{QuestionID: questions[1].ID, SelectedOption: 2},
		},
	})
	if err != nil {
		t.Fatalf("expected graded attempt, got %v", err)
	}
	if result.Attempt.Score != 1 || result.Attempt.MaxScore != 2 || !result.Attempt.Passed {
		t.Fatalf("expected 1/2 passing at 50%%, got %+v", result.Attempt)
	}
	if result.Attempts != 1 || len(result.Attempt.Answers) != 2 {
		t.Fatalf("expected one stored attempt with two answers, got %+v", result)
	}

	result, err = quizzes.SubmitAttempt(ctx, user.ID, course.ID, quiz.ID, models.SubmitQuizAttemptRequest{})
	if err != nil {
		t.Fatalf("expected empty attempt to be graded, got %v", err)
	}
	if result.Attempt.Score != 0 || result.Attempt.Passed || result.Attempts != 2 {
		t.Fatalf("expected failing second attempt, got %+v", result)
	}

	attempts, err := quizzes.Attempts(ctx, user.ID, course.ID, quiz.ID)
	if err != nil || len(attempts) != 2 {
		t.Fatalf("expected two attempts, got %d, %v", len(attempts), err)
	}
}

func TestSubmitAttemptRequiresEnrollment(t *testing.T) {
	quizzes, _, course, quiz, questions, _ := newQuizFixture(t)

	_, err := quizzes.SubmitAttempt(context.Background(), 999, course.ID, quiz.ID, models.SubmitQuizAttemptRequest{
		Answers: []models.QuizAnswerSubmission{{QuestionID: questions[0].ID, SelectedOption: 1}},
	})
	if !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected not enrolled, got %v", err)
	}
}

func TestSubmitAttemptRejectsBadAnswers(t *testing.T) {
	quizzes, _, course, quiz, questions, user := newQuizFixture(t)
	ctx := context.Background()

	cases := map[string][]models.QuizAnswerSubmission{
		"unknown question": {{QuestionID: 12345, SelectedOption: 0}},
		"duplicate":        {{QuestionID: questions[0].ID, SelectedOption: 0}, {QuestionID: questions[0].ID, SelectedOption: 1}},
		"out of range":     {{QuestionID: questions[0].ID, SelectedOption: 5}},
	}
	for name, answers := range cases {
		if _, err := quizzes.SubmitAttempt(ctx, user.ID, course.ID, quiz.ID, models.SubmitQuizAttemptRequest{Answers: answers}); !IsValidationError(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestReplaceQuestionsValidates(t *testing.T) {
	quizzes, _, course, quiz, _, _ := newQuizFixture(t)
	ctx := context.Background()

	bad := []models.QuizQuestionInput{
		{Prompt: "", Options: []string{"a", "b"}},
		{Prompt: "one option", Options: []string{"a", " "}},
		{Prompt: "bad index", Options: []string{"a", "b"}, CorrectOption: 2},
	}
	for _, input := range bad {
		if _, err := quizzes.ReplaceQuestions(ctx, course.ID, quiz.ID, models.ReplaceQuizQuestionsRequest{Questions: []models.QuizQuestionInput{input}}); !IsValidationError(err) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}

	if _, err := quizzes.Questions(ctx, course.ID+1, quiz.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected quiz of another course to be hidden, got %v", err)
	}
}
