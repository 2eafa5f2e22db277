package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/repository"
	"course-platform-backend/pkg/validator"
)

type QuizService struct {
	content     repository.ContentRepository
	quizzes     repository.QuizRepository
	enrollments repository.EnrollmentRepository
}

func NewQuizService(content repository.ContentRepository, quizzes repository.QuizRepository, enrollments repository.EnrollmentRepository) *QuizService {
	return &QuizService{
		content:     content,
		quizzes:     quizzes,
		enrollments: enrollments,
	}
}

func (s *QuizService) ready() error {
	if s == nil || s.content == nil || s.quizzes == nil || s.enrollments == nil {
		return errors.New("quiz service is not configured")
	}
	return nil
}

func (s *QuizService) quiz(ctx context.Context, courseID, quizID uint) (*models.Quiz, error) {
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, notFound(err, "quiz %d", quizID)
	}
	if quiz.CourseID != courseID {
		return nil, fmt.Errorf("quiz %d: %w", quizID, ErrNotFound)
	}
	return quiz, nil
}

// ReplaceQuestions swaps the full question list of a quiz. Order follows the request.
func (s *QuizService) ReplaceQuestions(ctx context.Context, courseID, quizID uint, req models.ReplaceQuizQuestionsRequest) ([]models.QuizQuestion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, courseID, quizID)
	if err != nil {
		return nil, err
	}

	questions := make([]models.QuizQuestion, 0, len(req.Questions))
	for idx, input := range req.Questions {
		prompt := validator.NormalizeSpaces(validator.SanitizeString(input.Prompt))
		if prompt == "" {
			return nil, newValidationError("question %d: prompt is required", idx+1)
		}

		options := make([]string, 0, len(input.Options))
		for _, option := range input.Options {
			if cleaned := validator.NormalizeSpaces(validator.SanitizeString(option)); cleaned != "" {
				options = append(options, cleaned)
			}
		}
		if len(options) < 2 {
			return nil, newValidationError("question %d: at least two options are required", idx+1)
		}
		if input.CorrectOption < 0 || input.CorrectOption >= len(options) {
			return nil, newValidationError("question %d: correct option %d is out of range", idx+1, input.CorrectOption)
		}

		encoded, err := json.Marshal(options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}

		questions = append(questions, models.QuizQuestion{
			QuizID:        quiz.ID,
			Prompt:        prompt,
			Options:       datatypes.JSON(encoded),
			CorrectOption: input.CorrectOption,
			Explanation:   validator.SanitizeHTML(strings.TrimSpace(input.Explanation)),
		})
	}

	if err := s.quizzes.ReplaceQuestions(ctx, quiz.ID, questions); err != nil {
		return nil, fmt.Errorf("failed to store questions: %w", err)
	}
	return s.quizzes.ListQuestions(ctx, quiz.ID)
}

func (s *QuizService) Questions(ctx context.Context, courseID, quizID uint) ([]models.QuizQuestion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, courseID, quizID)
	if err != nil {
		return nil, err
	}
	return s.quizzes.ListQuestions(ctx, quiz.ID)
}

// SubmitAttempt grades one submission. Unanswered questions count as wrong.
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, courseID, quizID uint, req models.SubmitQuizAttemptRequest) (*models.QuizAttemptResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, courseID, quizID)
	if err != nil {
		return nil, err
	}

	if _, err := s.enrollments.Get(ctx, userID, quiz.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}

	questions, err := s.quizzes.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, newValidationError("quiz %d has no questions", quiz.ID)
	}

	byID := make(map[uint]models.QuizQuestion, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	answered := make(map[uint]struct{}, len(req.Answers))
	answers := make([]models.QuizAnswer, 0, len(req.Answers))
	score := 0
	for _, submission := range req.Answers {
		question, ok := byID[submission.QuestionID]
		if !ok {
			return nil, newValidationError("question %d does not belong to quiz %d", submission.QuestionID, quiz.ID)
		}
		if _, dup := answered[question.ID]; dup {
			return nil, newValidationError("question %d answered twice", question.ID)
		}
		answered[question.ID] = struct{}{}

		count, err := optionCount(question)
		if err != nil {
			return nil, err
		}
		if submission.SelectedOption < 0 || submission.SelectedOption >= count {
			return nil, newValidationError("question %d: option %d is out of range", question.ID, submission.SelectedOption)
		}

		correct := submission.SelectedOption == question.CorrectOption
		if correct {
			score++
		}
		answers = append(answers, models.QuizAnswer{
			QuestionID:     question.ID,
			SelectedOption: submission.SelectedOption,
			Correct:        correct,
		})
	}

	attempt := &models.QuizAttempt{
		QuizID:   quiz.ID,
		UserID:   userID,
		Score:    score,
		MaxScore: len(questions),
		Passed:   score*100 >= quiz.PassScore*len(questions),
		Answers:  answers,
	}
	if err := s.quizzes.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}

	total, err := s.quizzes.CountAttempts(ctx, quiz.ID, userID)
	if err != nil {
		return nil, err
	}

	return &models.QuizAttemptResult{Attempt: *attempt, Attempts: total}, nil
}

func (s *QuizService) Attempts(ctx context.Context, userID, courseID, quizID uint) ([]models.QuizAttempt, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, courseID, quizID)
	if err != nil {
		return nil, err
	}
	return s.quizzes.ListAttempts(ctx, quiz.ID, userID)
}

func optionCount(question models.QuizQuestion) (int, error) {
	var options []string
	if len(question.Options) == 0 {
		return 0, nil
	}
	if err := json.Unmarshal(question.Options, &options); err != nil {
		return 0, fmt.Errorf("question %d has unreadable options: %w", question.ID, err)
	}
	return len(options), nil
}
