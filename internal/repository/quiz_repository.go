package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-platform-backend/internal/models"
)

type QuizRepository interface {
	ReplaceQuestions(ctx context.Context, quizID uint, questions []models.QuizQuestion) error
	ListQuestions(ctx context.Context, quizID uint) ([]models.QuizQuestion, error)
	SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	CountAttempts(ctx context.Context, quizID, userID uint) (int64, error)
	ListAttempts(ctx context.Context, quizID, userID uint) ([]models.QuizAttempt, error)
}

type quizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) ReplaceQuestions(ctx context.Context, quizID uint, questions []models.QuizQuestion) error {
	if r == nil || r.db == nil {
		return errors.New("quiz repository is not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", quizID).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}
		for idx := range questions {
			question := questions[idx]
			question.ID = 0
			question.QuizID = quizID
			question.Position = idx
			if err := tx.Omit(clause.Associations).Create(&question).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *quizRepository) ListQuestions(ctx context.Context, quizID uint) ([]models.QuizQuestion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("quiz repository is not initialised")
	}
	var questions []models.QuizQuestion
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("position ASC, id ASC").Find(&questions).Error
	return questions, err
}

func (r *quizRepository) SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if r == nil || r.db == nil {
		return errors.New("quiz repository is not initialised")
	}
	if attempt == nil {
		return errors.New("attempt is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answers := attempt.Answers
		if err := tx.Omit(clause.Associations).Create(attempt).Error; err != nil {
			return err
		}
		for idx := range answers {
			answers[idx].ID = 0
			answers[idx].AttemptID = attempt.ID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		attempt.Answers = answers
		return nil
	})
}

func (r *quizRepository) CountAttempts(ctx context.Context, quizID, userID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("quiz repository is not initialised")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	return count, err
}

func (r *quizRepository) ListAttempts(ctx context.Context, quizID, userID uint) ([]models.QuizAttempt, error) {
	attempts := make([]models.QuizAttempt, 0)
	if r == nil || r.db == nil {
		return attempts, errors.New("quiz repository is not initialised")
	}
	err := r.db.WithContext(ctx).
		Preload("Answers").
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("created_at DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}
