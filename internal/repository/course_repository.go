package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"course-platform-backend/internal/models"
)

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	if r == nil || r.db == nil {
		return errors.New("course repository is not initialised")
	}
	if course == nil {
		return errors.New("course is required")
	}
	return r.db.WithContext(ctx).Create(course).Error
}

// Update writes the descriptive columns only. The position high-water mark
// belongs to the content axis and is never overwritten from here.
func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	if r == nil || r.db == nil {
		return errors.New("course repository is not initialised")
	}
	if course == nil {
		return errors.New("course is required")
	}
	return r.db.WithContext(ctx).Model(course).
		Select("title", "slug", "description", "price_minor", "image_url", "image_public_id", "updated_at").
		Updates(course).Error
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return errors.New("course repository is not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quizIDs []uint
		if err := tx.Model(&models.Quiz{}).Where("course_id = ?", id).Pluck("id", &quizIDs).Error; err != nil {
			return err
		}
		if err := deleteQuizTree(tx, quizIDs); err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Quiz{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Lesson{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.PaymentCourse{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	cleaned := strings.TrimSpace(slug)
	if cleaned == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var course models.Course
	if err := r.db.WithContext(ctx).Where("slug = ?", cleaned).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	if len(ids) == 0 {
		return []models.Course{}, nil
	}
	var courses []models.Course
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) List(ctx context.Context) ([]models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("course repository is not initialised")
	}
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
