package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-platform-backend/internal/models"
)

type EnrollmentRepository interface {
	Get(ctx context.Context, userID, courseID uint) (*models.Enrollment, error)
	// CreateIfAbsent inserts the enrollment unless (user, course) is already
	// taken. When it is, enrollment is overwritten with the stored row and
	// created is false.
	CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (created bool, err error)
	ListByUser(ctx context.Context, userID uint) ([]models.Enrollment, error)
	EnrolledCourseIDs(ctx context.Context, userID uint, courseIDs []uint) ([]uint, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Get(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("enrollment repository is not initialised")
	}
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("enrollment repository is not initialised")
	}
	if enrollment == nil {
		return false, errors.New("enrollment is required")
	}

	// DO NOTHING keeps a postgres transaction usable when a concurrent
	// verifier has inserted the same pair first.
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(enrollment)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	existing, err := r.Get(ctx, enrollment.UserID, enrollment.CourseID)
	if err != nil {
		return false, err
	}
	*enrollment = *existing
	return false, nil
}

func (r *enrollmentRepository) ListByUser(ctx context.Context, userID uint) ([]models.Enrollment, error) {
	enrollments := make([]models.Enrollment, 0)
	if r == nil || r.db == nil {
		return enrollments, errors.New("enrollment repository is not initialised")
	}
	if userID == 0 {
		return enrollments, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepository) EnrolledCourseIDs(ctx context.Context, userID uint, courseIDs []uint) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("enrollment repository is not initialised")
	}
	ids := make([]uint, 0)
	if userID == 0 || len(courseIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id IN ?", userID, courseIDs).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}
