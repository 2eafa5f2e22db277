package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/repository"
	"course-platform-backend/pkg/logger"
)

// EnrollmentService guards the one-enrollment-per-course rule.
type EnrollmentService struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
}

func NewEnrollmentService(enrollments repository.EnrollmentRepository, courses repository.CourseRepository) *EnrollmentService {
	return &EnrollmentService{enrollments: enrollments, courses: courses}
}

// EnrollIfAbsent returns the existing enrollment for (user, course) or
// creates it. Calling it twice never yields a second row and never fails
// because of one.
func (s *EnrollmentService) EnrollIfAbsent(ctx context.Context, userID, courseID uint, source string, paymentID *uint) (*models.Enrollment, bool, error) {
	if s == nil || s.enrollments == nil {
		return nil, false, errors.New("enrollment service is not configured")
	}
	return enrollIfAbsent(ctx, s.enrollments, models.Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		Source:    source,
		PaymentID: paymentID,
	})
}

// Enroll joins a free course directly. Paid courses go through checkout.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	if s == nil || s.enrollments == nil || s.courses == nil {
		return nil, errors.New("enrollment service is not configured")
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "course %d", courseID)
	}
	if !course.IsFree() {
		return nil, conflict("course %d requires payment", courseID)
	}

	enrollment, _, err := enrollIfAbsent(ctx, s.enrollments, models.Enrollment{
		UserID:   userID,
		CourseID: course.ID,
		Source:   models.EnrollmentSourceFree,
	})
	return enrollment, err
}

func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	if s == nil || s.enrollments == nil {
		return false, errors.New("enrollment service is not configured")
	}
	if userID == 0 || courseID == 0 {
		return false, nil
	}
	if _, err := s.enrollments.Get(ctx, userID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *EnrollmentService) ListByUser(ctx context.Context, userID uint) ([]models.Enrollment, error) {
	if s == nil || s.enrollments == nil {
		return nil, errors.New("enrollment service is not configured")
	}
	return s.enrollments.ListByUser(ctx, userID)
}

// enrollIfAbsent runs the guard against any store, including one bound to a
// payment transaction.
func enrollIfAbsent(ctx context.Context, repo repository.EnrollmentRepository, enrollment models.Enrollment) (*models.Enrollment, bool, error) {
	if enrollment.UserID == 0 || enrollment.CourseID == 0 {
		return nil, false, newValidationError("user and course are required to enroll")
	}
	if enrollment.Source == "" {
		enrollment.Source = models.EnrollmentSourceFree
	}

	existing, err := repo.Get(ctx, enrollment.UserID, enrollment.CourseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created, err := repo.CreateIfAbsent(ctx, &enrollment)
	if err != nil {
		if !isDuplicateKeyError(err) {
			return nil, false, err
		}
		// A concurrent insert won; presence is all that matters.
		existing, getErr := repo.Get(ctx, enrollment.UserID, enrollment.CourseID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}

	if created {
		logger.FromContext(ctx).WithFields(map[string]interface{}{
			"user_id":   enrollment.UserID,
			"course_id": enrollment.CourseID,
			"source":    enrollment.Source,
		}).Info("Enrollment created")
	}
	return &enrollment, created, nil
}
