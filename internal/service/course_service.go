package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/repository"
	"course-platform-backend/pkg/utils"
	"course-platform-backend/pkg/validator"
)

type CourseService struct {
	courseRepo repository.CourseRepository
	cache      OutlineCache
}

func NewCourseService(courseRepo repository.CourseRepository, outlineCache OutlineCache) *CourseService {
	return &CourseService{
		courseRepo: courseRepo,
		cache:      outlineCache,
	}
}

func (s *CourseService) Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	if s == nil || s.courseRepo == nil {
		return nil, errors.New("course service is not configured")
	}

	title := validator.NormalizeSpaces(validator.SanitizeString(req.Title))
	if title == "" {
		return nil, newValidationError("course title is required")
	}
	if req.PriceMinor < 0 {
		return nil, newValidationError("course price must not be negative")
	}

	slug, err := utils.UniqueSlug(utils.GenerateSlug(title), func(candidate string) (bool, error) {
		return s.courseRepo.SlugExists(ctx, candidate, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate course slug: %w", err)
	}

	course := &models.Course{
		Title:         title,
		Slug:          slug,
		Description:   validator.SanitizeHTML(req.Description),
		PriceMinor:    req.PriceMinor,
		ImageURL:      strings.TrimSpace(req.ImageURL),
		ImagePublicID: strings.TrimSpace(req.ImagePublicID),
		MaxPosition:   -1,
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		if isDuplicateKeyError(err) {
			return nil, conflict("course slug %q is taken", slug)
		}
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	return course, nil
}

func (s *CourseService) Update(ctx context.Context, id uint, req models.UpdateCourseRequest) (*models.Course, error) {
	if s == nil || s.courseRepo == nil {
		return nil, errors.New("course service is not configured")
	}

	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "course %d", id)
	}

	title := validator.NormalizeSpaces(validator.SanitizeString(req.Title))
	if title == "" {
		return nil, newValidationError("course title is required")
	}
	if req.PriceMinor < 0 {
		return nil, newValidationError("course price must not be negative")
	}

	if title != course.Title {
		slug, err := utils.UniqueSlug(utils.GenerateSlug(title), func(candidate string) (bool, error) {
			return s.courseRepo.SlugExists(ctx, candidate, course.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate course slug: %w", err)
		}
		course.Slug = slug
	}

	course.Title = title
	course.Description = validator.SanitizeHTML(req.Description)
	course.PriceMinor = req.PriceMinor
	course.ImageURL = strings.TrimSpace(req.ImageURL)
	course.ImagePublicID = strings.TrimSpace(req.ImagePublicID)

	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}

	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, id uint) error {
	if s == nil || s.courseRepo == nil {
		return errors.New("course service is not configured")
	}
	if err := s.courseRepo.Delete(ctx, id); err != nil {
		return notFound(err, "course %d", id)
	}
	if s.cache != nil {
		_ = s.cache.InvalidateCourseOutline(id)
	}
	return nil
}

func (s *CourseService) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	if s == nil || s.courseRepo == nil {
		return nil, errors.New("course service is not configured")
	}
	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "course %d", id)
	}
	return course, nil
}

func (s *CourseService) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	if s == nil || s.courseRepo == nil {
		return nil, errors.New("course service is not configured")
	}
	course, err := s.courseRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "course %q", slug)
	}
	return course, nil
}

func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	if s == nil || s.courseRepo == nil {
		return nil, errors.New("course service is not configured")
	}
	return s.courseRepo.List(ctx)
}
