package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/ordering"
	"course-platform-backend/internal/repository"
	"course-platform-backend/pkg/logger"
	"course-platform-backend/pkg/validator"
)

// maxQuizzesPerCourse caps quizzes on one axis. The allocator itself has no such limit.
const maxQuizzesPerCourse = 1

// OutlineCache is the slice of pkg/cache the content service relies on.
type OutlineCache interface {
	CacheCourseOutline(courseID uint, outline interface{}) error
	GetCachedCourseOutline(courseID uint, dest interface{}) error
	InvalidateCourseOutline(courseID uint) error
}

// ContentService keeps the lessons and quizzes of a course on one ordered axis.
type ContentService struct {
	content repository.ContentRepository
	courses repository.CourseRepository
	cache   OutlineCache
}

func NewContentService(content repository.ContentRepository, courses repository.CourseRepository, outlineCache OutlineCache) *ContentService {
	return &ContentService{
		content: content,
		courses: courses,
		cache:   outlineCache,
	}
}

func (s *ContentService) ready() error {
	if s == nil || s.content == nil || s.courses == nil {
		return errors.New("content service is not configured")
	}
	return nil
}

func (s *ContentService) CreateLesson(ctx context.Context, courseID uint, req models.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	videoURL, err := normalizeVideoURL(req.VideoURL)
	if err != nil {
		return nil, err
	}

	var lesson *models.Lesson
	err = s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		plan, err := ordering.PlanInsert(axis.Course().MaxPosition, req.Position, axis.Occupied)
		if err != nil {
			return err
		}
		if plan.Shift != nil {
			if err := axis.Shift(*plan.Shift); err != nil {
				return err
			}
		}

		lesson = &models.Lesson{
			Position:      plan.Position,
			Title:         lessonTitle(req.Title, plan.Position),
			Content:       validator.SanitizeHTML(req.Content),
			VideoURL:      videoURL,
			VideoPublicID: trimmedOrNil(req.VideoPublicID),
		}
		if err := axis.CreateLesson(lesson); err != nil {
			return fmt.Errorf("failed to create lesson: %w", err)
		}
		return axis.SetMaxPosition(plan.MaxPosition)
	})
	if err != nil {
		return nil, s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return lesson, nil
}

func (s *ContentService) UpdateLesson(ctx context.Context, courseID, lessonID uint, req models.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var videoURL *string
	if req.VideoURL != nil {
		normalized, err := normalizeVideoURL(req.VideoURL)
		if err != nil {
			return nil, err
		}
		videoURL = normalized
	}

	var lesson *models.Lesson
	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		current, err := axis.GetLesson(lessonID)
		if err != nil {
			return notFound(err, "lesson %d", lessonID)
		}

		if req.Title != nil {
			current.Title = lessonTitle(*req.Title, current.Position)
		}
		if req.Content != nil {
			current.Content = validator.SanitizeHTML(*req.Content)
		}
		if req.VideoURL != nil {
			current.VideoURL = videoURL
		}
		if req.VideoPublicID != nil {
			current.VideoPublicID = trimmedOrNil(req.VideoPublicID)
		}
		if req.Position != nil {
			position, err := reposition(axis, current.Position, *req.Position)
			if err != nil {
				return err
			}
			current.Position = position
		}

		if err := axis.SaveLesson(current); err != nil {
			return fmt.Errorf("failed to update lesson: %w", err)
		}
		lesson = current
		return nil
	})
	if err != nil {
		return nil, s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return lesson, nil
}

func (s *ContentService) DeleteLesson(ctx context.Context, courseID, lessonID uint) error {
	if err := s.ready(); err != nil {
		return err
	}

	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		current, err := axis.GetLesson(lessonID)
		if err != nil {
			return notFound(err, "lesson %d", lessonID)
		}
		if err := axis.DeleteLesson(current.ID); err != nil {
			return fmt.Errorf("failed to delete lesson: %w", err)
		}
		return axis.Shift(ordering.PlanCompact(current.Position))
	})
	if err != nil {
		return s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return nil
}

func (s *ContentService) CreateQuiz(ctx context.Context, courseID uint, req models.CreateQuizRequest) (*models.Quiz, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	title := validator.NormalizeSpaces(validator.SanitizeString(req.Title))
	if title == "" {
		return nil, newValidationError("quiz title is required")
	}
	if req.PassScore < 0 || req.PassScore > 100 {
		return nil, newValidationError("pass score must be between 0 and 100")
	}

	var quiz *models.Quiz
	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		count, err := axis.CountQuizzes()
		if err != nil {
			return err
		}
		if count >= maxQuizzesPerCourse {
			return conflict("course %d already has a quiz", courseID)
		}

		plan, err := ordering.PlanInsert(axis.Course().MaxPosition, req.Position, axis.Occupied)
		if err != nil {
			return err
		}
		if plan.Shift != nil {
			if err := axis.Shift(*plan.Shift); err != nil {
				return err
			}
		}

		quiz = &models.Quiz{
			Position:    plan.Position,
			Title:       title,
			Description: validator.SanitizeHTML(req.Description),
			PassScore:   req.PassScore,
		}
		if err := axis.CreateQuiz(quiz); err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}
		return axis.SetMaxPosition(plan.MaxPosition)
	})
	if err != nil {
		return nil, s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return quiz, nil
}

func (s *ContentService) UpdateQuiz(ctx context.Context, courseID, quizID uint, req models.UpdateQuizRequest) (*models.Quiz, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var quiz *models.Quiz
	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		current, err := axis.GetQuiz(quizID)
		if err != nil {
			return notFound(err, "quiz %d", quizID)
		}

		if req.Title != nil {
			title := validator.NormalizeSpaces(validator.SanitizeString(*req.Title))
			if title == "" {
				return newValidationError("quiz title is required")
			}
			current.Title = title
		}
		if req.Description != nil {
			current.Description = validator.SanitizeHTML(*req.Description)
		}
		if req.PassScore != nil {
			if *req.PassScore < 0 || *req.PassScore > 100 {
				return newValidationError("pass score must be between 0 and 100")
			}
			current.PassScore = *req.PassScore
		}
		if req.Position != nil {
			position, err := reposition(axis, current.Position, *req.Position)
			if err != nil {
				return err
			}
			current.Position = position
		}

		if err := axis.SaveQuiz(current); err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}
		quiz = current
		return nil
	})
	if err != nil {
		return nil, s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return quiz, nil
}

func (s *ContentService) DeleteQuiz(ctx context.Context, courseID, quizID uint) error {
	if err := s.ready(); err != nil {
		return err
	}

	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		current, err := axis.GetQuiz(quizID)
		if err != nil {
			return notFound(err, "quiz %d", quizID)
		}
		if err := axis.DeleteQuiz(current.ID); err != nil {
			return fmt.Errorf("failed to delete quiz: %w", err)
		}
		return axis.Shift(ordering.PlanCompact(current.Position))
	})
	if err != nil {
		return s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return nil
}

// Reorder assigns position i to refs[i]. refs must list every lesson and quiz
// of the course exactly once.
func (s *ContentService) Reorder(ctx context.Context, courseID uint, refs []models.ContentRef) (*models.CourseOutline, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	normalized := make([]models.ContentRef, 0, len(refs))
	for _, ref := range refs {
		kind, ok := models.ParseContentKind(string(ref.Kind))
		if !ok {
			return nil, newValidationError("unknown content kind %q", ref.Kind)
		}
		normalized = append(normalized, models.ContentRef{Kind: kind, ID: ref.ID})
	}

	var outline *models.CourseOutline
	err := s.content.WithCourseLock(ctx, courseID, func(axis repository.CourseAxis) error {
		items, err := axis.Items()
		if err != nil {
			return err
		}
		slots, err := ordering.PlanReorder(items, normalized)
		if err != nil {
			return err
		}
		if err := axis.Assign(slots); err != nil {
			return err
		}
		if err := axis.SetMaxPosition(ordering.Raise(axis.Course().MaxPosition, len(normalized)-1)); err != nil {
			return err
		}

		reordered, err := axis.Items()
		if err != nil {
			return err
		}
		outline = &models.CourseOutline{
			CourseID:    courseID,
			MaxPosition: axis.Course().MaxPosition,
			Items:       reordered,
		}
		return nil
	})
	if err != nil {
		return nil, s.axisFailure(err, courseID)
	}

	s.invalidate(ctx, courseID)
	return outline, nil
}

// Outline returns the merged, ordered content of a course.
func (s *ContentService) Outline(ctx context.Context, courseID uint) (*models.CourseOutline, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached models.CourseOutline
		if err := s.cache.GetCachedCourseOutline(courseID, &cached); err == nil {
			return &cached, nil
		}
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "course %d", courseID)
	}
	items, err := s.content.ListItems(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	outline := &models.CourseOutline{
		CourseID:    course.ID,
		MaxPosition: course.MaxPosition,
		Items:       items,
	}

	if s.cache != nil {
		if err := s.cache.CacheCourseOutline(course.ID, outline); err != nil {
			logger.FromContext(ctx).WithError(err).Debug("Course outline not cached")
		}
	}

	return outline, nil
}

func (s *ContentService) GetLesson(ctx context.Context, courseID, lessonID uint) (*models.Lesson, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	lesson, err := s.content.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, notFound(err, "lesson %d", lessonID)
	}
	if lesson.CourseID != courseID {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, ErrNotFound)
	}
	return lesson, nil
}

func (s *ContentService) GetQuiz(ctx context.Context, courseID, quizID uint) (*models.Quiz, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, notFound(err, "quiz %d", quizID)
	}
	if quiz.CourseID != courseID {
		return nil, fmt.Errorf("quiz %d: %w", quizID, ErrNotFound)
	}
	return quiz, nil
}

// reposition moves one item from -> to on the locked axis and returns the
// final position. Targets past the last occupied position are clamped to it.
func reposition(axis repository.CourseAxis, from, to int) (int, error) {
	if to < 0 {
		return 0, ordering.ErrNegativePosition
	}

	items, err := axis.Items()
	if err != nil {
		return 0, err
	}
	last := from
	for _, item := range items {
		if item.Position > last {
			last = item.Position
		}
	}
	if to > last {
		to = last
	}

	shift, err := ordering.PlanMove(from, to)
	if err != nil {
		return 0, err
	}
	if shift == nil {
		return from, nil
	}
	if err := axis.Shift(*shift); err != nil {
		return 0, err
	}
	if err := axis.SetMaxPosition(ordering.Raise(axis.Course().MaxPosition, to)); err != nil {
		return 0, err
	}
	return to, nil
}

// axisFailure maps errors escaping a course transaction.
func (s *ContentService) axisFailure(err error, courseID uint) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || IsValidationError(err) {
		return err
	}
	return axisError(notFound(err, "course %d", courseID))
}

func (s *ContentService) invalidate(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCourseOutline(courseID); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("course_id", courseID).Warn("Failed to invalidate course outline")
	}
}

func lessonTitle(raw string, position int) string {
	title := validator.NormalizeSpaces(validator.SanitizeString(raw))
	if title == "" {
		return fmt.Sprintf("Lesson %d", position+1)
	}
	return title
}

func normalizeVideoURL(raw *string) (*string, error) {
	value := trimmedOrNil(raw)
	if value == nil {
		return nil, nil
	}
	if !validator.ValidateURL(*value) {
		return nil, newValidationError("video url %q is not a valid URL", *value)
	}
	return value, nil
}

func trimmedOrNil(raw *string) *string {
	if raw == nil {
		return nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil
	}
	return &value
}
