package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/ordering"
)

// ContentRepository stores lessons and quizzes. Every write that touches
// positions goes through WithCourseLock so that mutations of one course axis
// are serialised on the course row.
type ContentRepository interface {
	WithCourseLock(ctx context.Context, courseID uint, fn func(axis CourseAxis) error) error
	ListItems(ctx context.Context, courseID uint) ([]models.ContentItem, error)
	ListLessons(ctx context.Context, courseID uint) ([]models.Lesson, error)
	ListQuizzes(ctx context.Context, courseID uint) ([]models.Quiz, error)
	GetLesson(ctx context.Context, id uint) (*models.Lesson, error)
	GetQuiz(ctx context.Context, id uint) (*models.Quiz, error)
}

// CourseAxis is a view of one locked course inside a transaction. Range
// operations always cover both the lessons and the quizzes table.
type CourseAxis interface {
	Course() models.Course
	Items() ([]models.ContentItem, error)
	Occupied(position int) (bool, error)
	Shift(shift ordering.Shift) error
	Assign(slots []ordering.Slot) error
	SetMaxPosition(value int) error

	GetLesson(id uint) (*models.Lesson, error)
	CreateLesson(lesson *models.Lesson) error
	SaveLesson(lesson *models.Lesson) error
	DeleteLesson(id uint) error

	GetQuiz(id uint) (*models.Quiz, error)
	CreateQuiz(quiz *models.Quiz) error
	SaveQuiz(quiz *models.Quiz) error
	DeleteQuiz(id uint) error
	CountQuizzes() (int64, error)
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) WithCourseLock(ctx context.Context, courseID uint, fn func(axis CourseAxis) error) error {
	if r == nil || r.db == nil {
		return errors.New("content repository is not initialised")
	}
	if fn == nil {
		return errors.New("axis callback is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&course, courseID).Error; err != nil {
			return err
		}
		return fn(&courseAxis{tx: tx, course: course})
	})
}

func (r *contentRepository) ListItems(ctx context.Context, courseID uint) ([]models.ContentItem, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("content repository is not initialised")
	}
	return listItems(r.db.WithContext(ctx), courseID)
}

func (r *contentRepository) ListLessons(ctx context.Context, courseID uint) ([]models.Lesson, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("content repository is not initialised")
	}
	var lessons []models.Lesson
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("position ASC, id ASC").Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *contentRepository) ListQuizzes(ctx context.Context, courseID uint) ([]models.Quiz, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("content repository is not initialised")
	}
	var quizzes []models.Quiz
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("position ASC, id ASC").Find(&quizzes).Error; err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (r *contentRepository) GetLesson(ctx context.Context, id uint) (*models.Lesson, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("content repository is not initialised")
	}
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *contentRepository) GetQuiz(ctx context.Context, id uint) (*models.Quiz, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("content repository is not initialised")
	}
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

type axisRow struct {
	ID       uint
	CourseID uint
	Position int
	Title    string
}

func listItems(db *gorm.DB, courseID uint) ([]models.ContentItem, error) {
	var lessonRows, quizRows []axisRow
	if err := db.Model(&models.Lesson{}).Select("id, course_id, position, title").
		Where("course_id = ?", courseID).Scan(&lessonRows).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Quiz{}).Select("id, course_id, position, title").
		Where("course_id = ?", courseID).Scan(&quizRows).Error; err != nil {
		return nil, err
	}

	items := make([]models.ContentItem, 0, len(lessonRows)+len(quizRows))
	for _, row := range lessonRows {
		items = append(items, row.item(models.ContentKindLesson))
	}
	for _, row := range quizRows {
		items = append(items, row.item(models.ContentKindQuiz))
	}
	ordering.Sort(items)
	return items, nil
}

func (row axisRow) item(kind models.ContentKind) models.ContentItem {
	return models.ContentItem{Kind: kind, ID: row.ID, CourseID: row.CourseID, Position: row.Position, Title: row.Title}
}

type courseAxis struct {
	tx     *gorm.DB
	course models.Course
}

// axisTables lists the physical tables that share a course axis.
var axisTables = []struct {
	kind  models.ContentKind
	model interface{}
}{
	{kind: models.ContentKindLesson, model: &models.Lesson{}},
	{kind: models.ContentKindQuiz, model: &models.Quiz{}},
}

func (a *courseAxis) Course() models.Course {
	return a.course
}

func (a *courseAxis) Items() ([]models.ContentItem, error) {
	return listItems(a.tx, a.course.ID)
}

func (a *courseAxis) Occupied(position int) (bool, error) {
	for _, table := range axisTables {
		var count int64
		if err := a.tx.Model(table.model).
			Where("course_id = ? AND position = ?", a.course.ID, position).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (a *courseAxis) Shift(shift ordering.Shift) error {
	if shift.Delta == 0 {
		return nil
	}
	for _, table := range axisTables {
		query := a.tx.Model(table.model).Where("course_id = ? AND position >= ?", a.course.ID, shift.From)
		if shift.To != ordering.Unbounded {
			query = query.Where("position <= ?", shift.To)
		}
		if err := query.UpdateColumn("position", gorm.Expr("position + ?", shift.Delta)).Error; err != nil {
			return fmt.Errorf("shift %s %s: %w", table.kind, shift, err)
		}
	}
	return nil
}

// Assign writes every slot of one kind with a single CASE update.
func (a *courseAxis) Assign(slots []ordering.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	for _, table := range axisTables {
		var (
			ids  []uint
			expr strings.Builder
			args []interface{}
		)
		expr.WriteString("CASE id")
		for _, slot := range slots {
			if slot.Ref.Kind != table.kind {
				continue
			}
			ids = append(ids, slot.Ref.ID)
			expr.WriteString(" WHEN ? THEN ?")
			args = append(args, slot.Ref.ID, slot.Position)
		}
		if len(ids) == 0 {
			continue
		}
		expr.WriteString(" ELSE position END")

		result := a.tx.Model(table.model).
			Where("course_id = ? AND id IN ?", a.course.ID, ids).
			UpdateColumn("position", gorm.Expr(expr.String(), args...))
		if result.Error != nil {
			return fmt.Errorf("assign %s positions: %w", table.kind, result.Error)
		}
		if result.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("assign %s positions: expected %d rows, updated %d", table.kind, len(ids), result.RowsAffected)
		}
	}
	return nil
}

func (a *courseAxis) SetMaxPosition(value int) error {
	if value == a.course.MaxPosition {
		return nil
	}
	if err := a.tx.Model(&models.Course{}).Where("id = ?", a.course.ID).
		UpdateColumn("max_position", value).Error; err != nil {
		return err
	}
	a.course.MaxPosition = value
	return nil
}

func (a *courseAxis) GetLesson(id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := a.tx.Where("course_id = ?", a.course.ID).First(&lesson, id).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (a *courseAxis) CreateLesson(lesson *models.Lesson) error {
	if lesson == nil {
		return errors.New("lesson is required")
	}
	lesson.CourseID = a.course.ID
	return a.tx.Omit(clause.Associations).Create(lesson).Error
}

func (a *courseAxis) SaveLesson(lesson *models.Lesson) error {
	if lesson == nil {
		return errors.New("lesson is required")
	}
	lesson.CourseID = a.course.ID
	return a.tx.Omit(clause.Associations).Save(lesson).Error
}

func (a *courseAxis) DeleteLesson(id uint) error {
	return a.tx.Where("course_id = ?", a.course.ID).Delete(&models.Lesson{}, id).Error
}

func (a *courseAxis) GetQuiz(id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := a.tx.Where("course_id = ?", a.course.ID).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (a *courseAxis) CreateQuiz(quiz *models.Quiz) error {
	if quiz == nil {
		return errors.New("quiz is required")
	}
	quiz.CourseID = a.course.ID
	return a.tx.Omit(clause.Associations).Create(quiz).Error
}

func (a *courseAxis) SaveQuiz(quiz *models.Quiz) error {
	if quiz == nil {
		return errors.New("quiz is required")
	}
	quiz.CourseID = a.course.ID
	return a.tx.Omit(clause.Associations).Save(quiz).Error
}

func (a *courseAxis) DeleteQuiz(id uint) error {
	if err := deleteQuizTree(a.tx, []uint{id}); err != nil {
		return err
	}
	return a.tx.Where("course_id = ?", a.course.ID).Delete(&models.Quiz{}, id).Error
}

func (a *courseAxis) CountQuizzes() (int64, error) {
	var count int64
	if err := a.tx.Model(&models.Quiz{}).Where("course_id = ?", a.course.ID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// deleteQuizTree removes questions, attempts and answers of the given quizzes.
func deleteQuizTree(tx *gorm.DB, quizIDs []uint) error {
	if len(quizIDs) == 0 {
		return nil
	}
	attempts := tx.Model(&models.QuizAttempt{}).Select("id").Where("quiz_id IN ?", quizIDs)
	if err := tx.Where("attempt_id IN (?)", attempts).Delete(&models.QuizAnswer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.QuizAttempt{}).Error; err != nil {
		return err
	}
	return tx.Where("quiz_id IN ?", quizIDs).Delete(&models.QuizQuestion{}).Error
}
