package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleInstructor UserRole = "instructor"
	RoleStudent    UserRole = "student"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username string   `gorm:"uniqueIndex;not null" json:"username"`
	Email    string   `gorm:"uniqueIndex;not null" json:"email"`
	Password string   `gorm:"not null" json:"-"`
	Role     UserRole `gorm:"type:varchar(32);default:'student'" json:"role"`
}

// Course owns a single position axis shared by its lessons and quizzes.
// MaxPosition is the highest position ever assigned on that axis (-1 when
// nothing has been assigned yet). It only grows.
type Course struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title         string `gorm:"not null" json:"title"`
	Slug          string `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string `gorm:"type:text" json:"description"`
	PriceMinor    int64  `gorm:"not null;default:0" json:"price_minor"`
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"image_public_id"`
	MaxPosition   int    `gorm:"not null;default:-1" json:"max_position"`
}

// IsFree reports whether the course can be joined without a payment.
func (c Course) IsFree() bool {
	return c.PriceMinor <= 0
}

type Lesson struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CourseID      uint    `gorm:"not null;index:idx_lessons_course_position,priority:1" json:"course_id"`
	Position      int     `gorm:"not null;index:idx_lessons_course_position,priority:2" json:"position"`
	Title         string  `gorm:"not null" json:"title"`
	Content       string  `gorm:"type:text" json:"content"`
	VideoURL      *string `json:"video_url,omitempty"`
	VideoPublicID *string `json:"video_public_id,omitempty"`

	Course Course `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

type Quiz struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CourseID    uint   `gorm:"not null;index:idx_quizzes_course_position,priority:1" json:"course_id"`
	Position    int    `gorm:"not null;index:idx_quizzes_course_position,priority:2" json:"position"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	PassScore   int    `gorm:"not null;default:0" json:"pass_score"`

	Course    Course         `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Questions []QuizQuestion `gorm:"-" json:"questions,omitempty"`
}

type QuizQuestion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuizID        uint           `gorm:"not null;index" json:"quiz_id"`
	Position      int            `gorm:"not null;default:0" json:"position"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSON `json:"options"`
	CorrectOption int            `gorm:"not null" json:"-"`
	Explanation   string         `gorm:"type:text" json:"explanation,omitempty"`

	Quiz Quiz `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// QuizAttempt is one graded submission of a quiz by a user.
type QuizAttempt struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	QuizID   uint `gorm:"not null;index" json:"quiz_id"`
	UserID   uint `gorm:"not null;index" json:"user_id"`
	Score    int  `gorm:"not null" json:"score"`
	MaxScore int  `gorm:"not null" json:"max_score"`
	Passed   bool `gorm:"not null;default:false" json:"passed"`

	Quiz    Quiz         `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Answers []QuizAnswer `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE;" json:"answers"`
}

type QuizAnswer struct {
	ID uint `gorm:"primarykey" json:"id"`

	AttemptID      uint `gorm:"not null;index" json:"attempt_id"`
	QuestionID     uint `gorm:"not null;index" json:"question_id"`
	SelectedOption int  `gorm:"not null" json:"selected_option"`
	Correct        bool `gorm:"not null" json:"correct"`
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Payment is one checkout attempt covering one or more courses.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID           uint           `gorm:"not null;index:idx_payments_user_courses,priority:1" json:"user_id"`
	CourseKey        string         `gorm:"type:varchar(512);not null;index:idx_payments_user_courses,priority:2" json:"-"`
	AmountMinor      int64          `gorm:"not null" json:"amount_minor"`
	Currency         string         `gorm:"type:varchar(8)" json:"currency"`
	Reference        *string        `gorm:"type:varchar(128);uniqueIndex" json:"reference"`
	Status           PaymentStatus  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AuthorizationURL *string        `json:"authorization_url"`
	GatewayResponse  datatypes.JSON `json:"-"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`

	Courses []PaymentCourse `gorm:"constraint:OnDelete:CASCADE;" json:"courses,omitempty"`
}

// Initialized reports whether the gateway handed back a usable checkout.
func (p Payment) Initialized() bool {
	return p.Reference != nil && strings.TrimSpace(*p.Reference) != "" &&
		p.AuthorizationURL != nil && strings.TrimSpace(*p.AuthorizationURL) != ""
}

// CourseIDs returns the ids of the courses attached to the payment in ascending order.
func (p Payment) CourseIDs() []uint {
	ids := make([]uint, 0, len(p.Courses))
	for _, link := range p.Courses {
		ids = append(ids, link.CourseID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NormalizeCourseIDs drops zero and duplicate ids and sorts the rest.
func NormalizeCourseIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// CourseKey identifies a course set regardless of order and repetition.
func CourseKey(ids []uint) string {
	normalized := NormalizeCourseIDs(ids)
	parts := make([]string, len(normalized))
	for i, id := range normalized {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

type PaymentCourse struct {
	PaymentID uint `gorm:"primaryKey" json:"payment_id"`
	CourseID  uint `gorm:"primaryKey;index" json:"course_id"`

	Course Course `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

const (
	EnrollmentSourceFree    = "free"
	EnrollmentSourcePayment = "payment"
)

type Enrollment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    uint   `gorm:"not null;uniqueIndex:idx_enrollments_user_course,priority:1" json:"user_id"`
	CourseID  uint   `gorm:"not null;uniqueIndex:idx_enrollments_user_course,priority:2;index" json:"course_id"`
	Source    string `gorm:"type:varchar(16);not null;default:'free'" json:"source"`
	PaymentID *uint  `gorm:"index" json:"payment_id,omitempty"`

	Course Course `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}
