package models

import (
	"fmt"
	"strings"
)

// ContentKind names the table an item of a course axis lives in.
type ContentKind string

const (
	ContentKindLesson ContentKind = "lesson"
	ContentKindQuiz   ContentKind = "quiz"
)

// ParseContentKind normalises user input into a known kind.
func ParseContentKind(value string) (ContentKind, bool) {
	switch ContentKind(strings.ToLower(strings.TrimSpace(value))) {
	case ContentKindLesson:
		return ContentKindLesson, true
	case ContentKindQuiz:
		return ContentKindQuiz, true
	default:
		return "", false
	}
}

// ContentRef identifies one item on a course axis.
type ContentRef struct {
	Kind ContentKind `json:"kind" binding:"required,content_kind"`
	ID   uint        `json:"id" binding:"required"`
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ContentItem is a lesson or quiz seen through the shared axis.
type ContentItem struct {
	Kind     ContentKind `json:"kind"`
	ID       uint        `json:"id"`
	CourseID uint        `json:"course_id"`
	Position int         `json:"position"`
	Title    string      `json:"title"`
}

func (i ContentItem) Ref() ContentRef {
	return ContentRef{Kind: i.Kind, ID: i.ID}
}

// CourseOutline is the ordered content of a course.
type CourseOutline struct {
	CourseID    uint          `json:"course_id"`
	MaxPosition int           `json:"max_position"`
	Items       []ContentItem `json:"items"`
}
