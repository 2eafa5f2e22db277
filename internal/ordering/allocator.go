// Package ordering computes position changes on a course content axis.
//
// The axis is the integer sequence shared by every lesson and quiz of one
// course. Nothing here touches storage: functions return the range shifts and
// assignments a repository applies as batch updates.
package ordering

import (
	"errors"
	"fmt"
	"sort"

	"course-platform-backend/internal/models"
)

// Unbounded marks a shift range that has no upper limit.
const Unbounded = -1

var (
	ErrNegativePosition = errors.New("position must not be negative")
	ErrOrderMismatch    = errors.New("reorder list does not match course content")
)

// Shift moves every item whose position lies in [From, To] by Delta.
// To == Unbounded means every position >= From.
type Shift struct {
	From  int
	To    int
	Delta int
}

// Contains reports whether position falls inside the shifted range.
func (s Shift) Contains(position int) bool {
	if position < s.From {
		return false
	}
	return s.To == Unbounded || position <= s.To
}

func (s Shift) String() string {
	if s.To == Unbounded {
		return fmt.Sprintf("[%d,∞)%+d", s.From, s.Delta)
	}
	return fmt.Sprintf("[%d,%d]%+d", s.From, s.To, s.Delta)
}

// Slot pins one item to a position.
type Slot struct {
	Ref      models.ContentRef
	Position int
}

// Insertion is the outcome of PlanInsert.
type Insertion struct {
	Position    int
	Shift       *Shift
	MaxPosition int
}

// OccupiedFunc reports whether any item of the axis holds position.
type OccupiedFunc func(position int) (bool, error)

// PlanInsert picks the position of a new item. Without a requested position
// the item is appended right after the high-water mark. A requested position
// that is already taken pushes that item and every successor up by one.
func PlanInsert(maxPosition int, requested *int, occupied OccupiedFunc) (Insertion, error) {
	if requested == nil {
		next := maxPosition + 1
		if next < 0 {
			next = 0
		}
		return Insertion{Position: next, MaxPosition: next}, nil
	}

	position := *requested
	if position < 0 {
		return Insertion{}, ErrNegativePosition
	}

	taken := false
	if position <= maxPosition && occupied != nil {
		var err error
		taken, err = occupied(position)
		if err != nil {
			return Insertion{}, err
		}
	}

	if !taken {
		return Insertion{Position: position, MaxPosition: Raise(maxPosition, position)}, nil
	}

	return Insertion{
		Position:    position,
		Shift:       &Shift{From: position, To: Unbounded, Delta: 1},
		MaxPosition: maxPosition + 1,
	}, nil
}

// PlanCompact closes the hole left by removing the item at removed.
func PlanCompact(removed int) Shift {
	return Shift{From: removed + 1, To: Unbounded, Delta: -1}
}

// PlanMove returns the shift that makes room for an item travelling from
// one position to another. The moving item itself is never inside the range.
// A nil shift means there is nothing to do.
func PlanMove(from, to int) (*Shift, error) {
	if to < 0 {
		return nil, ErrNegativePosition
	}
	switch {
	case to > from:
		return &Shift{From: from + 1, To: to, Delta: -1}, nil
	case to < from:
		return &Shift{From: to, To: from - 1, Delta: 1}, nil
	default:
		return nil, nil
	}
}

// PlanReorder validates that ordered is a permutation of the current items and
// returns the assignments for every item whose position changes.
func PlanReorder(current []models.ContentItem, ordered []models.ContentRef) ([]Slot, error) {
	if len(ordered) != len(current) {
		return nil, fmt.Errorf("%w: expected %d items, got %d", ErrOrderMismatch, len(current), len(ordered))
	}

	positions := make(map[models.ContentRef]int, len(current))
	for _, item := range current {
		positions[item.Ref()] = item.Position
	}

	seen := make(map[models.ContentRef]struct{}, len(ordered))
	slots := make([]Slot, 0, len(ordered))
	for index, ref := range ordered {
		if _, dup := seen[ref]; dup {
			return nil, fmt.Errorf("%w: %s listed twice", ErrOrderMismatch, ref)
		}
		seen[ref] = struct{}{}

		existing, ok := positions[ref]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not part of the course", ErrOrderMismatch, ref)
		}
		if existing != index {
			slots = append(slots, Slot{Ref: ref, Position: index})
		}
	}

	return slots, nil
}

// Raise returns the high-water mark after position has been assigned.
func Raise(maxPosition, position int) int {
	if position > maxPosition {
		return position
	}
	return maxPosition
}

// Apply returns a copy of items with the shift applied, the way a repository
// range update would. Items listed in skip keep their position.
func Apply(items []models.ContentItem, shift Shift, skip ...models.ContentRef) []models.ContentItem {
	excluded := make(map[models.ContentRef]struct{}, len(skip))
	for _, ref := range skip {
		excluded[ref] = struct{}{}
	}

	result := make([]models.ContentItem, len(items))
	copy(result, items)
	for i := range result {
		if _, ok := excluded[result[i].Ref()]; ok {
			continue
		}
		if shift.Contains(result[i].Position) {
			result[i].Position += shift.Delta
		}
	}
	return result
}

// Sort orders items by position, lessons before quizzes on ties.
func Sort(items []models.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == models.ContentKindLesson
		}
		return items[i].ID < items[j].ID
	})
}

// Validate checks that positions are non-negative and unique.
func Validate(items []models.ContentItem) error {
	seen := make(map[int]models.ContentRef, len(items))
	for _, item := range items {
		if item.Position < 0 {
			return fmt.Errorf("%s has negative position %d", item.Ref(), item.Position)
		}
		if other, dup := seen[item.Position]; dup {
			return fmt.Errorf("%s and %s share position %d", other, item.Ref(), item.Position)
		}
		seen[item.Position] = item.Ref()
	}
	return nil
}

// Contiguous reports whether positions form exactly [0, len(items)).
func Contiguous(items []models.ContentItem) bool {
	if Validate(items) != nil {
		return false
	}
	for _, item := range items {
		if item.Position >= len(items) {
			return false
		}
	}
	return true
}
