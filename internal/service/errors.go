package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"course-platform-backend/internal/ordering"
)

var (
	// ErrNotFound is returned when a course, content item or payment does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned when the request collides with existing state.
	ErrConflict = errors.New("conflict with existing state")
	// ErrExternalService wraps payment gateway failures. The operation may be retried.
	ErrExternalService = errors.New("external service error")
	// ErrSignatureInvalid is returned for webhook deliveries that fail authentication.
	ErrSignatureInvalid = errors.New("webhook signature is invalid")
	// ErrPaymentsDisabled is returned when no payment gateway is configured.
	ErrPaymentsDisabled = errors.New("payments are disabled")
	// ErrNotEnrolled is returned when a user acts on a course they have not joined.
	ErrNotEnrolled = errors.New("user is not enrolled in the course")
)

var errValidation = errors.New("service: validation error")

type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (e *validationError) Unwrap() error {
	return errValidation
}

func newValidationError(format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		message = "invalid input"
	}
	return &validationError{message: message}
}

// IsValidationError reports whether the provided error indicates invalid user input.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, errValidation)
}

// notFound wraps a missing record with ErrNotFound and passes anything else through.
func notFound(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return err
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// axisError turns allocator failures into validation errors.
func axisError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ordering.ErrOrderMismatch), errors.Is(err, ordering.ErrNegativePosition):
		return newValidationError("%s", err.Error())
	default:
		return err
	}
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqlState interface{ SQLState() string }
	if errors.As(err, &sqlState) {
		return sqlState.SQLState() == "23505"
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
