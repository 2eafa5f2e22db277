package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-platform-backend/internal/models"
)

// ErrPaymentNotPending is returned when a terminal transition targets a
// payment that already left the pending state.
var ErrPaymentNotPending = errors.New("payment is no longer pending")

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment, courseIDs []uint) error
	// FindPending returns pending payments of the user for exactly the given
	// course key, newest first.
	FindPending(ctx context.Context, userID uint, courseKey string) ([]models.Payment, error)
	// DeletePending removes a pending payment with its course links. Terminal
	// payments are kept for audit and are never removed.
	DeletePending(ctx context.Context, id uint) error
	SaveInitialization(ctx context.Context, id uint, reference, authorizationURL string) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	ListPendingAfter(ctx context.Context, afterID uint, limit int) ([]models.Payment, error)
	CountPending(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Payment, error)
	// WithLockedReference runs fn inside a transaction holding a row lock on
	// the payment with the given reference.
	WithLockedReference(ctx context.Context, reference string, fn func(tx PaymentTx) error) error
}

// PaymentTx is a locked payment row plus the stores that may change with it.
type PaymentTx interface {
	Payment() models.Payment
	Complete(status models.PaymentStatus, raw []byte) error
	Enrollments() EnrollmentRepository
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment, courseIDs []uint) error {
	if r == nil || r.db == nil {
		return errors.New("payment repository is not initialised")
	}
	if payment == nil {
		return errors.New("payment is required")
	}
	if len(courseIDs) == 0 {
		return errors.New("payment requires at least one course")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(payment).Error; err != nil {
			return err
		}
		links := make([]models.PaymentCourse, 0, len(courseIDs))
		for _, courseID := range courseIDs {
			links = append(links, models.PaymentCourse{PaymentID: payment.ID, CourseID: courseID})
		}
		if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
			return err
		}
		payment.Courses = links
		return nil
	})
}

func (r *paymentRepository) FindPending(ctx context.Context, userID uint, courseKey string) ([]models.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repository is not initialised")
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Courses").
		Where("user_id = ? AND course_key = ? AND status = ?", userID, courseKey, models.PaymentStatusPending).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) DeletePending(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return errors.New("payment repository is not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status = ?", id, models.PaymentStatusPending).Delete(&models.Payment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPaymentNotPending
		}
		return tx.Where("payment_id = ?", id).Delete(&models.PaymentCourse{}).Error
	})
}

func (r *paymentRepository) SaveInitialization(ctx context.Context, id uint, reference, authorizationURL string) error {
	if r == nil || r.db == nil {
		return errors.New("payment repository is not initialised")
	}
	reference = strings.TrimSpace(reference)
	authorizationURL = strings.TrimSpace(authorizationURL)
	if reference == "" || authorizationURL == "" {
		return errors.New("reference and authorization url are required")
	}

	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"reference":         reference,
			"authorization_url": authorizationURL,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repository is not initialised")
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).Preload("Courses").First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repository is not initialised")
	}
	cleaned := strings.TrimSpace(reference)
	if cleaned == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).Preload("Courses").Where("reference = ?", cleaned).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListPendingAfter(ctx context.Context, afterID uint, limit int) ([]models.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repository is not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", models.PaymentStatusPending, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) CountPending(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("payment repository is not initialised")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusPending).
		Count(&count).Error
	return count, err
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID uint) ([]models.Payment, error) {
	payments := make([]models.Payment, 0)
	if r == nil || r.db == nil {
		return payments, errors.New("payment repository is not initialised")
	}
	err := r.db.WithContext(ctx).
		Preload("Courses").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) WithLockedReference(ctx context.Context, reference string, fn func(tx PaymentTx) error) error {
	if r == nil || r.db == nil {
		return errors.New("payment repository is not initialised")
	}
	if fn == nil {
		return errors.New("payment callback is required")
	}
	cleaned := strings.TrimSpace(reference)
	if cleaned == "" {
		return gorm.ErrRecordNotFound
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reference = ?", cleaned).
			First(&payment).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", payment.ID).Order("course_id ASC").Find(&payment.Courses).Error; err != nil {
			return err
		}
		return fn(&paymentTx{tx: tx, payment: payment})
	})
}

type paymentTx struct {
	tx      *gorm.DB
	payment models.Payment
}

func (p *paymentTx) Payment() models.Payment {
	return p.payment
}

func (p *paymentTx) Complete(status models.PaymentStatus, raw []byte) error {
	if !status.IsTerminal() {
		return errors.New("payment can only be completed with a terminal status")
	}

	now := time.Now().UTC()
	result := p.tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", p.payment.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"gateway_response": gatewayJSON(raw),
			"completed_at":     now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotPending
	}

	p.payment.Status = status
	p.payment.GatewayResponse = gatewayJSON(raw)
	p.payment.CompletedAt = &now
	return nil
}

func (p *paymentTx) Enrollments() EnrollmentRepository {
	return NewEnrollmentRepository(p.tx)
}

// gatewayJSON keeps the raw gateway payload storable in a JSON column even
// when the gateway answered with something that is not JSON.
func gatewayJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return datatypes.JSON(quoted)
}
