package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/payments"
	"course-platform-backend/internal/repository"
	"course-platform-backend/pkg/logger"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	defaultSweepBatchSize = 100
)

// PaymentConfig carries the settings the reconciliation engine needs.
type PaymentConfig struct {
	Currency       string
	CallbackURL    string
	GatewayTimeout time.Duration
	SweepBatchSize int
}

// VerifyResult is the outcome of one verification. AlreadyTerminal is set
// when the payment had settled before this call and the gateway was not asked.
type VerifyResult struct {
	Payment         models.Payment
	Status          models.PaymentStatus
	AlreadyTerminal bool
	Enrolled        []uint
}

// SweepReport summarises one reconciliation pass over pending payments.
type SweepReport struct {
	Scanned         int           `json:"scanned"`
	Paid            int           `json:"paid"`
	Failed          int           `json:"failed"`
	StillPending    int           `json:"still_pending"`
	AlreadyTerminal int           `json:"already_terminal"`
	Skipped         int           `json:"skipped"`
	Errors          int           `json:"errors"`
	Duration        time.Duration `json:"duration"`
}

// PaymentService turns gateway transactions into enrollments. Client polls,
// webhooks and the sweep all end in Verify.
type PaymentService struct {
	payments    repository.PaymentRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	users       repository.UserRepository
	gateway     payments.Gateway
	webhooks    payments.WebhookVerifier
	config      PaymentConfig
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	userRepo repository.UserRepository,
	gateway payments.Gateway,
	webhooks payments.WebhookVerifier,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))

	return &PaymentService{
		payments:    paymentRepo,
		courses:     courseRepo,
		enrollments: enrollmentRepo,
		users:       userRepo,
		gateway:     gateway,
		webhooks:    webhooks,
		config:      cfg,
	}
}

// Enabled reports whether a gateway is wired.
func (s *PaymentService) Enabled() bool {
	return s != nil && s.gateway != nil && s.payments != nil
}

// Initiate opens a checkout for the given courses. A pending checkout for the
// exact same course set is handed back instead of opening a second one.
func (s *PaymentService) Initiate(ctx context.Context, userID uint, req models.InitiatePaymentRequest) (*models.PaymentCheckout, error) {
	if !s.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}

	courseIDs := models.NormalizeCourseIDs(req.CourseIDs)
	if len(courseIDs) == 0 {
		return nil, newValidationError("at least one course is required")
	}
	if req.AmountMinor <= 0 {
		return nil, newValidationError("amount must be greater than zero")
	}

	courses, err := s.courses.GetByIDs(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}
	if missing := missingCourseIDs(courseIDs, courses); len(missing) > 0 {
		return nil, fmt.Errorf("courses %v: %w", missing, ErrNotFound)
	}

	var total int64
	for _, course := range courses {
		total += course.PriceMinor
	}
	if total != req.AmountMinor {
		return nil, newValidationError("amount %d does not match course total %d", req.AmountMinor, total)
	}

	enrolled, err := s.enrollments.EnrolledCourseIDs(ctx, userID, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollments: %w", err)
	}
	if len(enrolled) > 0 {
		return nil, conflict("already enrolled in courses %v", enrolled)
	}

	courseKey := models.CourseKey(courseIDs)
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"user_id":    userID,
		"course_key": courseKey,
	})

	pending, err := s.payments.FindPending(ctx, userID, courseKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending payments: %w", err)
	}
	for _, existing := range pending {
		if existing.Initialized() {
			log.WithField("payment_id", existing.ID).Debug("Reusing pending checkout")
			return checkoutFor(existing, true), nil
		}
	}
	for _, stale := range pending {
		if err := s.payments.DeletePending(ctx, stale.ID); err != nil && !errors.Is(err, repository.ErrPaymentNotPending) {
			return nil, fmt.Errorf("failed to discard uninitialised payment %d: %w", stale.ID, err)
		}
		log.WithField("payment_id", stale.ID).Info("Discarded uninitialised pending payment")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user %d", userID)
	}

	payment := &models.Payment{
		UserID:      userID,
		CourseKey:   courseKey,
		AmountMinor: req.AmountMinor,
		Currency:    s.config.Currency,
		Status:      models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment, courseIDs); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	log = log.WithField("payment_id", payment.ID)

	gatewayCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	checkout, err := s.gateway.Initialize(gatewayCtx, payments.InitializeParams{
		Email:       user.Email,
		AmountMinor: payment.AmountMinor,
		Currency:    payment.Currency,
		CallbackURL: s.config.CallbackURL,
		Metadata: map[string]string{
			"payment_id": strconv.FormatUint(uint64(payment.ID), 10),
			"course_ids": courseKey,
		},
	})
	cancel()
	if err != nil {
		// The row stays pending without a reference; the next initiate discards it.
		log.WithError(err).Warn("Gateway initialize failed")
		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	if err := s.payments.SaveInitialization(ctx, payment.ID, checkout.Reference, checkout.AuthorizationURL); err != nil {
		return nil, fmt.Errorf("failed to store checkout for payment %d: %w", payment.ID, err)
	}
	reference := strings.TrimSpace(checkout.Reference)
	authorizationURL := strings.TrimSpace(checkout.AuthorizationURL)
	payment.Reference = &reference
	payment.AuthorizationURL = &authorizationURL

	log.WithField("reference", reference).Info("Payment initiated")
	return checkoutFor(*payment, false), nil
}

// Verify reconciles one payment with the gateway. It is safe to call any
// number of times from any trigger; a payment settles and enrolls once.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if s == nil || s.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, newValidationError("payment reference is required")
	}

	current, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, notFound(err, "payment %q", reference)
	}
	if current.Status.IsTerminal() {
		recordVerification(outcomeAlreadyTerminal)
		return &VerifyResult{Payment: *current, Status: current.Status, AlreadyTerminal: true}, nil
	}
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}

	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": current.ID,
		"reference":  reference,
	})

	var result VerifyResult
	err = s.payments.WithLockedReference(ctx, reference, func(tx repository.PaymentTx) error {
		payment := tx.Payment()
		if payment.Status.IsTerminal() {
			result = VerifyResult{Payment: payment, Status: payment.Status, AlreadyTerminal: true}
			return nil
		}

		gatewayCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
		verification, err := s.gateway.Verify(gatewayCtx, reference)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExternalService, err)
		}

		status, settled := settledStatus(verification.Status)
		if !settled {
			result = VerifyResult{Payment: payment, Status: models.PaymentStatusPending}
			return nil
		}

		if status == models.PaymentStatusPaid && verification.AmountMinor != 0 && verification.AmountMinor != payment.AmountMinor {
			log.WithFields(logrus.Fields{
				"expected": payment.AmountMinor,
				"reported": verification.AmountMinor,
			}).Warn("Gateway reported a different amount")
		}

		if err := tx.Complete(status, verification.Raw); err != nil {
			return err
		}

		enrolled := make([]uint, 0, len(payment.Courses))
		if status == models.PaymentStatusPaid {
			paymentID := payment.ID
			for _, courseID := range payment.CourseIDs() {
				_, created, err := enrollIfAbsent(ctx, tx.Enrollments(), models.Enrollment{
					UserID:    payment.UserID,
					CourseID:  courseID,
					Source:    models.EnrollmentSourcePayment,
					PaymentID: &paymentID,
				})
				if err != nil {
					return fmt.Errorf("failed to enroll user %d in course %d: %w", payment.UserID, courseID, err)
				}
				if created {
					enrolled = append(enrolled, courseID)
				}
			}
		}

		result = VerifyResult{Payment: tx.Payment(), Status: status, Enrolled: enrolled}
		return nil
	})
	if err != nil {
		recordVerification(outcomeError)
		if errors.Is(err, ErrExternalService) {
			log.WithError(err).Warn("Payment verification deferred")
			return nil, err
		}
		return nil, notFound(err, "payment %q", reference)
	}

	switch {
	case result.AlreadyTerminal:
		recordVerification(outcomeAlreadyTerminal)
	case result.Status == models.PaymentStatusPending:
		recordVerification(outcomePending)
	default:
		if result.Status == models.PaymentStatusPaid {
			recordVerification(outcomePaid)
		} else {
			recordVerification(outcomeFailed)
		}
		log.WithFields(logrus.Fields{
			"from":     models.PaymentStatusPending,
			"to":       result.Status,
			"enrolled": result.Enrolled,
		}).Info("Payment settled")
	}

	return &result, nil
}

// HandleWebhook authenticates a delivery and reconciles the payment it names.
// The payload's own status is never trusted.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s == nil || s.webhooks == nil {
		return ErrPaymentsDisabled
	}

	if err := s.webhooks.VerifyWebhookSignature(body, signature); err != nil {
		recordWebhook("rejected")
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	event, err := payments.ParseWebhookEvent(body)
	if err != nil {
		recordWebhook("malformed")
		return newValidationError("malformed webhook payload: %v", err)
	}
	if !event.Reconcilable() {
		recordWebhook("ignored")
		logger.FromContext(ctx).WithField("event", event.Event).Debug("Ignoring webhook event")
		return nil
	}

	if _, err := s.Verify(ctx, event.Data.Reference); err != nil {
		recordWebhook("failed")
		return err
	}
	recordWebhook("processed")
	return nil
}

// Sweep verifies every pending payment once. Failures are counted and logged
// per payment and never stop the pass.
func (s *PaymentService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if s == nil || s.payments == nil {
		return report, ErrPaymentsDisabled
	}

	started := time.Now()
	defer func() {
		report.Duration = time.Since(started)
	}()

	log := logger.FromContext(ctx)
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := s.payments.ListPendingAfter(ctx, afterID, s.config.SweepBatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list pending payments: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, payment := range batch {
			afterID = payment.ID
			report.Scanned++

			if payment.Reference == nil || strings.TrimSpace(*payment.Reference) == "" {
				report.Skipped++
				continue
			}

			result, err := s.Verify(ctx, *payment.Reference)
			if err != nil {
				report.Errors++
				log.WithError(err).WithFields(logrus.Fields{
					"payment_id": payment.ID,
					"reference":  *payment.Reference,
				}).Warn("Sweep could not verify payment")
				continue
			}

			switch {
			case result.AlreadyTerminal:
				report.AlreadyTerminal++
			case result.Status == models.PaymentStatusPaid:
				report.Paid++
			case result.Status == models.PaymentStatusFailed:
				report.Failed++
			default:
				report.StillPending++
			}
		}

		if len(batch) < s.config.SweepBatchSize {
			break
		}
	}

	recordSweepPending(report.Scanned)
	return report, nil
}

func (s *PaymentService) ListByUser(ctx context.Context, userID uint) ([]models.Payment, error) {
	if s == nil || s.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	return s.payments.ListByUser(ctx, userID)
}

func (s *PaymentService) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	if s == nil || s.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, notFound(err, "payment %q", reference)
	}
	return payment, nil
}

// settledStatus maps a gateway status to a terminal payment status. The
// second value is false while the transaction is still open.
func settledStatus(status payments.Status) (models.PaymentStatus, bool) {
	switch payments.NormalizeStatus(string(status)) {
	case payments.StatusSuccess:
		return models.PaymentStatusPaid, true
	case payments.StatusFailed, payments.StatusAbandoned:
		return models.PaymentStatusFailed, true
	default:
		return models.PaymentStatusPending, false
	}
}

func missingCourseIDs(requested []uint, found []models.Course) []uint {
	present := make(map[uint]struct{}, len(found))
	for _, course := range found {
		present[course.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func checkoutFor(payment models.Payment, reused bool) *models.PaymentCheckout {
	checkout := &models.PaymentCheckout{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Reused:    reused,
	}
	if payment.Reference != nil {
		checkout.Reference = *payment.Reference
	}
	if payment.AuthorizationURL != nil {
		checkout.AuthorizationURL = *payment.AuthorizationURL
	}
	return checkout
}
