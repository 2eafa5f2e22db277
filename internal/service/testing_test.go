package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/payments"
	"course-platform-backend/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := repository.CreateIndexes(db); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}
	return db
}

func seedCourse(t *testing.T, db *gorm.DB, title string, price int64) models.Course {
	t.Helper()
	course := models.Course{
		Title:       title,
		Slug:        strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		PriceMinor:  price,
		MaxPosition: -1,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}
	return course
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Username: email, Email: email, Password: "x", Role: models.RoleStudent}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

// fakeGateway answers verifications from a per-reference status table.
type fakeGateway struct {
	mu sync.Mutex

	initializeCalls int
	verifyCalls     map[string]int
	nextReference   int

	initErr       error
	verifyErrs    map[string]error
	statuses      map[string]payments.Status
	defaultStatus payments.Status
	verifyDelay   time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		verifyCalls:   make(map[string]int),
		verifyErrs:    make(map[string]error),
		statuses:      make(map[string]payments.Status),
		defaultStatus: payments.StatusSuccess,
	}
}

func (g *fakeGateway) Initialize(_ context.Context, params payments.InitializeParams) (*payments.Initialization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initializeCalls++
	if g.initErr != nil {
		return nil, g.initErr
	}
	if params.Email == "" || params.AmountMinor <= 0 {
		return nil, errors.New("bad initialize params")
	}
	g.nextReference++
	reference := fmt.Sprintf("ref-%d", g.nextReference)
	return &payments.Initialization{
		AuthorizationURL: "https://checkout.example/" + reference,
		AccessCode:       "code-" + reference,
		Reference:        reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*payments.Verification, error) {
	g.mu.Lock()
	g.verifyCalls[reference]++
	err := g.verifyErrs[reference]
	status, ok := g.statuses[reference]
	if !ok {
		status = g.defaultStatus
	}
	delay := g.verifyDelay
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &payments.Verification{
		Reference: reference,
		Status:    status,
		Raw:       []byte(fmt.Sprintf(`{"status":true,"data":{"reference":%q,"status":%q}}`, reference, status)),
	}, nil
}

func (g *fakeGateway) calls(reference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls[reference]
}

type fakeVerifier struct {
	valid string
}

func (v fakeVerifier) VerifyWebhookSignature(_ []byte, signature string) error {
	if signature != v.valid {
		return errors.New("signature mismatch")
	}
	return nil
}

type paymentFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	service *PaymentService
	repo    repository.PaymentRepository
}

func newPaymentFixture(t *testing.T, batchSize int) paymentFixture {
	t.Helper()
	db := newTestDB(t)
	gateway := newFakeGateway()
	repo := repository.NewPaymentRepository(db)
	service := NewPaymentService(
		repo,
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewUserRepository(db),
		gateway,
		fakeVerifier{valid: "good-signature"},
		PaymentConfig{Currency: "ngn", GatewayTimeout: time.Second, SweepBatchSize: batchSize},
	)
	return paymentFixture{db: db, gateway: gateway, service: service, repo: repo}
}

// seedPayment stores a pending payment, initialised when reference is set.
func (f paymentFixture) seedPayment(t *testing.T, userID uint, courses []models.Course, reference string) models.Payment {
	t.Helper()
	ids := make([]uint, 0, len(courses))
	var amount int64
	for _, course := range courses {
		ids = append(ids, course.ID)
		amount += course.PriceMinor
	}
	payment := models.Payment{
		UserID:      userID,
		CourseKey:   models.CourseKey(ids),
		AmountMinor: amount,
		Currency:    "NGN",
		Status:      models.PaymentStatusPending,
	}
	ctx := context.Background()
	if err := f.repo.Create(ctx, &payment, ids); err != nil {
		t.Fatalf("failed to seed payment: %v", err)
	}
	if reference != "" {
		if err := f.repo.SaveInitialization(ctx, payment.ID, reference, "https://checkout.example/"+reference); err != nil {
			t.Fatalf("failed to initialise payment: %v", err)
		}
	}
	return payment
}
