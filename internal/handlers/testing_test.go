package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"course-platform-backend/internal/middleware"
	"course-platform-backend/internal/models"
	"course-platform-backend/internal/payments"
	"course-platform-backend/internal/repository"
	"course-platform-backend/internal/service"
	"course-platform-backend/pkg/validator"
)

const testSecret = "handler-secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", name)
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
	return db
}

// stubGateway settles every reference with one status.
type stubGateway struct {
	mu     sync.Mutex
	status payments.Status
	calls  int
	next   int
}

func (g *stubGateway) Initialize(_ context.Context, params payments.InitializeParams) (*payments.Initialization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	reference := fmt.Sprintf("ref-%d", g.next)
	return &payments.Initialization{AuthorizationURL: "https://checkout.example/" + reference, Reference: reference}, nil
}

func (g *stubGateway) Verify(_ context.Context, reference string) (*payments.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return &payments.Verification{Reference: reference, Status: g.status, Raw: []byte(`{"status":true}`)}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubVerifier struct{}

func (stubVerifier) VerifyWebhookSignature(_ []byte, signature string) error {
	if signature != "valid" {
		return fmt.Errorf("bad signature")
	}
	return nil
}

type testServer struct {
	db      *gorm.DB
	router  *gin.Engine
	gateway *stubGateway
}

// newTestServer mounts the handlers the way the application router does.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Init()

	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	content := repository.NewContentRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	gateway := &stubGateway{status: payments.StatusSuccess}

	courseHandler := NewCourseHandler(service.NewCourseService(courses, nil))
	contentHandler := NewContentHandler(service.NewContentService(content, courses, nil))
	quizHandler := NewQuizHandler(service.NewQuizService(content, repository.NewQuizRepository(db), enrollments))
	enrollmentHandler := NewEnrollmentHandler(service.NewEnrollmentService(enrollments, courses))
	paymentHandler := NewPaymentHandler(service.NewPaymentService(
		repository.NewPaymentRepository(db), courses, enrollments, users,
		gateway, stubVerifier{}, service.PaymentConfig{Currency: "NGN", GatewayTimeout: time.Second},
	))
	authHandler := NewAuthHandler(service.NewAuthService(users, testSecret))

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/register", authHandler.Register)
	v1.POST("/login", authHandler.Login)
	v1.GET("/courses/:id", courseHandler.GetByID)
	v1.GET("/courses/slug/:slug", courseHandler.GetBySlug)
	v1.GET("/courses/:id/outline", contentHandler.Outline)
	v1.POST("/payments/webhook", paymentHandler.Webhook)

	protected := v1.Group("", middleware.AuthMiddleware(testSecret))
	protected.GET("/profile", authHandler.Me)
	protected.POST("/courses/:id/enroll", enrollmentHandler.Enroll)
	protected.GET("/enrollments", enrollmentHandler.List)
	protected.POST("/courses/:id/quizzes/:quizId/attempts", quizHandler.Submit)
	protected.POST("/payments", paymentHandler.Initiate)
	protected.GET("/payments/verify/:reference", paymentHandler.Verify)

	admin := v1.Group("/admin", middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware())
	admin.POST("/courses", courseHandler.Create)
	admin.POST("/courses/:id/lessons", contentHandler.CreateLesson)
	admin.DELETE("/courses/:id/lessons/:lessonId", contentHandler.DeleteLesson)
	admin.POST("/courses/:id/quizzes", contentHandler.CreateQuiz)
	admin.PUT("/courses/:id/quizzes/:quizId/questions", quizHandler.ReplaceQuestions)
	admin.PUT("/courses/:id/content/order", contentHandler.Reorder)

	return &testServer{db: db, router: router, gateway: gateway}
}

func (s *testServer) seedUser(t *testing.T, email string, role models.UserRole) (models.User, string) {
	t.Helper()
	user := models.User{Username: email, Email: email, Password: "x", Role: role}
	if err := s.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	token, err := service.IssueToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return user, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		payload = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = encoded
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func (s *testServer) doWebhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, signature)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
