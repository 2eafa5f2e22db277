package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"course-platform-backend/internal/models"
	"course-platform-backend/internal/service"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("course 1: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("quiz exists: %w", service.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: timeout", service.ErrExternalService), http.StatusBadGateway},
		{service.ErrPaymentsDisabled, http.StatusServiceUnavailable},
		{service.ErrNotEnrolled, http.StatusForbidden},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Errorf("expected %d for %v, got %d", tc.want, tc.err, got)
		}
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	_, studentToken := srv.seedUser(t, "student@example.com", models.RoleStudent)

	if rec := srv.do(t, http.MethodPost, "/api/v1/admin/courses", "", map[string]interface{}{"title": "Go"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodPost, "/api/v1/admin/courses", studentToken, map[string]interface{}{"title": "Go"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}
}

func TestCourseContentLifecycle(t *testing.T) {
	srv := newTestServer(t)
	_, adminToken := srv.seedUser(t, "admin@example.com", models.RoleAdmin)

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/courses", adminToken, map[string]interface{}{"title": "Go Basics", "price_minor": 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Course models.Course `json:"course"`
	}
	decode(t, rec, &created)
	base := fmt.Sprintf("/api/v1/admin/courses/%d", created.Course.ID)

	var lessonIDs []uint
	for i := 0; i < 2; i++ {
		rec = srv.do(t, http.MethodPost, base+"/lessons", adminToken, map[string]interface{}{"content": "body"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for lesson, got %d: %s", rec.Code, rec.Body.String())
		}
		var lesson struct {
			Lesson models.Lesson `json:"lesson"`
		}
		decode(t, rec, &lesson)
		if lesson.Lesson.Position != i || lesson.Lesson.Title != fmt.Sprintf("Lesson %d", i+1) {
			t.Fatalf("unexpected lesson %+v", lesson.Lesson)
		}
		lessonIDs = append(lessonIDs, lesson.Lesson.ID)
	}

	rec = srv.do(t, http.MethodPost, base+"/quizzes", adminToken, map[string]interface{}{"title": "Check", "pass_score": 50, "position": 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for quiz, got %d: %s", rec.Code, rec.Body.String())
	}
	var quiz struct {
		Quiz models.Quiz `json:"quiz"`
	}
	decode(t, rec, &quiz)

	rec = srv.do(t, http.MethodPut, base+"/content/order", adminToken, map[string]interface{}{
		"items": []map[string]interface{}{{"kind": "lesson", "id": lessonIDs[0]}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial reorder, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodPut, base+"/content/order", adminToken, map[string]interface{}{
		"items": []map[string]interface{}{{"kind": "unit", "id": lessonIDs[0]}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPut, base+"/content/order", adminToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"kind": "lesson", "id": lessonIDs[1]},
			{"kind": "lesson", "id": lessonIDs[0]},
			{"kind": "quiz", "id": quiz.Quiz.ID},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reorder, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodDelete, fmt.Sprintf("%s/lessons/%d", base, lessonIDs[1]), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for delete, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/outline", created.Course.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for outline, got %d", rec.Code)
	}
	var outline struct {
		Outline models.CourseOutline `json:"outline"`
	}
	decode(t, rec, &outline)
	if len(outline.Outline.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", outline.Outline.Items)
	}
	for i, item := range outline.Outline.Items {
		if item.Position != i {
			t.Fatalf("expected contiguous positions, got %+v", outline.Outline.Items)
		}
	}
	if outline.Outline.Items[0].ID != lessonIDs[0] || outline.Outline.Items[1].Kind != models.ContentKindQuiz {
		t.Fatalf("unexpected order %+v", outline.Outline.Items)
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/courses/slug/go-basics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected course by slug, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/api/v1/courses/999/outline", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown course, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/api/v1/courses/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestFreeEnrollmentAndQuizAccess(t *testing.T) {
	srv := newTestServer(t)
	_, adminToken := srv.seedUser(t, "admin@example.com", models.RoleAdmin)
	_, studentToken := srv.seedUser(t, "student@example.com", models.RoleStudent)

	free := models.Course{Title: "Free", Slug: "free", MaxPosition: -1}
	paid := models.Course{Title: "Paid", Slug: "paid", PriceMinor: 5000, MaxPosition: -1}
	srv.db.Create(&free)
	srv.db.Create(&paid)

	rec := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/courses/%d/quizzes", free.ID), adminToken, map[string]interface{}{"title": "Quiz", "pass_score": 100})
	var quiz struct {
		Quiz models.Quiz `json:"quiz"`
	}
	decode(t, rec, &quiz)
	rec = srv.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/courses/%d/quizzes/%d/questions", free.ID, quiz.Quiz.ID), adminToken, map[string]interface{}{
		"questions": []map[string]interface{}{{"prompt": "2+2?", "options": []string{"3", "4"}, "correct_option": 1}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected questions stored, got %d: %s", rec.Code, rec.Body.String())
	}
	var stored struct {
		Questions []models.QuizQuestion `json:"questions"`
	}
	decode(t, rec, &stored)

	attemptPath := fmt.Sprintf("/api/v1/courses/%d/quizzes/%d/attempts", free.ID, quiz.Quiz.ID)
	answers := map[string]interface{}{"answers": []map[string]interface{}{{"question_id": stored.Questions[0].ID, "selected_option": 1}}}
	if rec := srv.do(t, http.MethodPost, attemptPath, studentToken, answers); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before enrolling, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/enroll", paid.ID), studentToken, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for paid course, got %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		if rec := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/enroll", free.ID), studentToken, nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for free enroll, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec = srv.do(t, http.MethodPost, attemptPath, studentToken, answers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 attempt, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Result models.QuizAttemptResult `json:"result"`
	}
	decode(t, rec, &result)
	if !result.Result.Attempt.Passed || result.Result.Attempts != 1 {
		t.Fatalf("expected first passing attempt, got %+v", result.Result)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/enrollments", studentToken, nil)
	var listed struct {
		Enrollments []models.Enrollment `json:"enrollments"`
	}
	decode(t, rec, &listed)
	if len(listed.Enrollments) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(listed.Enrollments))
	}
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	owner, ownerToken := srv.seedUser(t, "owner@example.com", models.RoleStudent)
	_, otherToken := srv.seedUser(t, "other@example.com", models.RoleStudent)

	course := models.Course{Title: "Paid", Slug: "paid", PriceMinor: 5000, MaxPosition: -1}
	srv.db.Create(&course)

	body := map[string]interface{}{"course_ids": []uint{course.ID}, "amount_minor": 4000}
	if rec := srv.do(t, http.MethodPost, "/api/v1/payments", ownerToken, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong amount, got %d: %s", rec.Code, rec.Body.String())
	}

	body["amount_minor"] = 5000
	rec := srv.do(t, http.MethodPost, "/api/v1/payments", ownerToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 checkout, got %d: %s", rec.Code, rec.Body.String())
	}
	var checkout struct {
		Checkout models.PaymentCheckout `json:"checkout"`
	}
	decode(t, rec, &checkout)

	if rec := srv.do(t, http.MethodPost, "/api/v1/payments", ownerToken, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reused checkout, got %d", rec.Code)
	}

	verifyPath := "/api/v1/payments/verify/" + checkout.Checkout.Reference
	if rec := srv.do(t, http.MethodGet, verifyPath, otherToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's payment, got %d", rec.Code)
	}
	if srv.gateway.callCount() != 0 {
		t.Fatalf("expected no gateway call for foreign verify")
	}

	var verified struct {
		Payment  models.PaymentVerification `json:"payment"`
		Enrolled []uint                     `json:"enrolled_course_ids"`
	}
	rec = srv.do(t, http.MethodGet, verifyPath, ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 verify, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &verified)
	if verified.Payment.Status != models.PaymentStatusPaid || verified.Payment.AlreadyTerminal {
		t.Fatalf("expected fresh paid result, got %+v", verified.Payment)
	}

	rec = srv.do(t, http.MethodGet, verifyPath, ownerToken, nil)
	decode(t, rec, &verified)
	if !verified.Payment.AlreadyTerminal || srv.gateway.callCount() != 1 {
		t.Fatalf("expected terminal fast path, got %+v after %d calls", verified.Payment, srv.gateway.callCount())
	}

	var enrollments int64
	srv.db.Model(&models.Enrollment{}).Where("user_id = ?", owner.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Fatalf("expected one enrollment, got %d", enrollments)
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/payments/verify/missing", ownerToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown reference, got %d", rec.Code)
	}
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	srv := newTestServer(t)

	payload := []byte(`{"event":"charge.success","data":{"reference":"unknown"}}`)
	cases := map[string]string{
		"bad signature":     "forged",
		"unknown reference": "valid",
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			rec := srv.doWebhook(t, payload, signature)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
		})
	}
	if srv.gateway.callCount() != 0 {
		t.Fatalf("expected no gateway calls, got %d", srv.gateway.callCount())
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	srv := newTestServer(t)

	register := map[string]interface{}{"username": "ada", "email": "ada@example.com", "password": "Correct-Horse-42"}
	if rec := srv.do(t, http.MethodPost, "/api/v1/register", "", register); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := srv.do(t, http.MethodPost, "/api/v1/register", "", register); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rec.Code)
	}

	if rec := srv.do(t, http.MethodPost, "/api/v1/login", "", map[string]interface{}{"email": "ada@example.com", "password": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/api/v1/login", "", map[string]interface{}{"email": "ada@example.com", "password": "Correct-Horse-42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d: %s", rec.Code, rec.Body.String())
	}
	var auth models.AuthResponse
	decode(t, rec, &auth)

	if rec := srv.do(t, http.MethodGet, "/api/v1/profile", auth.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected profile, got %d", rec.Code)
	}
}
