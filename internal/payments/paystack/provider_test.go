package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course-platform-backend/internal/payments"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, options ...Option) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewProvider("sk_test_secret", append([]Option{WithBaseURL(server.URL)}, options...)...)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider
}

func TestNewProviderRequiresSecretKey(t *testing.T) {
	if _, err := NewProvider("  "); err == nil {
		t.Fatalf("expected error for empty secret key")
	}
}

func TestInitializeSendsCheckoutRequest(t *testing.T) {
	var received initializeRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref-123"}}`))
	})

	checkout, err := provider.Initialize(context.Background(), payments.InitializeParams{
		Email:       "student@example.com",
		AmountMinor: 150000,
		Currency:    "ngn",
		CallbackURL: "https://app.example/payments/callback",
		Metadata:    map[string]string{"payment_id": "7"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if checkout.Reference != "ref-123" || checkout.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Fatalf("unexpected initialization %+v", checkout)
	}
	if received.Email != "student@example.com" || received.Amount != 150000 || received.Currency != "NGN" {
		t.Errorf("unexpected request body %+v", received)
	}
	if received.Metadata["payment_id"] != "7" {
		t.Fatalf("expected metadata to be forwarded, got %v", received.Metadata)
	}
}

func TestInitializeRejectsMissingEmail(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("gateway must not be called")
	})

	_, err := provider.Initialize(context.Background(), payments.InitializeParams{AmountMinor: 100})
	if !errors.Is(err, payments.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
}

func TestVerifyReturnsStatusAndRawBody(t *testing.T) {
	body := `{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"ref-9","amount":5000,"currency":"NGN"}}`
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	})

	verification, err := provider.Verify(context.Background(), "ref-9")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if verification.Status != payments.StatusAbandoned {
		t.Fatalf("expected abandoned, got %q", verification.Status)
	}
	if verification.AmountMinor != 5000 || verification.Reference != "ref-9" {
		t.Fatalf("unexpected verification %+v", verification)
	}
	if string(verification.Raw) != body {
		t.Fatalf("expected raw body to be kept, got %s", verification.Raw)
	}
}

func TestVerifyClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `oops`, want: payments.ErrGatewayUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, want: payments.ErrGatewayUnavailable},
		{name: "unknown reference", status: http.StatusBadRequest, body: `{"status":false,"message":"Transaction reference not found"}`, want: payments.ErrGatewayRejected},
		{name: "garbage", status: http.StatusOK, body: `<html>`, want: payments.ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			if _, err := provider.Verify(context.Background(), "ref"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifyTimesOut(t *testing.T) {
	release := make(chan struct{})
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := provider.Verify(context.Background(), "slow")
	if !errors.Is(err, payments.ErrGatewayUnavailable) {
		t.Fatalf("expected timeout to be reported as unavailable, got %v", err)
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("sk_live_123") || !IsSecretKey("sk_test_123") {
		t.Fatalf("expected secret keys to be recognised")
	}
	if IsSecretKey("pk_test_123") {
		t.Fatalf("expected public key to be rejected")
	}
	if !IsTestKey("sk_test_123") || IsTestKey("sk_live_123") {
		t.Fatalf("unexpected test key detection")
	}
}
