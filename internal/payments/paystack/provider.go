package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"course-platform-backend/internal/payments"
)

const (
	defaultAPIBase = "https://api.paystack.co"
	defaultTimeout = 15 * time.Second
)

// Provider implements payments.Gateway against the Paystack transaction API.
type Provider struct {
	secretKey     string
	webhookSecret string
	client        *resty.Client
}

type Option func(*Provider)

// WithBaseURL points the provider at another API host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			p.client.SetBaseURL(trimmed)
		}
	}
}

// WithTimeout bounds every gateway round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.client.SetTimeout(timeout)
		}
	}
}

// WithWebhookSecret overrides the key used to check webhook signatures.
func WithWebhookSecret(secret string) Option {
	return func(p *Provider) {
		if trimmed := strings.TrimSpace(secret); trimmed != "" {
			p.webhookSecret = trimmed
		}
	}
}

// NewProvider constructs a Paystack provider using the supplied secret key.
func NewProvider(secretKey string, options ...Option) (*Provider, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("paystack secret key is required")
	}

	client := resty.New().
		SetBaseURL(defaultAPIBase).
		SetTimeout(defaultTimeout).
		SetAuthToken(key).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "course-platform-backend/paystack")

	provider := &Provider{secretKey: key, webhookSecret: key, client: client}
	for _, option := range options {
		option(provider)
	}
	return provider, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Initialize opens a transaction and returns the hosted checkout url.
func (p *Provider) Initialize(ctx context.Context, params payments.InitializeParams) (*payments.Initialization, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("paystack provider is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: customer email is required", payments.ErrGatewayRejected)
	}
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", payments.ErrGatewayRejected)
	}

	body := initializeRequest{
		Email:       email,
		Amount:      params.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(params.Currency)),
		CallbackURL: strings.TrimSpace(params.CallbackURL),
		Metadata:    params.Metadata,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/transaction/initialize")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}

	payload, err := decode(resp)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: paystack initialize data decode failed: %v", payments.ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(data.AuthorizationURL) == "" || strings.TrimSpace(data.Reference) == "" {
		return nil, fmt.Errorf("%w: paystack response missing checkout details", payments.ErrGatewayUnavailable)
	}

	return &payments.Initialization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the current state of a transaction.
func (p *Provider) Verify(ctx context.Context, reference string) (*payments.Verification, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("paystack provider is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, fmt.Errorf("%w: reference is required", payments.ErrGatewayRejected)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("reference", ref).
		Get("/transaction/verify/{reference}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}

	payload, err := decode(resp)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: paystack verify data decode failed: %v", payments.ErrGatewayUnavailable, err)
	}
	if data.Reference == "" {
		data.Reference = ref
	}

	return &payments.Verification{
		Reference:   data.Reference,
		Status:      payments.NormalizeStatus(data.Status),
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		Raw:         append([]byte(nil), resp.Body()...),
	}, nil
}

// decode classifies the HTTP outcome and unwraps the Paystack envelope.
func decode(resp *resty.Response) (*envelope, error) {
	status := resp.StatusCode()

	var payload envelope
	decodeErr := json.Unmarshal(resp.Body(), &payload)

	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: paystack returned status %d", payments.ErrGatewayUnavailable, status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: paystack response decode failed: %v", payments.ErrGatewayUnavailable, decodeErr)
	}
	if status >= http.StatusBadRequest || !payload.Status {
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = fmt.Sprintf("paystack returned status %d", status)
		}
		return nil, fmt.Errorf("%w: %s", payments.ErrGatewayRejected, message)
	}
	return &payload, nil
}
