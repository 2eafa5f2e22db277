package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrGatewayUnavailable marks transport failures, timeouts and 5xx
	// answers. Callers may retry later.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected marks requests the gateway refused outright.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
)

// Status is the transaction state reported by the gateway.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
	StatusPending   Status = "pending"
	StatusOngoing   Status = "ongoing"
)

// NormalizeStatus lowercases and trims a raw gateway status.
func NormalizeStatus(value string) Status {
	return Status(strings.ToLower(strings.TrimSpace(value)))
}

// InitializeParams describes a checkout to open with the gateway.
type InitializeParams struct {
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
	Metadata    map[string]string
}

// Initialization is the checkout handed back by the gateway.
type Initialization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the gateway's view of one transaction. Raw holds the
// complete response body for auditing.
type Verification struct {
	Reference   string
	Status      Status
	AmountMinor int64
	Currency    string
	Raw         []byte
}

// Gateway opens and verifies transactions with an external payment provider.
type Gateway interface {
	Initialize(ctx context.Context, params InitializeParams) (*Initialization, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// WebhookVerifier authenticates webhook deliveries.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) error
}

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// WebhookEvent is the envelope of a gateway webhook delivery. Only the event
// name and the transaction reference are read; the payload status is never
// trusted.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Reconcilable reports whether the event names a transaction worth verifying.
func (e WebhookEvent) Reconcilable() bool {
	switch e.Event {
	case EventChargeSuccess, EventChargeFailed:
		return strings.TrimSpace(e.Data.Reference) != ""
	default:
		return false
	}
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	event.Event = strings.ToLower(strings.TrimSpace(event.Event))
	event.Data.Reference = strings.TrimSpace(event.Data.Reference)
	return &event, nil
}
