package gateway

import (
	"context"
	"encoding/json"
)

type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "COMPLETED"
	CaptureDeclined  CaptureStatus = "DECLINED"
	CaptureFailed    CaptureStatus = "FAILED"
)

// Intent is a provider-side payment the holder must approve externally.
type Intent struct {
	IntentID    string `json:"intent_id"`
	ApprovalURL string `json:"approval_url"`
}

type CaptureResult struct {
	Status         CaptureStatus `json:"status"`
	CapturedAmount float64       `json:"captured_amount"`
	Reference      string        `json:"reference"`
}

type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// WebhookEvent is the provider's asynchronous notification. ID is
// globally unique and drives the idempotency ledger.
type WebhookEvent struct {
	ID       string          `json:"id"`
	Type     string          `json:"event_type"`
	Resource json.RawMessage `json:"resource"`
}

// PaymentGateway abstracts the external payment provider. All cross-system
// consistency is compensation-based: callers must cancel their own state
// when a call fails, nothing here spans a database transaction.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount float64, currency, description string, metadata map[string]string) (*Intent, error)
	CaptureIntent(ctx context.Context, intentID string) (*CaptureResult, error)
	Refund(ctx context.Context, paymentReference string, amount float64) (*RefundResult, error)
	VerifyWebhookSignature(signature string, body []byte) bool
}
