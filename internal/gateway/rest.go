package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"astro-events/pkg/utils"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RESTGateway talks to the payment provider's REST API using
// client-credential tokens. Transient failures (network errors, 5xx)
// are retried with exponential backoff; 4xx responses are not.
type RESTGateway struct {
	config utils.GatewayConfig
	client *http.Client
	log    *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewRESTGateway(config utils.GatewayConfig, log *zap.Logger) *RESTGateway {
	timeout := time.Duration(config.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &RESTGateway{
		config: config,
		client: &http.Client{Timeout: timeout},
		log:    log.With(zap.String("component", "gateway")),
	}
}

type createOrderRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type orderResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	ApprovalURL string  `json:"approval_url"`
	Amount      float64 `json:"amount"`
	Reference   string  `json:"reference"`
}

type refundRequest struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (g *RESTGateway) CreateIntent(ctx context.Context, amount float64, currency, description string, metadata map[string]string) (*Intent, error) {
	body := createOrderRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
	}

	var resp orderResponse
	if err := g.post(ctx, "/v1/orders", body, &resp); err != nil {
		g.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.Float64("amount", amount),
		)
		return nil, fmt.Errorf("create intent: %w", err)
	}

	g.log.Info("Payment intent created",
		zap.String("intent_id", resp.ID),
		zap.Float64("amount", amount),
	)

	return &Intent{IntentID: resp.ID, ApprovalURL: resp.ApprovalURL}, nil
}

func (g *RESTGateway) CaptureIntent(ctx context.Context, intentID string) (*CaptureResult, error) {
	var resp orderResponse
	if err := g.post(ctx, "/v1/orders/"+intentID+"/capture", struct{}{}, &resp); err != nil {
		g.log.Error("Failed to capture payment intent",
			zap.Error(err),
			zap.String("intent_id", intentID),
		)
		return nil, fmt.Errorf("capture intent %s: %w", intentID, err)
	}

	status := CaptureStatus(resp.Status)
	switch status {
	case CaptureCompleted, CaptureDeclined, CaptureFailed:
	default:
		// Unknown status from provider; treat as failed rather than paid.
		g.log.Warn("Unknown capture status from provider",
			zap.String("intent_id", intentID),
			zap.String("status", resp.Status),
		)
		status = CaptureFailed
	}

	return &CaptureResult{
		Status:         status,
		CapturedAmount: resp.Amount,
		Reference:      resp.Reference,
	}, nil
}

func (g *RESTGateway) Refund(ctx context.Context, paymentReference string, amount float64) (*RefundResult, error) {
	body := refundRequest{Reference: paymentReference, Amount: amount}

	var resp refundResponse
	if err := g.post(ctx, "/v1/refunds", body, &resp); err != nil {
		g.log.Error("Failed to refund payment",
			zap.Error(err),
			zap.String("reference", paymentReference),
			zap.Float64("amount", amount),
		)
		return nil, fmt.Errorf("refund %s: %w", paymentReference, err)
	}

	g.log.Info("Refund issued",
		zap.String("refund_id", resp.ID),
		zap.String("reference", paymentReference),
		zap.Float64("amount", amount),
	)

	return &RefundResult{RefundID: resp.ID, Status: resp.Status}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw body against
// the signature header using the shared webhook secret.
func (g *RESTGateway) VerifyWebhookSignature(signature string, body []byte) bool {
	if signature == "" || g.config.WebhookSecret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.config.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// post sends an authenticated JSON request, retrying transient failures.
func (g *RESTGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, err := g.token(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := g.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("gateway request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read gateway response: %w", err))
		}

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("gateway returned %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, respBody)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode gateway response: %w", err)
			}
		}
		return nil
	})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (g *RESTGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.BaseURL+"/v1/oauth/token", bytes.NewReader([]byte("grant_type=client_credentials")))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.config.ClientID, g.config.ClientSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	g.accessToken = tr.AccessToken
	// Renew a minute early so in-flight requests never carry a stale token.
	g.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)

	return g.accessToken, nil
}
