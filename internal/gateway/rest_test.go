package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"astro-events/pkg/utils"

	"go.uber.org/zap"
)

func testGateway(baseURL string) *RESTGateway {
	return NewRESTGateway(utils.GatewayConfig{
		BaseURL:       baseURL,
		ClientID:      "client",
		ClientSecret:  "secret",
		WebhookSecret: "whsec",
		Currency:      "USD",
		TimeoutSecs:   5,
	}, zap.NewNop())
}

func tokenHandler(t *testing.T, tokenCalls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			t.Errorf("unexpected client credentials %q/%q", user, pass)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	}
}

func TestRESTGateway_CreateIntent(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["amount"] != 75.0 {
			t.Errorf("unexpected amount %v", req["amount"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "intent-1",
			"status":       "CREATED",
			"approval_url": "https://pay.example.com/approve/intent-1",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := testGateway(server.URL)

	intent, err := gw.CreateIntent(context.Background(), 75, "USD", "Star party", map[string]string{"order_id": "REG-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.IntentID != "intent-1" {
		t.Fatalf("expected intent-1, got %s", intent.IntentID)
	}
	if intent.ApprovalURL == "" {
		t.Fatalf("expected approval URL")
	}

	// Second call reuses the cached token.
	if _, err := gw.CreateIntent(context.Background(), 25, "USD", "Another", nil); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if atomic.LoadInt32(&tokenCalls) != 1 {
		t.Fatalf("expected single token fetch, got %d", tokenCalls)
	}
}

func TestRESTGateway_CaptureIntent(t *testing.T) {
	t.Parallel()

	t.Run("maps unknown status to failed", func(t *testing.T) {
		var tokenCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/oauth/token", tokenHandler(t, &tokenCalls))
		mux.HandleFunc("/v1/orders/intent-9/capture", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "intent-9",
				"status": "PENDING_REVIEW",
			})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		result, err := testGateway(server.URL).CaptureIntent(context.Background(), "intent-9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != CaptureFailed {
			t.Fatalf("expected FAILED for unknown status, got %s", result.Status)
		}
	})

	t.Run("completed capture carries amount and reference", func(t *testing.T) {
		var tokenCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/oauth/token", tokenHandler(t, &tokenCalls))
		mux.HandleFunc("/v1/orders/intent-2/capture", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"id":        "intent-2",
				"status":    "COMPLETED",
				"amount":    50.0,
				"reference": "cap-2",
			})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		result, err := testGateway(server.URL).CaptureIntent(context.Background(), "intent-2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != CaptureCompleted || result.CapturedAmount != 50 || result.Reference != "cap-2" {
			t.Fatalf("unexpected result %+v", result)
		}
	})
}

func TestRESTGateway_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	var orderCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&orderCalls, 1)
		http.Error(w, `{"error":"invalid currency"}`, http.StatusUnprocessableEntity)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := testGateway(server.URL).CreateIntent(context.Background(), 10, "XXX", "Bad", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&orderCalls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", orderCalls)
	}
}

func TestRESTGateway_VerifyWebhookSignature(t *testing.T) {
	t.Parallel()

	gw := testGateway("http://unused")
	body := []byte(`{"id":"evt-1","event_type":"payment.completed"}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !gw.VerifyWebhookSignature(valid, body) {
		t.Fatalf("expected valid signature to verify")
	}
	if gw.VerifyWebhookSignature(valid, []byte(`{"id":"evt-2"}`)) {
		t.Fatalf("signature must not verify for a different body")
	}
	if gw.VerifyWebhookSignature("deadbeef", body) {
		t.Fatalf("wrong signature must not verify")
	}
	if gw.VerifyWebhookSignature("", body) {
		t.Fatalf("empty signature must not verify")
	}
}
