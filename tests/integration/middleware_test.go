//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

// A rejected confirmation still carries the caller's request ID so support
// can match it with the server log.
func TestRequestID_OnRejectedConfirmation(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		baseURL+"/api/payments/checkout-success", strings.NewReader(`{"sessionId":"cs_test_x"}`))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "checkout-return-42")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "checkout-return-42" {
		t.Errorf("X-Request-ID: got %q, want %q", got, "checkout-return-42")
	}
}

// The storefront posts the session ID back cross-origin with its bearer token
// and reads the request ID from the response.
func TestCORS_CheckoutSuccessPreflight(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions,
		baseURL+"/api/payments/checkout-success", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials: got %q, want true", got)
	}
	if got := strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers")); !strings.Contains(got, "authorization") {
		t.Errorf("Access-Control-Allow-Headers: got %q, want authorization allowed", got)
	}
}

func TestCORS_UnknownStorefrontOrigin(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions,
		baseURL+"/api/payments/create-checkout-session", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want none", got)
	}
}

// Session creation is limited per user, CHECKOUT_RATE_LIMIT_SESSION_MAX=20 in
// docker-compose.test.yml. Other routes only see the global limit.
func TestRateLimit_CheckoutSessionsPerUser(t *testing.T) {
	token, err := issueToken("rate-limited-shopper", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	const limit = 20
	for i := range limit {
		resp := doRequest(t, http.MethodPost, "/api/payments/create-checkout-session", sessionRequest{}, token)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d limited before the session limit", i+1)
		}
		if got := resp.Header.Get("X-RateLimit-Limit"); got != "20" {
			t.Fatalf("X-RateLimit-Limit: got %q, want 20", got)
		}
	}

	resp := doRequest(t, http.MethodPost, "/api/payments/create-checkout-session", sessionRequest{}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header not present")
	}

	orders := doRequest(t, http.MethodGet, "/api/orders", nil, token)
	defer orders.Body.Close()
	if orders.StatusCode != http.StatusOK {
		t.Errorf("orders after session limit: got %d, want 200", orders.StatusCode)
	}
	if got := orders.Header.Get("X-RateLimit-Limit"); got != "1000" {
		t.Errorf("orders X-RateLimit-Limit: got %q, want the global 1000", got)
	}
}
