package pix

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pix-case-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func testService(t *testing.T, baseUrl string) *Service {
	t.Helper()
	service, err := NewService(models.GatewayConfig{
		BaseURL:        baseUrl,
		APIKey:         "test-api-key",
		WebhookSecret:  "test-webhook-secret",
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create pix service: %v", err)
	}
	return service
}

func signPayload(secret, providerReference, status string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerReference + ":" + status))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	service := testService(t, "https://gateway.test")

	valid := signPayload("test-webhook-secret", "prov-123", "PAID")
	if !service.VerifySignature("prov-123", "PAID", valid) {
		t.Error("Valid signature rejected")
	}

	tests := []struct {
		name      string
		ref       string
		status    string
		signature string
	}{
		{"wrong secret", "prov-123", "PAID", signPayload("other-secret", "prov-123", "PAID")},
		{"status swapped", "prov-123", "FAILED", valid},
		{"reference swapped", "prov-456", "PAID", valid},
		{"not hex", "prov-123", "PAID", "zz-not-hex"},
		{"empty", "prov-123", "PAID", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if service.VerifySignature(tt.ref, tt.status, tt.signature) {
				t.Error("Invalid signature accepted")
			}
		})
	}
}

func TestCreateChargeSendsAuthAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotIdempotency string
	var gotBody createChargeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/charges" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(models.PixCharge{
			ProviderReference: "prov-abc",
			Code:              "00020126pix",
			QrImage:           "https://gateway.test/qr/abc",
			Status:            "WAITING_PAYMENT",
			CreatedAt:         time.Now().UTC(),
		})
	}))
	defer server.Close()

	service := testService(t, server.URL)
	charge, err := service.CreateCharge(context.Background(), decimal.NewFromInt(50), "req-1")
	if err != nil {
		t.Fatalf("CreateCharge failed: %v", err)
	}

	if charge.ProviderReference != "prov-abc" {
		t.Errorf("Provider reference %s, want prov-abc", charge.ProviderReference)
	}
	if gotAuth != "Bearer test-api-key" {
		t.Errorf("Authorization header %q", gotAuth)
	}
	if gotIdempotency != "req-1" {
		t.Errorf("Idempotency-Key header %q, want req-1", gotIdempotency)
	}
	if gotBody.Amount != "50" || gotBody.ExternalReference != "req-1" {
		t.Errorf("Request body %+v", gotBody)
	}
}

func TestCreatePayoutErrorIncludesGatewayDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid pix key"}`))
	}))
	defer server.Close()

	service := testService(t, server.URL)
	_, err := service.CreatePayout(context.Background(), decimal.NewFromInt(60), "bad-key", "req-2")
	if err == nil {
		t.Fatal("Expected error from 422 response")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "invalid pix key") {
		t.Errorf("Error missing gateway detail: %v", err)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/prov-xyz" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.PixPaymentStatus{
			ProviderReference: "prov-xyz",
			Status:            "PAID",
			PaidAt:            time.Now().UTC(),
		})
	}))
	defer server.Close()

	service := testService(t, server.URL)
	status, err := service.GetPaymentStatus(context.Background(), "prov-xyz")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if status.Status != "PAID" {
		t.Errorf("Status %s, want PAID", status.Status)
	}
}

func TestNewServiceValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.GatewayConfig
	}{
		{"missing base url", models.GatewayConfig{APIKey: "k", WebhookSecret: "s"}},
		{"missing api key", models.GatewayConfig{BaseURL: "https://x", WebhookSecret: "s"}},
		{"missing webhook secret", models.GatewayConfig{BaseURL: "https://x", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("Expected config validation error")
			}
		})
	}
}
