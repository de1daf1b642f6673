package pix

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"pix-case-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Service is the REST client for the PIX payment provider. Charges and
// payouts carry our request id as the provider-side external reference, and
// webhook deliveries are authenticated with an HMAC over the reference and
// status.
type Service struct {
	baseUrl       string
	apiKey        string
	webhookSecret string
	httpClient    http.Client
}

func NewService(cfg models.GatewayConfig) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL cannot be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key cannot be empty")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("gateway webhook secret cannot be empty")
	}

	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Service{
		baseUrl:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    httpClient,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type createChargeRequest struct {
	Amount            string `json:"amount"`
	ExternalReference string `json:"external_reference"`
}

type createPayoutRequest struct {
	Amount            string `json:"amount"`
	PixKey            string `json:"pix_key"`
	ExternalReference string `json:"external_reference"`
}

// CreateCharge creates a PIX charge for a deposit. The returned reference is
// what the provider will echo back in webhooks and status queries.
func (s *Service) CreateCharge(ctx context.Context, amount decimal.Decimal, referenceId string) (*models.PixCharge, error) {
	body := createChargeRequest{
		Amount:            amount.String(),
		ExternalReference: referenceId,
	}

	var charge models.PixCharge
	if err := s.post(ctx, "/v1/charges", referenceId, body, &charge); err != nil {
		return nil, fmt.Errorf("unable to create charge: %w", err)
	}

	zap.L().Info("PIX charge created",
		zap.String("provider_reference", charge.ProviderReference),
		zap.String("reference_id", referenceId),
		zap.String("amount", amount.String()))
	return &charge, nil
}

// CreatePayout creates an outbound PIX transfer for a withdrawal. The
// reference id doubles as the provider-side idempotency key, so retrying a
// payout for the same request cannot send money twice.
func (s *Service) CreatePayout(ctx context.Context, amount decimal.Decimal, pixKey, referenceId string) (*models.PixPayout, error) {
	body := createPayoutRequest{
		Amount:            amount.String(),
		PixKey:            pixKey,
		ExternalReference: referenceId,
	}

	var payout models.PixPayout
	if err := s.post(ctx, "/v1/payouts", referenceId, body, &payout); err != nil {
		return nil, fmt.Errorf("unable to create payout: %w", err)
	}

	zap.L().Info("PIX payout created",
		zap.String("provider_reference", payout.ProviderReference),
		zap.String("reference_id", referenceId),
		zap.String("amount", amount.String()))
	return &payout, nil
}

// GetPaymentStatus fetches the provider's current view of a payment.
func (s *Service) GetPaymentStatus(ctx context.Context, providerReference string) (*models.PixPaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseUrl+"/v1/payments/"+providerReference, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build status request: %w", err)
	}
	s.setHeaders(req, "")

	var status models.PixPaymentStatus
	if err := s.do(req, &status); err != nil {
		return nil, fmt.Errorf("unable to query payment status: %w", err)
	}
	return &status, nil
}

// VerifySignature checks a webhook delivery's HMAC-SHA256 signature, computed
// over "<providerReference>:<status>" with the shared webhook secret and sent
// hex-encoded. Comparison is constant time.
func (s *Service) VerifySignature(providerReference, status, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(providerReference + ":" + status))
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expectedRaw, _ := hex.DecodeString(expected)
	return hmac.Equal(provided, expectedRaw)
}

func (s *Service) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("unable to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseUrl+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	s.setHeaders(req, idempotencyKey)

	return s.do(req, out)
}

func (s *Service) setHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func (s *Service) do(req *http.Request, out interface{}) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d for %s: %s", resp.StatusCode, req.URL.Path, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode gateway response: %w", err)
	}
	return nil
}
