package models

import "time"

// PixCharge represents a charge created on the PIX gateway for a deposit.
// Code is the copy-paste PIX string, QrImage a hosted QR code render.
type PixCharge struct {
	ProviderReference string    `json:"id"`
	Code              string    `json:"qr_code"`
	QrImage           string    `json:"qr_code_image"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// PixPayout represents an outbound PIX transfer created for a withdrawal.
type PixPayout struct {
	ProviderReference string    `json:"id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// PixPaymentStatus is the gateway's view of a payment, as returned by the
// status endpoint and carried in webhook deliveries.
type PixPaymentStatus struct {
	ProviderReference string    `json:"id"`
	Status            string    `json:"status"`
	PaidAt            time.Time `json:"paid_at"`
	EndToEndId        string    `json:"end_to_end_id"`
}

// Gateway status values. Everything else is treated as still pending.
const (
	GatewayStatusPaid      = "PAID"
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusRefused   = "REFUSED"
	GatewayStatusCancelled = "CANCELLED"
	GatewayStatusExpired   = "EXPIRED"
)
