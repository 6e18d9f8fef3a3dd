package models

// WebhookEventKind classifies an inbound provider notification.
type WebhookEventKind string

const (
	WebhookEventPayment       WebhookEventKind = "payment"
	WebhookEventMerchantOrder WebhookEventKind = "merchant_order"
	WebhookEventUnknown       WebhookEventKind = "unknown"
)

// WebhookEvent is the normalized form of an inbound notification. It lives
// only for the duration of one request.
type WebhookEvent struct {
	Kind     WebhookEventKind
	EventID  string
	LiveMode bool
	RawEvent string
}

// ProviderResult carries the authoritative provider-side state for one
// payment, as resolved from a webhook event.
type ProviderResult struct {
	Success               bool
	Status                PaymentStatus
	ProviderTransactionID string
	PreferenceID          string
	ExternalReference     string
	MerchantOrderID       string
	ErrorCode             string
}
