package models

import (
	"time"

	"github.com/thedevsaddam/govalidator"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed:
		return true
	}
	return false
}

type Payment struct {
	ID                   int           `json:"id" db:"id"`
	OrderID              int           `json:"order_id" db:"order_id"`
	UserID               int           `json:"user_id" db:"user_id"`
	AmountCents          int           `json:"amount_cents" db:"amount_cents"`
	Currency             string        `json:"currency" db:"currency"`
	Method               string        `json:"method" db:"method"`
	Description          string        `json:"description,omitempty" db:"description"`
	Status               PaymentStatus `json:"status" db:"status"`
	Provider             string        `json:"provider" db:"provider"`
	ProviderRef          string        `json:"provider_ref,omitempty" db:"provider_ref"`
	ProviderPreferenceID string        `json:"provider_preference_id,omitempty" db:"provider_preference_id"`
	ExternalReference    string        `json:"external_reference,omitempty" db:"external_reference"`
	IdempotencyKey       *string       `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Created              time.Time     `json:"created" db:"created"`
	Updated              time.Time     `json:"updated" db:"updated"`
}

type CreatePaymentOpts struct {
	OrderID     int    `json:"order_id"`
	UserID      int    `json:"user_id"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var CreatePaymentRules = govalidator.MapData{
	"order_id":     []string{"required", "numeric"},
	"user_id":      []string{"required", "numeric"},
	"amount_cents": []string{"required", "numeric"},
	"currency":     []string{"required", "in:ARS,EUR,USD"},
	"method":       []string{"required", "in:card,cash,transfer,pix"},
	"description":  []string{"max:255"},
}

type GetPaymentsOpts struct {
	UserID int    `schema:"user_id"`
	Status string `schema:"status"`
	Page   int    `schema:"page"`
	Limit  int    `schema:"limit"`
}

// PaymentHTML feeds the payment-success mail template.
type PaymentHTML struct {
	ID          int
	OrderID     int
	AmountCents int
	Currency    string
	Method      string
	ProviderRef string
}

type CheckoutResponse struct {
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}
