// Package reconcile applies provider webhook events to locally tracked
// payments: it resolves the authoritative provider status, matches the event
// to exactly one payment record and performs an idempotent status update.
package reconcile

import (
	"regexp"
	"strconv"
	"time"

	"bitbucket.org/routeland/payments/db"
	"bitbucket.org/routeland/payments/helpers"
	"bitbucket.org/routeland/payments/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provider resolves webhook events against the payment provider. The live
// implementation is mercadopago.MP; tests plug in a double.
type Provider interface {
	ResolveEvent(event *models.WebhookEvent) (*models.ProviderResult, error)
}

// Outcome is the terminal state of handling one webhook event.
type Outcome string

const (
	// OutcomeNothingToResolve acknowledges events that carry no actionable
	// provider state: test notifications, unknown kinds, orders without
	// payments.
	OutcomeNothingToResolve Outcome = "nothing_to_resolve"
	// OutcomeIdempotent means the payment already holds the resolved state.
	OutcomeIdempotent Outcome = "idempotent"
	OutcomeUpdated    Outcome = "updated"
)

// ErrPaymentNotMatched reports that no local payment matched any of the
// event's candidate keys after all retries.
var ErrPaymentNotMatched = errors.New("payment not matched for webhook event")

// A provider reference that is all digits is taken to be a settled provider
// payment id. Heuristic carried over from the provider's id format.
var numericIDPattern = regexp.MustCompile(`^\d+$`)

type Reconciler struct {
	DB       db.PaymentStorage
	Provider Provider

	RetryAttempts int
	RetryDelays   []time.Duration
}

func New(storage db.PaymentStorage, provider Provider) *Reconciler {
	return &Reconciler{
		DB:            storage,
		Provider:      provider,
		RetryAttempts: 3,
		RetryDelays:   helpers.DefaultRetryDelays,
	}
}

// Handle runs one webhook event to a terminal state. A nil error with a
// no-op outcome is still a successful acknowledgment.
func (rc *Reconciler) Handle(event *models.WebhookEvent) (Outcome, *models.Payment, error) {
	result, err := rc.Provider.ResolveEvent(event)
	if err != nil {
		return "", nil, err
	}

	if result == nil {
		return OutcomeNothingToResolve, nil, nil
	}

	log.WithFields(log.Fields{
		"provider_transaction_id": result.ProviderTransactionID,
		"status":                  result.Status,
		"preference_id":           result.PreferenceID,
		"external_reference":      result.ExternalReference,
		"merchant_order_id":       result.MerchantOrderID,
		"error_code":              result.ErrorCode,
	}).Info("webhook resolved")

	payment, err := rc.matchPayment(result)
	if err != nil {
		return "", nil, err
	}

	if payment == nil {
		log.WithFields(log.Fields{
			"provider_transaction_id": result.ProviderTransactionID,
			"preference_id":           result.PreferenceID,
			"external_reference":      result.ExternalReference,
		}).Warn("payment not matched with any key")
		return "", nil, ErrPaymentNotMatched
	}

	if payment.Status == result.Status && numericIDPattern.MatchString(payment.ProviderRef) {
		log.WithFields(log.Fields{
			"payment_id":   payment.ID,
			"status":       payment.Status,
			"provider_ref": payment.ProviderRef,
		}).Info("no update needed")
		return OutcomeIdempotent, payment, nil
	}

	patch := &db.UpdatePaymentDataOpts{
		Status:            &result.Status,
		ExternalReference: &result.ExternalReference,
	}
	// Never replace a settled numeric provider payment id with something
	// that does not look like one. The preference id is not touched here.
	if numericIDPattern.MatchString(result.ProviderTransactionID) {
		patch.ProviderRef = &result.ProviderTransactionID
	}

	if err := rc.DB.UpdatePaymentData(payment.ID, patch); err != nil {
		return "", nil, errors.Wrapf(err, "failed updating payment %d from webhook", payment.ID)
	}

	payment.Status = result.Status
	payment.ExternalReference = result.ExternalReference
	if patch.ProviderRef != nil {
		payment.ProviderRef = *patch.ProviderRef
	}

	log.WithFields(log.Fields{
		"payment_id":   payment.ID,
		"status":       payment.Status,
		"provider_ref": payment.ProviderRef,
	}).Info("payment updated from webhook")

	return OutcomeUpdated, payment, nil
}

// matchPayment tries the candidate keys in fixed priority order: provider
// payment id, then preference id, then the external reference as an order
// id. Each strategy is retried to ride out the window between preference
// creation and webhook delivery.
func (rc *Reconciler) matchPayment(result *models.ProviderResult) (*models.Payment, error) {
	if result.ProviderTransactionID != "" {
		payment, err := rc.retryLookup(func() (*models.Payment, error) {
			return rc.DB.GetPaymentByProviderRef(result.ProviderTransactionID)
		})
		if err != nil {
			return nil, err
		}
		if payment != nil {
			log.WithFields(log.Fields{
				"payment_id":   payment.ID,
				"provider_ref": payment.ProviderRef,
			}).Info("matched by provider_ref")
			return payment, nil
		}
	}

	if result.PreferenceID != "" {
		payment, err := rc.retryLookup(func() (*models.Payment, error) {
			return rc.DB.GetPaymentByPreferenceID(result.PreferenceID)
		})
		if err != nil {
			return nil, err
		}
		if payment != nil {
			log.WithFields(log.Fields{
				"payment_id":    payment.ID,
				"preference_id": result.PreferenceID,
			}).Info("matched by preference_id")
			return payment, nil
		}
	}

	if result.ExternalReference != "" {
		orderID, err := strconv.Atoi(result.ExternalReference)
		if err == nil {
			payment, err := rc.retryLookup(func() (*models.Payment, error) {
				return rc.findByOrderID(orderID)
			})
			if err != nil {
				return nil, err
			}
			if payment != nil {
				log.WithFields(log.Fields{
					"payment_id": payment.ID,
					"order_id":   orderID,
				}).Info("matched by external_reference")
				return payment, nil
			}
		}
	}

	return nil, nil
}

// findByOrderID prefers a payment still in processing for the order, falling
// back to the order's first payment in any state.
func (rc *Reconciler) findByOrderID(orderID int) (*models.Payment, error) {
	payment, err := rc.DB.GetProcessingPaymentByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		return payment, nil
	}

	payments, err := rc.DB.GetPaymentsByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		return &payments[0], nil
	}

	return nil, nil
}

func (rc *Reconciler) retryLookup(find func() (*models.Payment, error)) (*models.Payment, error) {
	var payment *models.Payment
	_, err := helpers.Retry(func() (bool, error) {
		hit, err := find()
		if err != nil {
			return false, err
		}
		payment = hit
		return hit != nil, nil
	}, rc.RetryAttempts, rc.RetryDelays)
	if err != nil {
		return nil, err
	}

	return payment, nil
}
