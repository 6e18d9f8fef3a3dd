package mercadopago

import (
	"bitbucket.org/routeland/payments/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const errCodePaymentNotFound = "payment_not_found_for_token"

// ResolveEvent fetches the authoritative provider-side status for a webhook
// event. A nil result with nil error means there is nothing to reconcile:
// test notifications, unsupported event kinds and merchant orders without
// payments all land here and must be acknowledged upstream.
func (mp *MP) ResolveEvent(event *models.WebhookEvent) (*models.ProviderResult, error) {
	if event == nil {
		return nil, nil
	}

	if !event.LiveMode {
		log.WithFields(log.Fields{
			"event":    event.RawEvent,
			"event_id": event.EventID,
		}).Warn("ignoring test webhook")
		return nil, nil
	}

	switch event.Kind {
	case models.WebhookEventPayment:
		if event.EventID == "" {
			return nil, nil
		}
		return mp.resolvePayment(event.EventID)
	case models.WebhookEventMerchantOrder:
		if event.EventID == "" {
			return nil, nil
		}
		return mp.resolveMerchantOrder(event.EventID)
	default:
		log.WithFields(log.Fields{
			"event": event.RawEvent,
		}).Warn("unsupported webhook event")
		return nil, nil
	}
}

func (mp *MP) resolvePayment(paymentID string) (*models.ProviderResult, error) {
	payment, err := mp.MPGetPayment(paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			log.WithFields(log.Fields{
				"payment_id": paymentID,
			}).Warn("payment not found for current token")
			return &models.ProviderResult{
				Success:               false,
				Status:                models.PaymentStatusFailed,
				ProviderTransactionID: paymentID,
				ErrorCode:             errCodePaymentNotFound,
			}, nil
		}
		return nil, errors.Wrapf(err, "failed to get payment %s status", paymentID)
	}

	transactionID := formatID(payment.ID)
	if transactionID == "" {
		transactionID = paymentID
	}

	result := &models.ProviderResult{
		Success:               IsSuccessStatus(payment.Status),
		Status:                MapStatus(payment.Status),
		ProviderTransactionID: transactionID,
		PreferenceID:          payment.PreferenceID,
		ExternalReference:     payment.ExternalReference,
		MerchantOrderID:       formatID(payment.Order.ID),
	}

	if payment.Status == "rejected" {
		result.ErrorCode = payment.StatusDetail
		if result.ErrorCode == "" {
			result.ErrorCode = "payment_rejected"
		}
	}

	return result, nil
}

// resolveMerchantOrder walks a merchant order to a concrete payment: an
// approved listed payment wins, otherwise the most recently listed one.
// Orders without payments fall back to searching by external reference.
func (mp *MP) resolveMerchantOrder(merchantOrderID string) (*models.ProviderResult, error) {
	order, err := mp.MPGetMerchantOrder(merchantOrderID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get merchant order %s", merchantOrderID)
	}

	if len(order.Payments) > 0 {
		selected := order.Payments[len(order.Payments)-1]
		for _, candidate := range order.Payments {
			if candidate.Status == "approved" {
				selected = candidate
				break
			}
		}
		if paymentID := formatID(selected.ID); paymentID != "" {
			return mp.resolvePayment(paymentID)
		}
	}

	if order.ExternalReference != "" {
		results, err := mp.MPSearchPaymentsByExternalReference(order.ExternalReference)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to search payments for merchant order %s", merchantOrderID)
		}
		if len(results) > 0 {
			if paymentID := formatID(results[0].ID); paymentID != "" {
				return mp.resolvePayment(paymentID)
			}
		}
	}

	// Order exists but no payment was generated yet, or it was rejected
	// before a payment came to exist.
	log.WithFields(log.Fields{
		"merchant_order_id":  merchantOrderID,
		"external_reference": order.ExternalReference,
	}).Warn("merchant order without resolvable payments")
	return nil, nil
}
