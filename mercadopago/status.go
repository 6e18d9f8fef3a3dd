package mercadopago

import (
	"bitbucket.org/routeland/payments/models"
	log "github.com/sirupsen/logrus"
)

// MapStatus translates Mercado Pago's status vocabulary into the internal
// enum. Unrecognized values map to failed.
func MapStatus(providerStatus string) models.PaymentStatus {
	switch providerStatus {
	case "approved":
		return models.PaymentStatusSucceeded
	case "pending":
		return models.PaymentStatusPending
	case "rejected", "cancelled":
		return models.PaymentStatusFailed
	default:
		log.WithFields(log.Fields{
			"provider_status": providerStatus,
		}).Warn("unknown mercadopago status")
		return models.PaymentStatusFailed
	}
}

// IsSuccessStatus is intentionally stricter than MapStatus: only the literal
// approved status counts as a successful terminal state.
func IsSuccessStatus(providerStatus string) bool {
	return providerStatus == "approved"
}
