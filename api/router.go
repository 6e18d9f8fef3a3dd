package api

import (
	"net/http"

	"bitbucket.org/routeland/payments/config"
	"bitbucket.org/routeland/payments/middlewares"
	"bitbucket.org/routeland/payments/server"
)

// HealthcheckHandler indicates the service's healthy
func HealthcheckHandler(_ *config.AppContext, w *middlewares.ResponseWriter, _ *http.Request) {
	w.String(http.StatusOK, "OK")
}

// GetRoutes ...
func GetRoutes() []*server.Route {
	return []*server.Route{
		{Path: "/healthcheck", Methods: []string{"GET", "HEAD"}, Handler: HealthcheckHandler, IsProtected: false},

		// Webhook, authenticated by signature instead of JWT
		{Path: "/webhook/mercadopago", Methods: []string{"POST"}, Handler: UpdatePaymentMercadoPago, IsProtected: false},

		// Payment
		{Path: "/payment", Methods: []string{"POST", "HEAD"}, Handler: InsertPayment, IsProtected: true},
		{Path: "/payment", Methods: []string{"GET", "HEAD"}, Handler: GetPayments, IsProtected: true},
		{Path: "/payment/{payment_id:[0-9]+}", Methods: []string{"GET", "HEAD"}, Handler: GetPayment, IsProtected: true},
		{Path: "/payment/{payment_id:[0-9]+}/checkout", Methods: []string{"POST", "HEAD"}, Handler: InsertPaymentCheckout, IsProtected: true},
		{Path: "/payment/return/{result}", Methods: []string{"GET", "HEAD"}, Handler: PaymentReturn, IsProtected: false},

		// Order
		{Path: "/order/{order_id}/payment", Methods: []string{"GET", "HEAD"}, Handler: GetOrderPayments, IsProtected: true},
	}
}
