package api

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"bitbucket.org/routeland/payments/config"
	"bitbucket.org/routeland/payments/helpers"
	"bitbucket.org/routeland/payments/mercadopago"
	"bitbucket.org/routeland/payments/middlewares"
	"bitbucket.org/routeland/payments/models"
	"bitbucket.org/routeland/payments/reconcile"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var webhookAck = map[string]bool{"ok": true}

// UpdatePaymentMercadoPago receives Mercado Pago's asynchronous
// notifications. Every path that reaches acknowledgment answers 200 so the
// provider stops retrying; 400 is reserved for unusable payloads and, in
// production, signature failures.
func UpdatePaymentMercadoPago(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	logger := config.LoggerFrom(r.Context())

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "failed reading body")
		return
	}
	defer r.Body.Close()

	payload, err := mercadopago.ParseWebhookBody(body)
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "invalid payload")
		return
	}

	event, scheme := mercadopago.NormalizeWebhook(payload, r.URL.Query(), r.Header.Get("User-Agent"))

	signatureHeader := r.Header.Get("x-signature")
	requestID := r.Header.Get("x-request-id")
	secret := strings.TrimSpace(ctx.Config.MercadoPago.WebhookSecret)

	eventID := ""
	if event != nil {
		eventID = event.EventID
	}

	if secret == "" || signatureHeader == "" {
		logger.Warn("missing x-signature or secret to validate")
		if ctx.IsProduction() {
			w.WriteJSON(http.StatusBadRequest, nil, nil, "invalid signature")
			return
		}
	} else if !mercadopago.VerifySignature(body, signatureHeader, requestID, eventID, secret, scheme) {
		logger.WithFields(log.Fields{"scheme": scheme}).Warn("invalid webhook signature")
		if ctx.IsProduction() {
			w.WriteJSON(http.StatusBadRequest, nil, nil, "invalid signature")
			return
		}
		logger.Warn("continuing despite invalid signature because not in production")
	}

	if event == nil {
		w.WriteJSON(http.StatusBadRequest, nil, nil, "invalid webhook payload")
		return
	}

	outcome, payment, err := ctx.Reconciler.Handle(event)
	if err != nil {
		if errors.Is(err, reconcile.ErrPaymentNotMatched) {
			// Acknowledge so the provider stops retrying; the failure stays
			// visible to operators through the error log.
			logger.WithFields(log.Fields{
				"event":    event.RawEvent,
				"event_id": event.EventID,
			}).Error("payment not found for webhook processing")
			w.WriteJSON(http.StatusOK, webhookAck, nil, "")
			return
		}
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed processing webhook")
		return
	}

	if outcome == reconcile.OutcomeUpdated && payment != nil && payment.Status == models.PaymentStatusSucceeded {
		go notifyPaymentSuccess(ctx, payment)
	}

	w.WriteJSON(http.StatusOK, webhookAck, nil, "")
}

func notifyPaymentSuccess(ctx *config.AppContext, payment *models.Payment) {
	if ctx.SMTP == nil || ctx.Config.Mail.NotifyEmail == "" {
		return
	}

	ed := &helpers.EmailData{
		EmailTo:      ctx.Config.Mail.NotifyEmail,
		NameTo:       ctx.Config.Mail.NotifyName,
		EmailFrom:    ctx.Config.Mail.EmailFrom,
		NameFrom:     ctx.Config.Mail.NameFrom,
		Subject:      ctx.Config.Mail.PaymentSuccess.Subject,
		TemplatePath: fmt.Sprintf("%s%s/%s", ctx.Config.Mail.Folder, ctx.Config.Mail.Path, ctx.Config.Mail.PaymentSuccess.Template),
		SMTP:         ctx.SMTP,
	}

	err := ed.SendEmail(models.PaymentHTML{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Method:      payment.Method,
		ProviderRef: payment.ProviderRef,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"payment_id": payment.ID,
			"error":      err,
		}).Error("failed sending payment success email")
		return
	}

	log.WithFields(log.Fields{
		"payment_id": payment.ID,
	}).Info("success sending payment success email")
}
