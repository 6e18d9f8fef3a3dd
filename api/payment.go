package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/routeland/payments/config"
	"bitbucket.org/routeland/payments/db"
	"bitbucket.org/routeland/payments/mercadopago"
	"bitbucket.org/routeland/payments/middlewares"
	"bitbucket.org/routeland/payments/models"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/thedevsaddam/govalidator"
)

const providerMercadoPago = "mercadopago"

func InsertPayment(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := models.InfoUser{}
	mapstructure.Decode(r.Context().Value("user"), &userInfo)

	if !userInfo.IsClient && !userInfo.IsAdmin && !userInfo.IsAPI {
		w.WriteJSON(http.StatusForbidden, nil, nil, "invalid roles")
		return
	}

	var opts models.CreatePaymentOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.CreatePaymentRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.WriteJSON(http.StatusBadRequest, errs, nil, "failed validations")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		existing, err := ctx.DB.GetPaymentByIdempotencyKey(idempotencyKey)
		if err != nil {
			w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payment by idempotency key")
			return
		}
		if existing != nil {
			w.WriteJSON(http.StatusOK, existing, nil, "")
			return
		}
	}

	insertOpts := db.InsertPaymentOpts{
		OrderID:     opts.OrderID,
		UserID:      opts.UserID,
		AmountCents: opts.AmountCents,
		Currency:    opts.Currency,
		Method:      opts.Method,
		Description: opts.Description,
		Provider:    providerMercadoPago,
		Status:      models.PaymentStatusPending,
	}
	if idempotencyKey != "" {
		insertOpts.IdempotencyKey = &idempotencyKey
	}

	paymentID, err := ctx.DB.InsertPayment(&insertOpts)
	if err != nil {
		// A concurrent request with the same key won the insert race;
		// answer with the winner instead of erroring.
		if errors.Is(err, db.ErrDuplicateIdempotencyKey) && idempotencyKey != "" {
			existing, readErr := ctx.DB.GetPaymentByIdempotencyKey(idempotencyKey)
			if readErr == nil && existing != nil {
				w.WriteJSON(http.StatusOK, existing, nil, "")
				return
			}
			w.WriteJSON(http.StatusConflict, nil, err, "idempotency key conflict")
			return
		}
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed inserting payment")
		return
	}

	payment, err := ctx.DB.GetPaymentByID(paymentID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payment")
		return
	}

	w.WriteJSON(http.StatusCreated, payment, nil, "")
}

// InsertPaymentCheckout creates the Mercado Pago checkout preference for a
// pending payment and stores its id before any webhook about it can arrive.
func InsertPaymentCheckout(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := models.InfoUser{}
	mapstructure.Decode(r.Context().Value("user"), &userInfo)

	vars := mux.Vars(r)
	paymentID, err := strconv.Atoi(vars["payment_id"])
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "failed parsing payment id")
		return
	}

	payment, err := ctx.DB.GetPaymentByID(paymentID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payment")
		return
	}

	if payment == nil {
		w.WriteJSON(http.StatusNotFound, nil, nil, "payment not found")
		return
	}

	if payment.UserID != userInfo.ID && !userInfo.IsAdmin && !userInfo.IsAPI {
		w.WriteJSON(http.StatusForbidden, nil, nil, "invalid user")
		return
	}

	if payment.Status != models.PaymentStatusPending {
		w.WriteJSON(http.StatusBadRequest, nil, nil, "payment not in pending state")
		return
	}

	title := payment.Description
	if title == "" {
		title = fmt.Sprintf("Order %d", payment.OrderID)
	}

	items := []mercadopago.MPPreferenceItem{
		{
			ID:         fmt.Sprintf("%d-1", payment.OrderID),
			Title:      title,
			Quantity:   1,
			UnitPrice:  float64(payment.AmountCents) / 100,
			CurrencyID: payment.Currency,
		},
	}

	response, err := ctx.MercadoPago.MPCreatePreference(items, strconv.Itoa(payment.OrderID))
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "problems with Mercado Pago")
		return
	}

	if response == nil || response.ID == "" {
		w.WriteJSON(http.StatusInternalServerError, nil, nil, "bad response from Mercado Pago")
		return
	}

	externalReference := response.ExternalReference
	if externalReference == "" {
		externalReference = strconv.Itoa(payment.OrderID)
	}

	processing := models.PaymentStatusProcessing
	patch := &db.UpdatePaymentDataOpts{
		Status:            &processing,
		PreferenceID:      &response.ID,
		ExternalReference: &externalReference,
	}
	if err := ctx.DB.UpdatePaymentData(payment.ID, patch); err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed updating payment")
		return
	}

	w.WriteJSON(http.StatusOK, models.CheckoutResponse{
		PreferenceID:     response.ID,
		InitPoint:        response.InitPoint,
		SandboxInitPoint: response.SandboxInitPoint,
	}, nil, "")
}

func GetPayment(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := models.InfoUser{}
	mapstructure.Decode(r.Context().Value("user"), &userInfo)

	vars := mux.Vars(r)
	paymentID, err := strconv.Atoi(vars["payment_id"])
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "failed parsing payment id")
		return
	}

	payment, err := ctx.DB.GetPaymentByID(paymentID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payment")
		return
	}

	if payment == nil {
		w.WriteJSON(http.StatusNotFound, nil, nil, "payment not found")
		return
	}

	if payment.UserID != userInfo.ID && !userInfo.IsAdmin && !userInfo.IsAPI {
		w.WriteJSON(http.StatusForbidden, nil, nil, "invalid user")
		return
	}

	w.WriteJSON(http.StatusOK, payment, nil, "")
}

func GetPayments(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := models.InfoUser{}
	mapstructure.Decode(r.Context().Value("user"), &userInfo)

	var opts models.GetPaymentsOpts
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&opts, r.URL.Query()); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "failed parsing query params")
		return
	}

	pagination := &db.PaginationOpts{Page: opts.Page, Limit: opts.Limit}

	if opts.Status != "" {
		if !userInfo.IsAdmin && !userInfo.IsAPI {
			w.WriteJSON(http.StatusForbidden, nil, nil, "invalid roles")
			return
		}
		status := models.PaymentStatus(opts.Status)
		if !status.Valid() {
			w.WriteJSON(http.StatusBadRequest, nil, nil, "invalid status")
			return
		}
		payments, err := ctx.DB.GetPaymentsByStatus(status, pagination)
		if err != nil {
			w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
			return
		}
		w.WriteJSON(http.StatusOK, payments, nil, "")
		return
	}

	userID := opts.UserID
	if userID == 0 || (!userInfo.IsAdmin && !userInfo.IsAPI) {
		userID = userInfo.ID
	}

	payments, err := ctx.DB.GetPaymentsByUserID(userID, pagination)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	w.WriteJSON(http.StatusOK, payments, nil, "")
}

func GetOrderPayments(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := models.InfoUser{}
	mapstructure.Decode(r.Context().Value("user"), &userInfo)

	vars := mux.Vars(r)
	orderID, err := strconv.Atoi(vars["order_id"])
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "failed parsing order id")
		return
	}

	payments, err := ctx.DB.GetPaymentsByOrderID(orderID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	if !userInfo.IsAdmin && !userInfo.IsAPI {
		filtered := make([]models.Payment, 0, len(payments))
		for _, payment := range payments {
			if payment.UserID == userInfo.ID {
				filtered = append(filtered, payment)
			}
		}
		payments = filtered
	}

	w.WriteJSON(http.StatusOK, payments, nil, "")
}

// PaymentReturn is the landing target for the provider's back_urls after
// checkout. The webhook, not this redirect, is the source of truth.
func PaymentReturn(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	w.WriteJSON(http.StatusOK, map[string]string{
		"result":       vars["result"],
		"external_ref": r.URL.Query().Get("external_reference"),
	}, nil, "")
}
