package mercadopago

import (
	"net/url"
	"testing"

	"bitbucket.org/routeland/payments/models"
	"github.com/stretchr/testify/assert"
)

func parseBody(t *testing.T, body string) map[string]interface{} {
	payload, err := ParseWebhookBody([]byte(body))
	assert.Nil(t, err)
	return payload
}

func TestParseWebhookBodyRejectsNonObjects(t *testing.T) {
	cases := []string{"", "not-json", "[]", `"payment"`, "null", "42"}
	for _, body := range cases {
		payload, err := ParseWebhookBody([]byte(body))
		assert.Nil(t, payload, body)
		assert.Equal(t, ErrBadPayload, err, body)
	}
}

func TestNormalizeWebhookBasicShape(t *testing.T) {
	payload := parseBody(t, `{"action":"payment.updated","data":{"id":"123456"},"live_mode":true}`)

	event, scheme := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventPayment, event.Kind)
	assert.Equal(t, "123456", event.EventID)
	assert.Equal(t, "payment.updated", event.RawEvent)
	assert.True(t, event.LiveMode)
	assert.Equal(t, SchemePaymentV1, scheme)
}

func TestNormalizeWebhookBasicShapeNumericID(t *testing.T) {
	payload := parseBody(t, `{"type":"payment","data":{"id":123456}}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventPayment, event.Kind)
	assert.Equal(t, "123456", event.EventID)
}

func TestNormalizeWebhookBasicShapeQueryFallback(t *testing.T) {
	payload := parseBody(t, `{"action":"payment.created"}`)
	query := url.Values{"data.id": []string{"777"}}

	event, _ := NormalizeWebhook(payload, query, "")
	assert.NotNil(t, event)
	assert.Equal(t, "777", event.EventID)

	query = url.Values{"id": []string{"888"}}
	event, _ = NormalizeWebhook(payload, query, "")
	assert.NotNil(t, event)
	assert.Equal(t, "888", event.EventID)
}

func TestNormalizeWebhookFeedShape(t *testing.T) {
	payload := parseBody(t, `{"resource":"https://api.mercadolibre.com/merchant_orders/555","topic":"merchant_order"}`)

	event, scheme := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventMerchantOrder, event.Kind)
	assert.Equal(t, "555", event.EventID)
	assert.True(t, event.LiveMode)
	assert.Equal(t, SchemeFeedV2, scheme)
}

func TestNormalizeWebhookFeedShapeQueryWinsOverResource(t *testing.T) {
	payload := parseBody(t, `{"resource":"/merchant_orders/555","topic":"merchant_order"}`)
	query := url.Values{"id": []string{"999"}}

	event, _ := NormalizeWebhook(payload, query, "")
	assert.NotNil(t, event)
	assert.Equal(t, "999", event.EventID)
}

func TestNormalizeWebhookFeedShapeDefaultsTopic(t *testing.T) {
	payload := parseBody(t, `{"resource":"/merchant_orders/321/"}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventMerchantOrder, event.Kind)
	assert.Equal(t, "321", event.EventID)
	assert.Equal(t, "merchant_order", event.RawEvent)
}

func TestNormalizeWebhookFeedShapePaymentTopic(t *testing.T) {
	payload := parseBody(t, `{"resource":"/v1/payments/42","topic":"payment"}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventPayment, event.Kind)
	assert.Equal(t, "42", event.EventID)
}

func TestNormalizeWebhookTestNotification(t *testing.T) {
	payload := parseBody(t, `{"action":"payment.updated","data":{"id":"1"},"live_mode":false}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.False(t, event.LiveMode)
}

func TestNormalizeWebhookUnknownEventName(t *testing.T) {
	payload := parseBody(t, `{"action":"subscription.updated","data":{"id":"5"}}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.NotNil(t, event)
	assert.Equal(t, models.WebhookEventUnknown, event.Kind)
}

func TestNormalizeWebhookNoUsableID(t *testing.T) {
	payload := parseBody(t, `{"action":"payment.updated"}`)

	event, _ := NormalizeWebhook(payload, nil, "")
	assert.Nil(t, event)
}

func TestNormalizeWebhookUnrecognizedShape(t *testing.T) {
	payload := parseBody(t, `{"something":"else"}`)

	event, scheme := NormalizeWebhook(payload, nil, "")
	assert.Nil(t, event)
	assert.Equal(t, SchemeUnknown, scheme)
}

func TestDetectSchemeUserAgentHints(t *testing.T) {
	feedBody := parseBody(t, `{"resource":"/merchant_orders/1","topic":"merchant_order"}`)

	// The user agent hint outranks the payload shape.
	assert.Equal(t, SchemePaymentV1, detectScheme(feedBody, "MercadoPago WebHook v1.0 payment"))
	assert.Equal(t, SchemeFeedV2, detectScheme(map[string]interface{}{}, "MercadoPago Feed v2.0"))
}

func TestStringFieldIgnoresNonStringValues(t *testing.T) {
	payload := map[string]interface{}{"action": 5, "topic": "merchant_order"}

	assert.Equal(t, "", stringField(payload, "action"))
	assert.Equal(t, "merchant_order", stringField(payload, "topic"))
	assert.Equal(t, "", stringField(payload, "missing"))
}

func TestExtractIDFromResource(t *testing.T) {
	assert.Equal(t, "123", extractIDFromResource("/merchant_orders/123"))
	assert.Equal(t, "123", extractIDFromResource("https://api.mercadolibre.com/merchant_orders/123/"))
	assert.Equal(t, "", extractIDFromResource(""))
	assert.Equal(t, "", extractIDFromResource("///"))
}
