package mercadopago

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"bitbucket.org/routeland/payments/models"
	"github.com/pkg/errors"
)

// ErrBadPayload reports a webhook body that cannot be parsed or matched to a
// known notification shape.
var ErrBadPayload = errors.New("invalid webhook payload")

// ParseWebhookBody decodes the raw notification body. Anything that is not a
// JSON object is a bad payload.
func ParseWebhookBody(rawBody []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, ErrBadPayload
	}
	if payload == nil {
		return nil, ErrBadPayload
	}
	return payload, nil
}

// NormalizeWebhook classifies a parsed notification into one of the two
// shapes Mercado Pago sends and extracts the provider event id. The basic
// shape carries action/type plus data.id; the feed shape carries a resource
// path plus topic. Query parameters data.id/id are the id fallback for both.
// Returns nil when neither shape yields an event name and id.
func NormalizeWebhook(payload map[string]interface{}, query url.Values, userAgent string) (*models.WebhookEvent, SignatureScheme) {
	scheme := detectScheme(payload, userAgent)
	if payload == nil {
		return nil, scheme
	}

	queryID := queryParam(query, "data.id")
	if queryID == "" {
		queryID = queryParam(query, "id")
	}

	if isBasicPayload(payload) {
		rawEvent := strings.ToLower(stringField(payload, "action"))
		if rawEvent == "" {
			rawEvent = strings.ToLower(stringField(payload, "type"))
		}

		id := basicPayloadID(payload)
		if id == "" {
			id = queryID
		}

		if rawEvent != "" && id != "" {
			return &models.WebhookEvent{
				Kind:     eventKind(rawEvent),
				EventID:  id,
				LiveMode: liveMode(payload),
				RawEvent: rawEvent,
			}, scheme
		}
	}

	if isFeedPayload(payload) {
		id := queryID
		if id == "" {
			id = extractIDFromResource(stringField(payload, "resource"))
		}
		if id != "" {
			rawEvent := strings.ToLower(stringField(payload, "topic"))
			if rawEvent == "" {
				rawEvent = "merchant_order"
			}
			return &models.WebhookEvent{
				Kind:     eventKind(rawEvent),
				EventID:  id,
				LiveMode: liveMode(payload),
				RawEvent: rawEvent,
			}, scheme
		}
	}

	return nil, scheme
}

// detectScheme picks the signature manifest. The user agent is an auxiliary
// hint only; the payload shape decides when the hint is absent.
func detectScheme(payload map[string]interface{}, userAgent string) SignatureScheme {
	isPaymentV1 := strings.Contains(userAgent, "WebHook v1.0 payment")
	if !isPaymentV1 && isBasicPayload(payload) {
		rawEvent := strings.ToLower(stringField(payload, "action"))
		if rawEvent == "" {
			rawEvent = strings.ToLower(stringField(payload, "type"))
		}
		isPaymentV1 = rawEvent == "payment" || strings.HasPrefix(rawEvent, "payment.")
	}
	if isPaymentV1 {
		return SchemePaymentV1
	}

	if strings.Contains(userAgent, "Feed v2.0") {
		return SchemeFeedV2
	}
	if isFeedPayload(payload) && stringField(payload, "topic") == "merchant_order" {
		return SchemeFeedV2
	}

	return SchemeUnknown
}

func eventKind(rawEvent string) models.WebhookEventKind {
	if rawEvent == "payment" || strings.HasPrefix(rawEvent, "payment.") {
		return models.WebhookEventPayment
	}
	if rawEvent == "merchant_order" {
		return models.WebhookEventMerchantOrder
	}
	return models.WebhookEventUnknown
}

func isBasicPayload(payload map[string]interface{}) bool {
	if payload == nil {
		return false
	}
	if !optionalString(payload, "action") || !optionalString(payload, "type") {
		return false
	}
	data, present := payload["data"]
	if !present {
		return true
	}
	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return false
	}
	id, present := dataMap["id"]
	if !present {
		return true
	}
	switch id.(type) {
	case string, float64, json.Number:
		return true
	}
	return false
}

func isFeedPayload(payload map[string]interface{}) bool {
	if payload == nil {
		return false
	}
	return optionalString(payload, "resource") && optionalString(payload, "topic")
}

func basicPayloadID(payload map[string]interface{}) string {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return ""
	}
	return scalarToString(data["id"])
}

// extractIDFromResource takes the last non-empty segment of a path-like
// resource string, e.g. ".../merchant_orders/123" -> "123".
func extractIDFromResource(resource string) string {
	segments := strings.Split(resource, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func liveMode(payload map[string]interface{}) bool {
	if live, ok := payload["live_mode"].(bool); ok {
		return live
	}
	return true
}

func queryParam(query url.Values, key string) string {
	if query == nil {
		return ""
	}
	return query.Get(key)
}

func optionalString(payload map[string]interface{}, key string) bool {
	value, present := payload[key]
	if !present {
		return true
	}
	_, ok := value.(string)
	return ok
}

func stringField(payload map[string]interface{}, key string) string {
	value, _ := payload[key].(string)
	return value
}

func scalarToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}
