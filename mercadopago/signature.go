package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// SignatureScheme selects which manifest Mercado Pago signed. Payment
// notifications sign "<ts>.<rawBody>", merchant-order feed notifications
// sign "id:<id>;request-id:<rid>;ts:<ts>;".
type SignatureScheme string

const (
	SchemePaymentV1 SignatureScheme = "payment-v1"
	SchemeFeedV2    SignatureScheme = "feed-v2"
	SchemeUnknown   SignatureScheme = "unknown"
)

var signatureHeaderPattern = regexp.MustCompile(`ts=([^,]+),\s*v1=([0-9a-fA-F]+)`)

// VerifySignature checks the x-signature header against the HMAC-SHA256 of
// the scheme's manifest. It fails closed: malformed headers, missing feed
// identifiers and unknown schemes are all invalid.
func VerifySignature(rawBody []byte, signatureHeader, requestID, eventID, secret string, scheme SignatureScheme) bool {
	match := signatureHeaderPattern.FindStringSubmatch(signatureHeader)
	if match == nil {
		return false
	}
	ts, v1 := match[1], match[2]

	var manifest string
	switch scheme {
	case SchemePaymentV1:
		manifest = ts + "." + string(rawBody)
	case SchemeFeedV2:
		if requestID == "" || eventID == "" {
			return false
		}
		manifest = fmt.Sprintf("id:%s;request-id:%s;ts:%s;", eventID, requestID, ts)
	default:
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))

	supplied, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	// hmac.Equal is constant time and treats a length mismatch as unequal
	// without inspecting content.
	return hmac.Equal(supplied, mac.Sum(nil))
}
