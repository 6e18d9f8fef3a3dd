package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "super-secret"

func hmacHex(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignaturePaymentV1(t *testing.T) {
	body := []byte(`{"action":"payment.updated","data":{"id":"123456"}}`)
	ts := "1704067200"
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, ts+"."+string(body)))

	assert.True(t, VerifySignature(body, header, "", "123456", testSecret, SchemePaymentV1))
}

func TestVerifySignaturePaymentV1WrongSecret(t *testing.T) {
	body := []byte(`{"action":"payment.updated","data":{"id":"123456"}}`)
	ts := "1704067200"
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, ts+"."+string(body)))

	assert.False(t, VerifySignature(body, header, "", "123456", "other-secret", SchemePaymentV1))
}

func TestVerifySignaturePaymentV1MutatedBody(t *testing.T) {
	body := []byte(`{"action":"payment.updated","data":{"id":"123456"}}`)
	ts := "1704067200"
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, ts+"."+string(body)))

	mutated := append([]byte{}, body...)
	mutated[10] ^= 0x01
	assert.False(t, VerifySignature(mutated, header, "", "123456", testSecret, SchemePaymentV1))
}

func TestVerifySignaturePaymentV1MutatedTimestamp(t *testing.T) {
	body := []byte(`{"action":"payment.updated","data":{"id":"123456"}}`)
	header := fmt.Sprintf("ts=%s,v1=%s", "1704067201", hmacHex(testSecret, "1704067200."+string(body)))

	assert.False(t, VerifySignature(body, header, "", "123456", testSecret, SchemePaymentV1))
}

func TestVerifySignatureTruncatedDigest(t *testing.T) {
	body := []byte(`{"action":"payment.updated","data":{"id":"123456"}}`)
	ts := "1704067200"
	digest := hmacHex(testSecret, ts+"."+string(body))
	header := fmt.Sprintf("ts=%s,v1=%s", ts, digest[:32])

	assert.False(t, VerifySignature(body, header, "", "123456", testSecret, SchemePaymentV1))
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	body := []byte(`{}`)

	assert.False(t, VerifySignature(body, "", "", "1", testSecret, SchemePaymentV1))
	assert.False(t, VerifySignature(body, "ts=1704067200,", "", "1", testSecret, SchemePaymentV1))
	assert.False(t, VerifySignature(body, "v1=abcdef", "", "1", testSecret, SchemePaymentV1))
}

func TestVerifySignatureFeedV2(t *testing.T) {
	body := []byte(`{"resource":"/merchant_orders/999","topic":"merchant_order"}`)
	ts := "1704067200"
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", "999", "req-1", ts)
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, manifest))

	assert.True(t, VerifySignature(body, header, "req-1", "999", testSecret, SchemeFeedV2))
	assert.False(t, VerifySignature(body, header, "req-2", "999", testSecret, SchemeFeedV2))
}

func TestVerifySignatureFeedV2RequiresIdentifiers(t *testing.T) {
	ts := "1704067200"
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", "999", "req-1", ts)
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, manifest))

	assert.False(t, VerifySignature(nil, header, "", "999", testSecret, SchemeFeedV2))
	assert.False(t, VerifySignature(nil, header, "req-1", "", testSecret, SchemeFeedV2))
}

func TestVerifySignatureUnknownScheme(t *testing.T) {
	ts := "1704067200"
	header := fmt.Sprintf("ts=%s,v1=%s", ts, hmacHex(testSecret, ts+"."))

	assert.False(t, VerifySignature(nil, header, "req-1", "1", testSecret, SchemeUnknown))
}
