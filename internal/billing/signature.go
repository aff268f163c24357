package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signHex computes the hex encoded HMAC-SHA256 of payload under secret.
func signHex(secret []byte, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyHex compares an expected hex HMAC against the presented signature in
// constant time. The shared secret must never be compared byte-by-byte with
// early exit.
func verifyHex(secret []byte, payload []byte, signature string) bool {
	expected := signHex(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
