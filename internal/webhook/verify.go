package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSignature returns the hex HMAC-SHA256 of body under secret.
func ComputeSignature(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature recomputes the HMAC over the raw body and compares it to
// the presented signature in constant time. A "v1=" prefix, as some vendors
// send, is tolerated.
func VerifySignature(secret string, body []byte, presented string) bool {
	presented = strings.TrimPrefix(strings.TrimSpace(presented), "v1=")
	if presented == "" {
		return false
	}
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(presented)))
}
