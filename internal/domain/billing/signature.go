package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body
const SignatureHeader = "X-Payment-Signature"

// VerifySignature checks a payment event signature. An empty secret rejects
// everything.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(given, sign(payload, secret))
}

// Sign returns the signature a payment provider must send for payload
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(sign(payload, secret))
}

func sign(payload []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}
