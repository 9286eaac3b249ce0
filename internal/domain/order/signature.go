package order

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of "orderID|paymentID" with the
// gateway key secret. This is the signature scheme Razorpay uses for its
// checkout success callback.
func Sign(secret []byte, handle, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(handle))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it against
// the delivered one in constant time.
func VerifySignature(secret []byte, handle, paymentID, signature string) bool {
	expected := Sign(secret, handle, paymentID)
	// hmac.Equal is constant-time; comparing hex strings keeps length
	// differences from short-circuiting earlier than they would anyway.
	return hmac.Equal([]byte(expected), []byte(signature))
}
