package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Delivery headers.
const (
	SignatureHeader = "X-Livescribe-Signature-256"
	TimestampHeader = "X-Livescribe-Timestamp"
	EventHeader     = "X-Livescribe-Event"
	DeliveryHeader  = "X-Livescribe-Delivery"
	SessionHeader   = "X-Livescribe-Session"
)

// Sign produces "sha256=<hex>" over "<unix timestamp>.<payload>".
func Sign(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature and rejects timestamps older than maxAge.
// A zero maxAge skips the age check.
func Verify(secret, timestamp string, payload []byte, signature string, maxAge time.Duration) bool {
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	ts := time.Unix(sec, 0)
	if maxAge > 0 && time.Since(ts) > maxAge {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, ts, payload)), []byte(signature))
}

// GenerateSecret returns a random 32-byte hex string.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
