package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signature headers
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Signature binds a payload to a delivery id and a timestamp
type Signature struct {
	Value     string
	Timestamp int64
	ID        string
}

// Header returns the signature as HTTP headers
func (s Signature) Header() http.Header {
	h := make(http.Header, 3)
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	if s.ID != "" {
		h.Set(HeaderID, s.ID)
	}
	return h
}

// Sign computes HMAC-SHA256(secret, "<unix ts>.<payload>").
// id identifies the delivery; the task id keeps it stable across retries.
func Sign(secret string, payload []byte, id string, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, ErrSecretRequired
	}
	if len(payload) == 0 {
		return Signature{}, ErrInvalidPayload
	}
	ts := at.Unix()
	return Signature{Value: mac(secret, ts, payload), Timestamp: ts, ID: id}, nil
}

// Verify checks sig against payload. A positive tolerance also rejects
// timestamps further than tolerance from now in either direction.
func Verify(secret string, payload []byte, sig Signature, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrSecretRequired
	}
	if sig.Value == "" || sig.Timestamp == 0 {
		return ErrSignatureMissing
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(sig.Timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: %s", ErrSignatureExpired, age)
		}
	}
	if !hmac.Equal([]byte(mac(secret, sig.Timestamp, payload)), []byte(sig.Value)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseSignature reads the signature headers of an incoming request
func ParseSignature(h http.Header) (Signature, error) {
	sig := Signature{Value: h.Get(HeaderSignature), ID: h.Get(HeaderID)}
	raw := h.Get(HeaderTimestamp)
	if sig.Value == "" || raw == "" {
		return Signature{}, ErrSignatureMissing
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp %q", ErrSignatureMissing, raw)
	}
	sig.Timestamp = ts
	return sig, nil
}

func mac(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
