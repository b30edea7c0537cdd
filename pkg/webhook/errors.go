package webhook

import "errors"

var (
	ErrDeliveryFailed    = errors.New("webhook delivery failed")
	ErrPermanentFailure  = errors.New("permanent webhook failure")
	ErrTemporaryFailure  = errors.New("temporary webhook failure")
	ErrTimeout           = errors.New("webhook request timeout")
	ErrCircuitOpen       = errors.New("webhook circuit breaker is open")
	ErrInvalidURL        = errors.New("invalid webhook URL")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
	ErrSecretRequired    = errors.New("webhook secret is required")
	ErrSignatureMissing  = errors.New("webhook signature headers are missing")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrSignatureExpired  = errors.New("webhook signature timestamp outside tolerance")
	ErrTaskTypeEmpty     = errors.New("webhook task type cannot be empty")
)

// IsPermanent reports whether retrying the delivery cannot succeed without a
// change on the receiving side.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
