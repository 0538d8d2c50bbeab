package common

import "errors"

// FailureReason is the typed, message-carried failure taxonomy of details.
// It travels inside path-detail records and FailedFile rows so that a
// failure can be reasoned about programmatically downstream, not just
// logged as free text.
type FailureReason string

const (
	ReasonNotFound         FailureReason = "not_found"
	ReasonPermissionDenied FailureReason = "permission_denied"
	ReasonReadError        FailureReason = "read_error"
	ReasonWriteError       FailureReason = "write_error"
	ReasonChecksumMismatch FailureReason = "checksum_mismatch"
	ReasonBucketExists     FailureReason = "bucket_exists"
	ReasonObjectMissing    FailureReason = "object_missing"
	ReasonSizeMismatch     FailureReason = "size_mismatch"
	ReasonQuotaExceeded    FailureReason = "quota_exceeded"
	ReasonNoRequirements   FailureReason = "no_requirements"
	ReasonNoTapeResource   FailureReason = "no_tape_resource"
	ReasonBusTransport     FailureReason = "bus_transport"
	ReasonBusUnroutable    FailureReason = "bus_unroutable"
	ReasonRetriesExhausted FailureReason = "retries_exhausted"
)

// ReasonedError pairs a FailureReason with the underlying error, so a
// consumer can both log the full chain and place the typed reason into a
// path-detail record or FailedFile row.
type ReasonedError struct {
	Reason FailureReason
	Err    error
}

func (e *ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *ReasonedError) Unwrap() error { return e.Err }

// NewReasonedError wraps err with a FailureReason for propagation in the
// message envelope.
func NewReasonedError(reason FailureReason, err error) *ReasonedError {
	return &ReasonedError{Reason: reason, Err: err}
}

// ReasonOf extracts the FailureReason from err if it (or anything it
// wraps) is a *ReasonedError, otherwise returns "" and false.
func ReasonOf(err error) (FailureReason, bool) {
	var re *ReasonedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// Sentinel errors for conditions that callers typically want to compare
// against directly rather than through a FailureReason.
var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrUnroutable       = errors.New("message unroutable")
	ErrInvalidRoutingKey = errors.New("invalid routing key")
	ErrEmptyInput       = errors.New("empty input")
)
