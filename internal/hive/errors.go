package hive

import "fmt"

// Error taxonomy per spec.md §7. Handlers map these to HTTP status codes
// in server.go; node callers switch on them to decide retry behavior.

// ErrPayloadTooLarge reports a request body exceeding the 64 MiB cap
// (spec.md §4.5, §7).
type ErrPayloadTooLarge struct {
	Limit int64
}

func (e ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d byte limit", e.Limit)
}

// ErrUnauthorized reports a missing or incorrect shared-secret header on a
// write endpoint or fetch_data (spec.md §4.5).
type ErrUnauthorized struct{}

func (ErrUnauthorized) Error() string { return "missing or invalid shared secret" }

// ErrValidation reports a malformed request body or an inconsistent
// job/node/submission field (spec.md §7 Validation category).
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}
