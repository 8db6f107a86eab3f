package allocator

import "errors"

var (
	// ErrQuotaExceeded is returned when a request would break the bucket's
	// ceiling. Recoverable - callers may back off and retry.
	ErrQuotaExceeded = errors.New("allocator: quota exceeded")

	// ErrHeapExhausted is returned when the quota admitted the request but
	// the underlying allocator could not satisfy it. The reservation has
	// been rolled back by the time callers see this error.
	ErrHeapExhausted = errors.New("allocator: underlying allocation failed")

	// ErrPolicyDenied is returned when a context policy blocks the request
	// before any reservation is attempted.
	ErrPolicyDenied = errors.New("allocator: denied by policy")
)
