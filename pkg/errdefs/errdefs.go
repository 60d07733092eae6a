package errdefs

import "errors"

// Sentinel errors forming the stable taxonomy every boundary wraps into.
// Callers match with errors.Is (or the helpers below) and never inspect
// message text.
var (
	// ErrInvalidInput marks malformed ids, bucket names, or request bodies.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidBucket marks a bucket that does not exist or that the
	// supplied credentials cannot access.
	ErrInvalidBucket = errors.New("invalid bucket")

	// ErrResourceExhausted marks a launch refused by the admission gate.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrLaunchFailed marks a failed runtime create call.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrAttachFailed marks a failed bucket attachment to a pre-warmed
	// container. Recovered locally by falling back to a fresh launch.
	ErrAttachFailed = errors.New("bucket attach failed")

	// ErrNotFound marks a workspace unknown to the store or the runtime.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks a persistence layer failure. Control loops
	// tolerate it and retry next tick; the request path surfaces it.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsInvalidInput reports whether err is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsInvalidBucket reports whether err is or wraps ErrInvalidBucket.
func IsInvalidBucket(err error) bool { return errors.Is(err, ErrInvalidBucket) }

// IsResourceExhausted reports whether err is or wraps ErrResourceExhausted.
func IsResourceExhausted(err error) bool { return errors.Is(err, ErrResourceExhausted) }

// IsLaunchFailed reports whether err is or wraps ErrLaunchFailed.
func IsLaunchFailed(err error) bool { return errors.Is(err, ErrLaunchFailed) }

// IsAttachFailed reports whether err is or wraps ErrAttachFailed.
func IsAttachFailed(err error) bool { return errors.Is(err, ErrAttachFailed) }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStoreUnavailable reports whether err is or wraps ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
