/*
Package errdefs defines Slipway's stable error taxonomy.

Boundary errors (runtime calls, store operations, bucket validation) are
wrapped with one of the sentinel kinds in this package before crossing into
core logic, so that callers branch on kind rather than message text.

# Usage

Wrapping at a boundary:

	if err != nil {
		return fmt.Errorf("creating service %s: %w", name, errdefs.ErrLaunchFailed)
	}

Matching in a caller:

	if errdefs.IsNotFound(err) {
		// vanished runtime object: reconcile and continue
	}

# Kind to HTTP Status Mapping

The API layer maps kinds to status codes; the mapping is fixed:

  - ErrInvalidInput, ErrInvalidBucket → 400
  - ErrNotFound → 404
  - ErrResourceExhausted → 503
  - everything else (ErrLaunchFailed, ErrStoreUnavailable, unwrapped) → 500

ErrAttachFailed never reaches a client: the assignment path recovers by
removing the suspect pool entry and launching fresh.

# See Also

  - pkg/api for the HTTP mapping
  - pkg/manager for assignment-path recovery
*/
package errdefs
