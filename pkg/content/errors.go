package content

import "errors"

// ============================================================================
// Content Manager Errors
// ============================================================================

// These errors classify failures of the content manager. Callers (the HTTP
// boundary, the CLI) check them with errors.Is and map them to responses.
//
// Usage Pattern:
//
//	res, err := mgr.SetStream(ctx, key, body, contentType, nil)
//	if err != nil {
//	    if errors.Is(err, content.ErrUpstream) {
//	        return http.StatusBadRequest
//	    }
//	    return http.StatusInternalServerError
//	}
//
// Error Wrapping:
// The manager wraps these errors with the key or id involved:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrStoreIO)
//
// Not-found is deliberately absent from most read paths: GetData and GetMeta
// report a missing revision through their found result, never an error.

var (
	// ErrStoreIO indicates a backing store failure.
	//
	// The pipeline that hit it is aborted and nothing is committed. Any bytes
	// already appended to the new revision stay orphaned but are never
	// resolvable, because the meta record and index entry were not written.
	//
	// HTTP: 500 Internal Server Error
	ErrStoreIO = errors.New("store i/o failure")

	// ErrNotFound indicates a reference that resolves to nothing.
	//
	// Only streams and source lookups return it: a stream has no other way
	// to report that its target never existed.
	//
	// HTTP: 404 Not Found
	ErrNotFound = errors.New("content not found")

	// ErrUpstream indicates the caller-supplied input stream failed while the
	// write pipeline was consuming it.
	//
	// HTTP: 400 Bad Request
	ErrUpstream = errors.New("upstream stream failure")

	// ErrPruneConflict indicates a prune lost the optimistic race against a
	// concurrent write to the same key. The write wins; the prune is dropped
	// for this cycle and runs again after the next write.
	ErrPruneConflict = errors.New("prune conflict")

	// ErrInvalidMeta indicates caller-supplied meta that cannot be stored,
	// such as an mtime in none of the accepted layouts. Nothing is written.
	//
	// HTTP: 400 Bad Request
	ErrInvalidMeta = errors.New("invalid meta")

	// ErrInvalidSettings indicates a rejected tunable (e.g. negative
	// revisions).
	ErrInvalidSettings = errors.New("invalid settings")
)
