package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Publishers and remote clients
// return these (optionally wrapped) so callers can branch with errors.Is.
var (
	// ErrClosed is returned by components that were shut down.
	ErrClosed = errors.New("closed")
)
