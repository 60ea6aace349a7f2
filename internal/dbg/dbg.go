// Package dbg provides build-tag-gated debug logging and assertions for the
// codec's runtime debug checks: active under debug, silent in release.
// Build with -tags cdump_debug to enable.
package dbg

import "github.com/google/uuid"

// Enabled reports whether the debug build tag is set. In non-debug builds
// Log/Assert are empty functions (see dbg_release.go), though their
// arguments are still evaluated at each call site.
var Enabled = enabled

// ID is a correlation identifier assigned to a single Writer or Reader so
// that interleaved debug logs from several buffers in one process stay
// attributable to the buffer that produced them.
type ID string

// NewID mints a fresh correlation id.
func NewID() ID {
	return ID(uuid.NewString())
}
