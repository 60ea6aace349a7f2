// Package dyncodec is the registry that all three descriptor sources
// (internal/reflectdesc, internal/yamldesc, and cmd/cdumpgen's generated
// output) share for resolving a Dynamic field's `codec=name` tag option
// to an actual cdump.DynamicCodec, so a codec registered once is visible
// to whichever descriptor source a given record type happens to use.
package dyncodec

import (
	"sync"

	"github.com/cdump-go/cdump"
)

var (
	mu       sync.RWMutex
	registry = map[string]cdump.DynamicCodec{}
)

// Register makes codec available under name to every descriptor source.
// Typically called from an init() next to the DynamicCodec implementation.
func Register(name string, codec cdump.DynamicCodec) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = codec
}

// Lookup returns the codec registered under name, if any.
func Lookup(name string) (cdump.DynamicCodec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}
