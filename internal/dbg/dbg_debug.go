//go:build cdump_debug

package dbg

import (
	"fmt"
	"os"

	"github.com/timandy/routine"
)

const enabled = true

// Log prints a correlated debug message to stderr. id identifies the
// Writer/Reader this log line concerns; op names the operation being
// logged (e.g. "align", "shallow-copy", "patch-length").
func Log(id ID, op string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "cdump[%s] g%04d %s: %s\n", id, routine.Goid(), op, msg)
}

// Assert panics with a formatted message if cond is false. In non-debug
// builds it is an empty function; the caller still evaluates cond and args.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("cdump: internal assertion failed: "+format, args...))
	}
}
