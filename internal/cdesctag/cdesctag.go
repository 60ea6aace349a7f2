// Package cdesctag parses the `cdump:"..."` struct tag grammar shared by
// internal/reflectdesc (runtime) and cmd/cdumpgen (generate-time), so the
// two descriptor sources agree on one syntax instead of drifting apart.
//
// Grammar: `verb[,key=value...]`, e.g. `ref`, `cstring`,
// `dynamic,codec=name`, `array,len=Count,elem=ref`.
package cdesctag

import "strings"

// Parse splits a cdump struct tag into its verb (ref, cstring, dynamic,
// array) and its comma-separated key=value options.
func Parse(tag string) (verb string, opts map[string]string) {
	parts := strings.Split(tag, ",")
	opts = make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		if k, v, ok := strings.Cut(p, "="); ok {
			opts[k] = v
		}
	}
	return parts[0], opts
}
