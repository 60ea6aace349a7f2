// Package cstr locates the end of a NUL-terminated byte sequence living at
// an arbitrary address, for the codec's CString field kind.
package cstr

import "unsafe"

// Len returns the number of bytes before the first NUL at p, not counting
// the terminator. p must point at a live NUL-terminated sequence; the
// caller holds that guarantee, not this package.
func Len(p unsafe.Pointer) int {
	n := uintptr(0)
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return int(n)
}
