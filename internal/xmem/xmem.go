// Package xmem provides the unsafe pointer and offset arithmetic that the
// codec needs to reach a field of a live record by its static offset without
// reflecting on every access.
package xmem

import "unsafe"

// Int is any integer type usable as a scaling factor or count.
type Int interface {
	int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 | uintptr
}

// PointerSize is the size and alignment of a pointer on this platform.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

// Layout returns T's size and alignment.
func Layout[T any]() (size, align int) {
	var z T
	return int(unsafe.Sizeof(z)), int(unsafe.Alignof(z))
}

// Cast reinterprets p as a pointer to To.
func Cast[To, From any](p *From) *To {
	return (*To)(unsafe.Pointer(p))
}

// ByteAdd adds n raw bytes to p, without any scaling.
func ByteAdd[P ~*E, E any, I Int](p P, n I) P {
	return P(unsafe.Add(unsafe.Pointer(p), uintptr(n)))
}

// ByteLoad loads a T from p+n bytes.
func ByteLoad[T any, P ~*E, E any, I Int](p P, n I) T {
	return *Cast[T](ByteAdd(p, n))
}

// ByteStore stores v at p+n bytes.
func ByteStore[T any, P ~*E, E any, I Int](p P, n I, v T) {
	*Cast[T](ByteAdd(p, n)) = v
}

// Misalign returns the byte offset needed to round addr up to the next
// multiple of align. align must be a power of two.
func Misalign(addr uintptr, align int) int {
	a := uintptr(align)
	return int((a - addr%a) % a)
}

// AlignUp rounds n up to the next multiple of align (a power of two).
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// PointerAt reads the pointer-sized slot at p+offset as a raw address.
func PointerAt(p unsafe.Pointer, offset uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(uintptr(p) + offset))
}

// SetPointerAt overwrites the pointer-sized slot at p+offset with addr.
func SetPointerAt(p unsafe.Pointer, offset uintptr, addr uintptr) {
	*(*uintptr)(unsafe.Pointer(uintptr(p) + offset)) = addr
}

// SetIntAt overwrites the pointer-sized slot at p+offset with an integer tag
// (a length, not an address).
func SetIntAt(p unsafe.Pointer, offset uintptr, n int) {
	*(*int)(unsafe.Pointer(uintptr(p) + offset)) = n
}

// IntAt reads the pointer-sized slot at p+offset as an integer tag.
func IntAt(p unsafe.Pointer, offset uintptr) int {
	return *(*int)(unsafe.Pointer(uintptr(p) + offset))
}

// Add offsets p by n bytes and returns the resulting pointer.
func Add(p unsafe.Pointer, n uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) + n)
}
