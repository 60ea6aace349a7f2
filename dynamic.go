package cdump

import "unsafe"

// DynamicCodec is the externally supplied triple of hooks that implements
// the codec for a Dynamic field's opaque payload. All three hooks must
// agree on the in-buffer layout of the payload.
type DynamicCodec interface {
	// Serialize writes obj's payload to w and returns the number of bytes
	// it wrote. The hook is responsible for its own alignment.
	Serialize(w *Writer, obj unsafe.Pointer) int

	// Deserialize reads one payload from r and returns a pointer to it
	// (inside r's buffer, for Mode A/B) together with its size in bytes.
	Deserialize(r *Reader) (ptr unsafe.Pointer, size int)

	// SizeOf returns the in-memory footprint of obj's live representation.
	// Used only by Mode C to bound-check the caller's destination
	// allocation before memcpy-ing into it.
	SizeOf(obj unsafe.Pointer) int
}
