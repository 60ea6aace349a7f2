// Package arena provides the growable, contiguous byte store backing
// [Buffer]. It is a bump allocator over a single Go byte slice: allocation
// is an O(1) pointer bump, and growth doubles capacity geometrically,
// exactly like a production arena allocator, adapted here for a store whose
// bytes must stay externally addressable (and reallocatable) rather than
// split across fixed chunks.
package arena

import "unsafe"

// Buffer is an append-only, aligned byte store.
//
// A zero Buffer is ready to use. Growth may reallocate the backing slice;
// any raw pointer obtained via [Buffer.PtrAt] is only valid until the next
// call to [Buffer.Append] or [Buffer.AlignTo] that triggers a grow.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a Buffer with capacity pre-reserved for at least
// hint bytes.
func NewBuffer(hint int) *Buffer {
	b := &Buffer{}
	if hint > 0 {
		b.data = make([]byte, 0, hint)
	}
	return b
}

// Len returns the current size of the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// AlignTo pads the buffer with zero bytes until its length is a multiple
// of n, which must be a power of two.
func (b *Buffer) AlignTo(n int) {
	if n <= 1 {
		return
	}
	m := len(b.data) % n
	if m == 0 {
		return
	}
	b.growBy(n - m)
}

// Append extends the buffer by the given bytes and returns the index at
// which they begin.
func (b *Buffer) Append(p []byte) int {
	start := len(b.data)
	n := b.growBy(len(p))
	copy(n, p)
	return start
}

// Reserve extends the buffer by size zero bytes and returns a pointer to
// the first of them, for callers that want to write directly into the
// buffer rather than copy from an existing slice.
func (b *Buffer) Reserve(size int) unsafe.Pointer {
	n := b.growBy(size)
	if len(n) == 0 {
		return unsafe.Pointer(&b.data)
	}
	return unsafe.Pointer(&n[0])
}

// growBy grows the buffer by n bytes (zero-initialized) and returns the
// newly added region. Mirrors a production arena's geometric-doubling
// growth strategy, made explicit instead of relying on append's implicit
// capacity policy, since the codec depends on grow being the only event
// that can invalidate a previously returned [Buffer.PtrAt] pointer.
func (b *Buffer) growBy(n int) []byte {
	need := len(b.data) + n
	if need > cap(b.data) {
		newCap := max(cap(b.data)*2, need, 64)
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = b.data[:need]
	clear(b.data[need-n : need])
	return b.data[need-n : need]
}

// PtrAt returns a raw pointer to byte i of the buffer. The pointer is valid
// only until the next grow-triggering Append/AlignTo.
func (b *Buffer) PtrAt(i int) unsafe.Pointer {
	return unsafe.Pointer(&b.data[i:i+1][0])
}

// Bytes returns the buffer's contents. The caller must not retain the slice
// across further Append/AlignTo calls if those might reallocate; to hand the
// data off permanently, copy it or stop appending.
func (b *Buffer) Bytes() []byte { return b.data }
