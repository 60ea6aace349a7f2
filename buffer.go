package cdump

import (
	"unsafe"

	"github.com/cdump-go/cdump/internal/arena"
	"github.com/cdump-go/cdump/internal/dbg"
)

// Writer is an append-only, aligned byte store. Its zero-configuration
// constructor is [NewWriter]; it is the destination of [Serialize].
//
// A Writer is not safe for concurrent use.
type Writer struct {
	buf       *arena.Buffer
	baseAlign int
	id        dbg.ID
}

// NewWriter creates an empty Writer.
func NewWriter(opts ...WriterOption) *Writer {
	cfg := newWriterConfig(opts)
	return &Writer{
		buf:       arena.NewBuffer(cfg.sizeHint),
		baseAlign: cfg.baseAlign,
		id:        dbg.NewID(),
	}
}

// AlignTo pads the buffer with zero bytes until Len() is a multiple of n.
func (w *Writer) AlignTo(n int) {
	dbg.Assert(n <= w.baseAlign && w.baseAlign%max(n, 1) == 0,
		"align_to(%d) exceeds writer base alignment %d", n, w.baseAlign)
	w.buf.AlignTo(n)
	dbg.Log(w.id, "align", "-> %d", w.buf.Len())
}

// Append extends the buffer by the given bytes (no alignment implied) and
// returns the index at which the copy begins.
func (w *Writer) Append(p []byte) int {
	start := w.buf.Append(p)
	dbg.Log(w.id, "append", "%d bytes at %d", len(p), start)
	return start
}

// Len returns the buffer's current size.
func (w *Writer) Len() int { return w.buf.Len() }

// PtrAt returns a raw pointer to byte i of the buffer. Valid only until the
// next Append/AlignTo that reallocates; the codec uses it only within a
// single field emit.
func (w *Writer) PtrAt(i int) unsafe.Pointer { return w.buf.PtrAt(i) }

// IntoReader returns a [Reader] over the writer's bytes, mirroring the
// original's CDumpBufferWriter::into_reader. The Reader shares the writer's
// storage rather than copying it, and the writer itself is left unchanged.
func (w *Writer) IntoReader(opts ...ReaderOption) *Reader {
	return NewReader(w.buf.Bytes(), opts...)
}

// Bytes returns the writer's contents so far, without consuming the
// writer. The returned slice aliases the writer's storage and is only
// valid until the next reallocating Append/AlignTo.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Reader is a cursored view over an aligned byte sequence. It is
// constructed from a Writer's bytes (or any byte slice satisfying the
// same alignment contract) and is the source for [Reader.DeserializeRef],
// [DeserializeValue], and [Reader.DeserializeTo].
//
// A Reader is not safe for concurrent use.
type Reader struct {
	data      []byte
	cursor    int
	baseAlign int
	id        dbg.ID
}

// NewReader constructs a Reader over data. The caller must ensure byte 0 of
// data has the same alignment as the writer's byte 0 had; this is
// debug-asserted, not checked in release builds.
func NewReader(data []byte, opts ...ReaderOption) *Reader {
	cfg := newReaderConfig(opts)
	r := &Reader{data: data, baseAlign: cfg.baseAlign, id: dbg.NewID()}
	if len(data) > 0 {
		dbg.Assert(uintptr(unsafe.Pointer(&data[0]))%uintptr(cfg.baseAlign) == 0,
			"reader backing allocation is not aligned to %d", cfg.baseAlign)
	}
	return r
}

// AlignTo advances the cursor to the next multiple of n.
func (r *Reader) AlignTo(n int) {
	m := r.cursor % n
	if m != 0 {
		r.cursor += n - m
	}
	dbg.Assert(r.cursor%n == 0, "cursor %d not aligned to %d after align_to", r.cursor, n)
	dbg.Log(r.id, "align", "-> %d", r.cursor)
}

// Consume returns a raw pointer to the next n bytes and advances the
// cursor past them.
func (r *Reader) Consume(n int) unsafe.Pointer {
	dbg.Assert(r.cursor+n <= len(r.data), "consume(%d) overruns buffer (cursor=%d, len=%d)", n, r.cursor, len(r.data))
	p := unsafe.Add(unsafe.Pointer(unsafe.SliceData(r.data)), r.cursor)
	r.cursor += n
	dbg.Log(r.id, "consume", "%d bytes", n)
	return p
}

// Advance moves the cursor forward by n bytes without producing a pointer.
func (r *Reader) Advance(n int) { r.cursor += n }

// PtrAt returns a raw, stable pointer to byte i of the buffer. The reader
// never reallocates, so PtrAt results remain valid for the reader's
// lifetime. i == len(data) is legal (a one-past-the-end pointer for a
// zero-length read at the buffer's tail); the result must not be
// dereferenced in that case.
func (r *Reader) PtrAt(i int) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(r.data)), i)
}

// Cursor returns the current cursor position.
func (r *Reader) Cursor() int { return r.cursor }

// Len returns the total length of the underlying buffer.
func (r *Reader) Len() int { return len(r.data) }
