package cdump

import (
	"unsafe"

	"github.com/cdump-go/cdump/internal/cstr"
	"github.com/cdump-go/cdump/internal/dbg"
	"github.com/cdump-go/cdump/internal/identset"
	"github.com/cdump-go/cdump/internal/xmem"
)

// Serialize writes the record at rec (described by rt) to w: align,
// shallow-copy, then a depth-first deep pass over every non-shallow field
// in declaration order.
//
// rec is borrowed read-only for the duration of the call; the live record
// is never mutated.
func Serialize(w *Writer, rec unsafe.Pointer, rt *RecordType) {
	var cycle *identset.Set
	if dbg.Enabled {
		cycle = identset.New(16)
	}
	serializeRecord(w, rec, rt, cycle)
}

// SerializeValue is a type-safe entry point for record types that
// implement [Record].
func SerializeValue[T Record](w *Writer, rec *T) {
	var zero T
	Serialize(w, unsafe.Pointer(rec), zero.CDumpType())
}

func serializeRecord(w *Writer, rec unsafe.Pointer, rt *RecordType, cycle *identset.Set) {
	w.AlignTo(int(rt.Align))
	start := w.Len()
	w.Append(unsafe.Slice((*byte)(rec), int(rt.Size)))

	if cycle != nil {
		addr := uintptr(rec)
		dbg.Assert(!cycle.Insert(addr), "reference cycle detected while serializing %s at %#x", rt.Name, addr)
		defer cycle.Remove(addr)
	}

	serializeDeepFields(w, rec, start, rt.Fields, cycle)
}

// serializeDeepFields runs only the deep pass over fields, assuming the
// shallow bytes at [start, start+len(fields' owner)) are already present in
// the buffer. Used both for the record's own deep pass and, recursively,
// for Plain-kind array elements whose element type is itself a record.
func serializeDeepFields(w *Writer, rec unsafe.Pointer, start int, fields FieldList, cycle *identset.Set) {
	for i := range fields {
		f := &fields[i]
		switch f.Kind {
		case KindPlain, KindInlineArray:
			continue
		default:
			serializeField(w, rec, start, f, cycle)
		}
	}
}

// serializeField writes one non-shallow field of the record at rec, whose
// shallow image begins at buffer index start.
func serializeField(w *Writer, rec unsafe.Pointer, start int, f *FieldDescriptor, cycle *identset.Set) {
	if f.Kind == KindArray {
		serializeArrayField(w, rec, start, f, cycle)
		return
	}

	addr := xmem.PointerAt(rec, f.Offset)
	if addr == 0 {
		// Null: the slot already holds a null sentinel in the shallow
		// copy, nothing to emit.
		return
	}
	ident := unsafe.Pointer(addr)

	switch f.Kind {
	case KindReference:
		if f.PointeeType != nil {
			serializeRecord(w, ident, f.PointeeType, cycle)
		} else {
			w.AlignTo(int(f.PointeeAlign))
			w.Append(unsafe.Slice((*byte)(ident), int(f.PointeeSize)))
		}
		// Slot is not patched: the deserializer locates the pointee by
		// placement order.

	case KindCString:
		length := cstr.Len(ident) + 1
		patchSlot(w, start, f.Offset, length)
		w.Append(unsafe.Slice((*byte)(ident), length))

	case KindDynamic:
		f.Dynamic.Serialize(w, ident)

	default:
		dbg.Assert(false, "serializeField: unexpected kind %v", f.Kind)
	}
}

// serializeArrayField writes an Array field: the shallow element block
// followed by each element's own deep pass.
func serializeArrayField(w *Writer, rec unsafe.Pointer, start int, f *FieldDescriptor, cycle *identset.Set) {
	arrAddr := xmem.PointerAt(rec, f.Offset)
	if arrAddr == 0 {
		return
	}
	arr := unsafe.Pointer(arrAddr)

	n := f.LenOf(rec)
	_, align := f.alignmentType()
	w.AlignTo(int(align))

	stride := int(f.PointeeSize)
	arrayStart := w.Len()
	if n > 0 {
		w.Append(unsafe.Slice((*byte)(arr), stride*n))
	}

	for i := 0; i < n; i++ {
		elem := xmem.Add(arr, uintptr(i*stride))
		elemShallowOffset := arrayStart + i*stride

		switch f.ElemKind {
		case ElemPlain:
			if f.PointeeType != nil {
				serializeDeepFields(w, elem, elemShallowOffset, f.PointeeType.Fields, cycle)
			}

		case ElemReference:
			target := xmem.PointerAt(elem, 0)
			if target != 0 {
				serializeRecord(w, unsafe.Pointer(target), f.PointeeType, cycle)
			}
			// Slot not patched here either; the deserializer rewrites it
			// after materializing the pointee.

		case ElemCString:
			target := xmem.PointerAt(elem, 0)
			if target != 0 {
				length := cstr.Len(unsafe.Pointer(target)) + 1
				patchSlot(w, elemShallowOffset, 0, length)
				w.Append(unsafe.Slice((*byte)(unsafe.Pointer(target)), length))
			}

		case ElemDynamic:
			// Array-of-Dynamic(depth 1) is rejected by Validate, so this
			// path only ever sees depth 2 (pointer to pointer).
			dbg.Assert(f.PointerDepth == 2, "array-of-Dynamic(depth 1) reached serializeArrayField; Validate should have rejected it")
			target := xmem.PointerAt(elem, 0)
			if target != 0 {
				f.Dynamic.Serialize(w, unsafe.Pointer(target))
			}
		}
	}
}

// patchSlot overwrites the pointer-sized slot at buffer index start+offset
// with the integer length tag.
func patchSlot(w *Writer, start int, offset uintptr, length int) {
	xmem.SetIntAt(w.PtrAt(start+int(offset)), 0, length)
}
