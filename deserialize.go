package cdump

import (
	"unsafe"

	"github.com/cdump-go/cdump/internal/dbg"
	"github.com/cdump-go/cdump/internal/xmem"
)

// DeserializeRef reconstructs a record of static type rt at the reader's
// current cursor and returns a pointer into the reader's own buffer. The
// reference is valid for the reader's lifetime.
func (r *Reader) DeserializeRef(rt *RecordType) unsafe.Pointer {
	return deserializeRecordModeA(r, rt)
}

// DeserializeTo refreshes a pre-existing record tree in place. dst, and
// every pointer reachable from it, must already point to an allocation of
// the correct size for its pointee; pointer identity is preserved, only
// pointee bytes change.
func (r *Reader) DeserializeTo(dst unsafe.Pointer, rt *RecordType) {
	deserializeRecordModeC(r, dst, rt)
}

// DeserializeRef is the type-safe Mode A entry point.
func DeserializeRef[T Record](r *Reader) *T {
	var zero T
	return (*T)(deserializeRecordModeA(r, zero.CDumpType()))
}

// DeserializeValue is the type-safe Mode B entry point: like
// DeserializeRef, but returns an owned copy of the header. The deep
// subtree still lives in the reader's buffer; callers must keep the reader
// alive as long as they dereference any pointer in the returned value.
func DeserializeValue[T Record](r *Reader) T {
	return *DeserializeRef[T](r)
}

// DeserializeTo is the type-safe Mode C entry point.
func DeserializeTo[T Record](r *Reader, dst *T) {
	var zero T
	deserializeRecordModeC(r, unsafe.Pointer(dst), zero.CDumpType())
}

// --- Mode A: construct-in-place, reference into the reader's buffer ---

func deserializeRecordModeA(r *Reader, rt *RecordType) unsafe.Pointer {
	r.AlignTo(int(rt.Align))
	ref := r.Consume(int(rt.Size))
	deserializeDeepFieldsModeA(r, ref, rt.Fields)
	return ref
}

func deserializeDeepFieldsModeA(r *Reader, rec unsafe.Pointer, fields FieldList) {
	for i := range fields {
		f := &fields[i]
		switch f.Kind {
		case KindPlain, KindInlineArray:
			continue
		case KindArray:
			deserializeArrayModeA(r, rec, f)
		default:
			deserializeFieldModeA(r, rec, f)
		}
	}
}

func deserializeFieldModeA(r *Reader, rec unsafe.Pointer, f *FieldDescriptor) {
	if xmem.PointerAt(rec, f.Offset) == 0 {
		return
	}

	switch f.Kind {
	case KindReference:
		if f.PointeeType != nil {
			p := deserializeRecordModeA(r, f.PointeeType)
			xmem.SetPointerAt(rec, f.Offset, uintptr(p))
		} else {
			r.AlignTo(int(f.PointeeAlign))
			p := r.Consume(int(f.PointeeSize))
			xmem.SetPointerAt(rec, f.Offset, uintptr(p))
		}

	case KindCString:
		length := xmem.IntAt(rec, f.Offset)
		p := r.Consume(length)
		xmem.SetPointerAt(rec, f.Offset, uintptr(p))

	case KindDynamic:
		p, _ := f.Dynamic.Deserialize(r)
		xmem.SetPointerAt(rec, f.Offset, uintptr(p))

	default:
		dbg.Assert(false, "deserializeFieldModeA: unexpected kind %v", f.Kind)
	}
}

func deserializeArrayModeA(r *Reader, rec unsafe.Pointer, f *FieldDescriptor) {
	if xmem.PointerAt(rec, f.Offset) == 0 {
		return
	}

	n := f.LenOf(rec)
	_, align := f.alignmentType()
	r.AlignTo(int(align))
	stride := int(f.PointeeSize)

	arrayStart := r.Cursor()
	if n > 0 {
		r.Advance(stride * n)
	}
	base := r.PtrAt(arrayStart)

	for i := 0; i < n; i++ {
		elem := xmem.Add(base, uintptr(i*stride))
		switch f.ElemKind {
		case ElemPlain:
			if f.PointeeType != nil {
				deserializeDeepFieldsModeA(r, elem, f.PointeeType.Fields)
			}

		case ElemReference:
			if xmem.PointerAt(elem, 0) != 0 {
				p := deserializeRecordModeA(r, f.PointeeType)
				xmem.SetPointerAt(elem, 0, uintptr(p))
			}

		case ElemCString:
			if xmem.PointerAt(elem, 0) != 0 {
				length := xmem.IntAt(elem, 0)
				p := r.Consume(length)
				xmem.SetPointerAt(elem, 0, uintptr(p))
			}

		case ElemDynamic:
			if xmem.PointerAt(elem, 0) != 0 {
				p, _ := f.Dynamic.Deserialize(r)
				xmem.SetPointerAt(elem, 0, uintptr(p))
			}
		}
	}

	xmem.SetPointerAt(rec, f.Offset, uintptr(base))
}

// --- Mode C: refresh a caller-supplied tree, preserving pointer identity ---

func deserializeRecordModeC(r *Reader, dst unsafe.Pointer, rt *RecordType) {
	r.AlignTo(int(rt.Align))
	temp := r.Consume(int(rt.Size))
	deserializeDeepFieldsModeC(r, temp, dst, rt.Fields)
	copyBytes(dst, temp, int(rt.Size))
}

func deserializeDeepFieldsModeC(r *Reader, temp, dst unsafe.Pointer, fields FieldList) {
	for i := range fields {
		f := &fields[i]
		switch f.Kind {
		case KindPlain, KindInlineArray:
			continue
		case KindArray:
			deserializeArrayModeC(r, temp, dst, f)
		default:
			deserializeFieldModeC(r, temp, dst, f)
		}
	}
}

func deserializeFieldModeC(r *Reader, temp, dst unsafe.Pointer, f *FieldDescriptor) {
	if xmem.PointerAt(temp, f.Offset) == 0 {
		return
	}
	dstSlot := xmem.PointerAt(dst, f.Offset)

	switch f.Kind {
	case KindReference:
		if f.PointeeType != nil {
			deserializeRecordModeC(r, unsafe.Pointer(dstSlot), f.PointeeType)
		} else {
			r.AlignTo(int(f.PointeeAlign))
			p := r.Consume(int(f.PointeeSize))
			copyBytes(unsafe.Pointer(dstSlot), p, int(f.PointeeSize))
		}

	case KindCString:
		length := xmem.IntAt(temp, f.Offset)
		p := r.Consume(length)
		copyBytes(unsafe.Pointer(dstSlot), p, length)

	case KindDynamic:
		srcPtr, size := f.Dynamic.Deserialize(r)
		dbg.Assert(f.Dynamic.SizeOf(unsafe.Pointer(dstSlot)) >= size,
			"dst allocation for dynamic field %q is smaller than its payload", f.Name)
		copyBytes(unsafe.Pointer(dstSlot), srcPtr, size)
	}

	// Restore temp's slot to dst's pre-call pointer value, so the final
	// bulk copy in deserializeRecordModeC leaves dst's pointer identity
	// untouched.
	xmem.SetPointerAt(temp, f.Offset, dstSlot)
}

func deserializeArrayModeC(r *Reader, temp, dst unsafe.Pointer, f *FieldDescriptor) {
	if xmem.PointerAt(temp, f.Offset) == 0 {
		return
	}

	// The caller's record holds the authoritative element count in Mode C.
	n := f.LenOf(dst)
	_, align := f.alignmentType()
	r.AlignTo(int(align))
	stride := int(f.PointeeSize)

	var arrBase unsafe.Pointer
	if stride*n > 0 {
		arrBase = r.Consume(stride * n)
	} else {
		arrBase = r.PtrAt(r.Cursor())
	}
	dstArr := unsafe.Pointer(xmem.PointerAt(dst, f.Offset))

	for i := 0; i < n; i++ {
		srcElem := xmem.Add(arrBase, uintptr(i*stride))
		dstElem := xmem.Add(dstArr, uintptr(i*stride))

		switch f.ElemKind {
		case ElemPlain:
			if f.PointeeType != nil {
				deserializeDeepFieldsModeC(r, srcElem, dstElem, f.PointeeType.Fields)
			}
			copyBytes(dstElem, srcElem, stride)

		case ElemReference:
			if xmem.PointerAt(srcElem, 0) != 0 {
				dstTarget := xmem.PointerAt(dstElem, 0)
				deserializeRecordModeC(r, unsafe.Pointer(dstTarget), f.PointeeType)
			}

		case ElemCString:
			if xmem.PointerAt(srcElem, 0) != 0 {
				length := xmem.IntAt(srcElem, 0)
				p := r.Consume(length)
				dstTarget := xmem.PointerAt(dstElem, 0)
				copyBytes(unsafe.Pointer(dstTarget), p, length)
			}

		case ElemDynamic:
			if xmem.PointerAt(srcElem, 0) != 0 {
				dstTarget := xmem.PointerAt(dstElem, 0)
				srcPtr, size := f.Dynamic.Deserialize(r)
				dbg.Assert(f.Dynamic.SizeOf(unsafe.Pointer(dstTarget)) >= size,
					"dst allocation for array element %q is smaller than its payload", f.Name)
				copyBytes(unsafe.Pointer(dstTarget), srcPtr, size)
			}
		}
	}

	// Preserve the array field's own pointer identity, same reasoning as
	// deserializeFieldModeC.
	xmem.SetPointerAt(temp, f.Offset, uintptr(dstArr))
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
