package cdump

import (
	"unsafe"

	"github.com/cdump-go/cdump/internal/xmem"
)

// Kind is the shape of a single field of a [Record], as described in the
// buffer format's field-directed codec.
type Kind int

const (
	// KindPlain is a scalar or fully-inline aggregate: no deep part, fully
	// covered by the record's bulk shallow copy.
	KindPlain Kind = iota
	// KindInlineArray is a fixed-size array of Plain elements: no deep
	// part, same as KindPlain.
	KindInlineArray
	// KindReference is a single pointer to one element, which may itself be
	// a record (PointeeType != nil) or a primitive (PointeeType == nil).
	KindReference
	// KindCString is a pointer to a NUL-terminated byte sequence of
	// unspecified length.
	KindCString
	// KindArray is a pointer to a contiguous run of ElemKind elements whose
	// count is produced by LenOf.
	KindArray
	// KindDynamic is an opaque pointer whose codec is delegated to an
	// externally registered [DynamicCodec].
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "Plain"
	case KindInlineArray:
		return "InlineArray"
	case KindReference:
		return "Reference"
	case KindCString:
		return "CString"
	case KindArray:
		return "Array"
	case KindDynamic:
		return "Dynamic"
	default:
		return "Kind(?)"
	}
}

// ElementKind is the kind of the elements of a KindArray field. Arrays of
// arrays are not permitted: an Array element is always Plain, Reference,
// CString, or Dynamic.
type ElementKind int

const (
	ElemPlain ElementKind = iota
	ElemReference
	ElemCString
	ElemDynamic
)

func (k ElementKind) String() string {
	switch k {
	case ElemPlain:
		return "Plain"
	case ElemReference:
		return "Reference"
	case ElemCString:
		return "CString"
	case ElemDynamic:
		return "Dynamic"
	default:
		return "ElementKind(?)"
	}
}

// TypeID is a generator-assigned stable identifier for a record type,
// distinct from its source name (which may be renamed freely without
// affecting wire compatibility). Only cmd/cdumpgen populates it;
// reflectdesc and yamldesc leave it empty.
type TypeID string

// RecordType is a serializable record type's static shape: its size,
// alignment, and ordered field list. It is produced by one of the
// descriptor sources (reflection, cdumpgen, or a hand-written YAML
// descriptor) and cached once per Go type.
type RecordType struct {
	Name   string
	ID     TypeID
	Size   uintptr
	Align  uintptr
	Fields FieldList
}

// FieldDescriptor is the static description of one declared field of a
// record, carrying enough information to drive both the shallow copy and
// (for non-shallow kinds) the deep pass.
type FieldDescriptor struct {
	// Name is the field's declared name, used only for diagnostics.
	Name string
	// Offset is the field's byte offset within the enclosing record.
	Offset uintptr
	// Size is the field's in-memory size within the enclosing record (the
	// size of the pointer itself for pointer-kind fields).
	Size uintptr
	Kind Kind

	// PointeeType describes the pointee when it is itself a record (has a
	// FieldList). Nil means the pointee is a primitive (only legal for
	// KindReference and, transitively, Array elements of ElemKind
	// ElemReference when pointing at a primitive is rejected by Validate).
	PointeeType *RecordType
	// PointeeSize/PointeeAlign describe one pointee element, whether
	// primitive or record; for records these equal PointeeType.Size/Align.
	PointeeSize  uintptr
	PointeeAlign uintptr

	// ElemKind and LenOf are set for KindArray only.
	ElemKind ElementKind
	// LenOf evaluates the field's element count against the live record;
	// it is bound to a sibling field at descriptor-build time, by name for
	// reflectdesc and cdumpgen, by raw byte offset for yamldesc (see
	// DESIGN.md).
	LenOf func(record unsafe.Pointer) int

	// Dynamic is set for KindDynamic (and for Array elements of ElemKind
	// ElemDynamic).
	Dynamic DynamicCodec
	// PointerDepth is 1 or 2, and is meaningful only for KindDynamic
	// fields and for Array elements of ElemKind ElemDynamic.
	PointerDepth int
}

// FieldList is the ordered sequence of a record's fields, in declaration
// order (so that offsets line up with the compiler's struct layout).
type FieldList []FieldDescriptor

// Record is implemented by any Go type with an associated [RecordType].
// Implementations are produced by reflection (internal/reflectdesc), by
// cmd/cdumpgen, or by hand against a YAML descriptor (internal/yamldesc).
type Record interface {
	CDumpType() *RecordType
}

// alignmentType reports which size/alignment governs padding before an
// Array field's shallow region: a pointer's own size/alignment when the
// element kind stores a pointer (Reference, CString, Dynamic), otherwise
// the element type's own size/alignment for an inline Plain element.
func (f *FieldDescriptor) alignmentType() (size, align uintptr) {
	switch f.ElemKind {
	case ElemReference, ElemCString, ElemDynamic:
		return uintptr(xmem.PointerSize), uintptr(xmem.PointerSize)
	default:
		return f.PointeeSize, f.PointeeAlign
	}
}
