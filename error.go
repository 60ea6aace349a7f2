package cdump

import "fmt"

// DescriptorError is returned when a [FieldList] fails descriptor-time
// validation. These are build-time errors, surfaced before any byte is
// written. They name the record and field below and carry no source
// position (a cmd/cdumpgen descriptor runs Validate in its generated
// init() and panics with the error).
type DescriptorError struct {
	Record string
	Field  string
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("cdump: %s: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("cdump: %s.%s: %s", e.Record, e.Field, e.Reason)
}

// Validate checks a record type's FieldList for internal consistency,
// returning the first violation found. A Record implementation must not be
// used for Serialize/Deserialize until its RecordType passes Validate;
// reflectdesc and cdumpgen both call this before handing back a
// RecordType.
func Validate(rt *RecordType) error {
	for i := range rt.Fields {
		f := &rt.Fields[i]

		if f.Offset+f.Size > rt.Size {
			return &DescriptorError{rt.Name, f.Name, fmt.Sprintf(
				"offset %d + size %d exceeds record size %d", f.Offset, f.Size, rt.Size)}
		}

		switch f.Kind {
		case KindPlain, KindInlineArray:
			// Shallow-only: covered by the bulk copy, nothing further to
			// validate.

		case KindReference:
			if f.PointerDepthOrDefault() > 1 {
				return &DescriptorError{rt.Name, f.Name,
					"pointer depth > 1 on a bare Reference field (only an Array of pointers may have depth 2)"}
			}

		case KindCString:
			// No further constraints; length is discovered at serialize
			// time via strlen.

		case KindArray:
			if f.LenOf == nil {
				return &DescriptorError{rt.Name, f.Name, "Array field has no len_expr bound"}
			}
			switch f.ElemKind {
			case ElemPlain, ElemCString:
				// Fine unconditionally.
			case ElemReference:
				if f.PointeeType == nil {
					return &DescriptorError{rt.Name, f.Name,
						"Array of Reference elements must point to records: array-of-pointer-to-primitive is a non-goal"}
				}
			case ElemDynamic:
				if f.Dynamic == nil {
					return &DescriptorError{rt.Name, f.Name, "Array of Dynamic elements has no hooks bound"}
				}
				if f.PointerDepth == 1 {
					return &DescriptorError{rt.Name, f.Name,
						"Array of Dynamic(depth 1) is ambiguous: length semantics are undefined"}
				}
				if f.PointerDepth != 2 {
					return &DescriptorError{rt.Name, f.Name, "Array of Dynamic elements must have pointer depth 2"}
				}
			default:
				return &DescriptorError{rt.Name, f.Name, "unknown Array element kind"}
			}

		case KindDynamic:
			if f.Dynamic == nil {
				return &DescriptorError{rt.Name, f.Name, "Dynamic field is missing one or more of its three hooks"}
			}
			if f.PointerDepth != 1 {
				return &DescriptorError{rt.Name, f.Name,
					"a bare Dynamic field must have pointer depth 1 (depth 2 is only legal inside an Array)"}
			}

		default:
			return &DescriptorError{rt.Name, f.Name, "unknown field kind"}
		}
	}
	return nil
}

// PointerDepthOrDefault returns f.PointerDepth, defaulting to 1 for field
// kinds that don't set it explicitly (only Dynamic fields carry a
// meaningful depth > 1, modulo arrays of pointers which are a property of
// the Array field, not of PointerDepth).
func (f *FieldDescriptor) PointerDepthOrDefault() int {
	if f.Kind == KindDynamic && f.PointerDepth != 0 {
		return f.PointerDepth
	}
	return 1
}
