package cdump_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/cdump-go/cdump"
)

type stubCodec struct{}

func (stubCodec) Serialize(*cdump.Writer, unsafe.Pointer) int     { return 0 }
func (stubCodec) Deserialize(*cdump.Reader) (unsafe.Pointer, int) { return nil, 0 }
func (stubCodec) SizeOf(unsafe.Pointer) int                       { return 0 }

func TestValidateRejectsIllegalShapes(t *testing.T) {
	t.Parallel()

	base := func() cdump.RecordType {
		return cdump.RecordType{Name: "Bad", Size: 16, Align: 8}
	}

	tests := []struct {
		name   string
		fields cdump.FieldList
	}{
		{
			name: "field overruns record size",
			fields: cdump.FieldList{
				{Name: "X", Offset: 8, Size: 16, Kind: cdump.KindPlain},
			},
		},
		{
			name: "bare Dynamic field missing hooks",
			fields: cdump.FieldList{
				{Name: "D", Offset: 0, Size: 8, Kind: cdump.KindDynamic, PointerDepth: 1},
			},
		},
		{
			name: "bare Dynamic field at depth 2",
			fields: cdump.FieldList{
				{Name: "D", Offset: 0, Size: 8, Kind: cdump.KindDynamic, PointerDepth: 2, Dynamic: stubCodec{}},
			},
		},
		{
			name: "Array of Dynamic at depth 1 is ambiguous",
			fields: cdump.FieldList{
				{
					Name: "Arr", Offset: 0, Size: 8, Kind: cdump.KindArray,
					LenOf: func(unsafe.Pointer) int { return 0 },
					ElemKind: cdump.ElemDynamic, PointerDepth: 1, Dynamic: stubCodec{},
				},
			},
		},
		{
			name: "Array of pointer-to-primitive has no element descriptor",
			fields: cdump.FieldList{
				{
					Name: "Arr", Offset: 0, Size: 8, Kind: cdump.KindArray,
					LenOf: func(unsafe.Pointer) int { return 0 },
					ElemKind: cdump.ElemReference, PointeeType: nil,
				},
			},
		},
		{
			name: "Array field has no len_expr bound",
			fields: cdump.FieldList{
				{Name: "Arr", Offset: 0, Size: 8, Kind: cdump.KindArray, ElemKind: cdump.ElemPlain},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rt := base()
			rt.Fields = tt.fields
			err := cdump.Validate(&rt)
			require.Error(t, err)
			var descErr *cdump.DescriptorError
			require.ErrorAs(t, err, &descErr)
		})
	}
}
