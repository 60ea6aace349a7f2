package cdump_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	deepcopy "github.com/tiendc/go-deepcopy"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/reflectdesc"
)

func mustCString(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// Scenario 1: flat shallow record.
type flatFoo struct {
	A uint32
	B float64
}

var flatFooType = reflectdesc.MustBuild(reflect.TypeOf(flatFoo{}))

func (v flatFoo) CDumpType() *cdump.RecordType { return flatFooType }

func TestFlatShallow(t *testing.T) {
	t.Parallel()

	src := &flatFoo{A: 1984, B: 2024.06}
	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)

	// Writing starts at offset 0, already aligned to any power of two, and
	// a Go struct's own size is always a multiple of its alignment, so the
	// buffer holds exactly sizeof(flatFoo) bytes with no extra padding.
	require.Equal(t, int(flatFooType.Size), w.Len())

	r := w.IntoReader()
	got := cdump.DeserializeValue[flatFoo](r)
	require.Equal(t, *src, got)
}

// Scenario 2: a CString leaf.
type cstringFoo struct {
	A    int32
	Text *byte `cdump:"cstring"`
}

var cstringFooType = reflectdesc.MustBuild(reflect.TypeOf(cstringFoo{}))

func (v cstringFoo) CDumpType() *cdump.RecordType { return cstringFooType }

func TestCStringLeaf(t *testing.T) {
	t.Parallel()

	src := &cstringFoo{A: 1984, Text: mustCString("Hello world!")}
	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)

	r := w.IntoReader()
	got := cdump.DeserializeValue[cstringFoo](r)

	require.Equal(t, int32(1984), got.A)
	require.Equal(t, "Hello world!", goString(got.Text))
	require.NotEqual(t, uintptr(unsafe.Pointer(src.Text)), uintptr(unsafe.Pointer(got.Text)))
}

// Scenario 3: an array of records, each with a CString field.
type arrBar struct {
	A float64
	B *byte `cdump:"cstring"`
	C int32
}

type arrFoo struct {
	Len int32
	Arr *arrBar `cdump:"array,len=Len"`
	C   float64
}

var arrFooType = reflectdesc.MustBuild(reflect.TypeOf(arrFoo{}))

func (v arrFoo) CDumpType() *cdump.RecordType { return arrFooType }

func TestArrayOfRecordsWithCString(t *testing.T) {
	t.Parallel()

	elems := []arrBar{
		{A: 19.84, B: mustCString("what"), C: 1864},
		{A: 20.77, B: mustCString("11"), C: 7864},
	}
	src := &arrFoo{Len: int32(len(elems)), Arr: &elems[0], C: 2024.07}

	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)
	r := w.IntoReader()
	got := cdump.DeserializeValue[arrFoo](r)

	require.Equal(t, src.Len, got.Len)
	require.Equal(t, src.C, got.C)
	require.NotEqual(t, uintptr(unsafe.Pointer(src.Arr)), uintptr(unsafe.Pointer(got.Arr)))

	gotElems := unsafe.Slice(got.Arr, int(got.Len))
	for i := range elems {
		require.Equal(t, elems[i].A, gotElems[i].A)
		require.Equal(t, elems[i].C, gotElems[i].C)
		require.Equal(t, goString(elems[i].B), goString(gotElems[i].B))
	}
}

// A zero-length array as a record's last written field, with the record
// itself last in the buffer, puts the array's base pointer exactly at the
// buffer's one-past-the-end position.
func TestArrayZeroLengthAtBufferTail(t *testing.T) {
	t.Parallel()

	var dummy arrBar
	src := &arrFoo{Len: 0, Arr: &dummy, C: 1.5}

	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)

	got := cdump.DeserializeValue[arrFoo](w.IntoReader())
	require.Equal(t, int32(0), got.Len)
	require.Equal(t, src.C, got.C)

	var dst arrFoo
	require.NoError(t, deepcopy.Copy(&dst, src))
	cdump.DeserializeTo(w.IntoReader(), &dst)
	require.Equal(t, int32(0), dst.Len)
	require.Equal(t, src.C, dst.C)
}

// Scenario 4: an array of pointers to records.
type ptrBar struct {
	X int32
	Y int32
}

type ptrFoo struct {
	Len  int32
	Data **ptrBar `cdump:"array,len=Len,elem=ref"`
}

var ptrFooType = reflectdesc.MustBuild(reflect.TypeOf(ptrFoo{}))

func (v ptrFoo) CDumpType() *cdump.RecordType { return ptrFooType }

func TestArrayOfPointersToRecords(t *testing.T) {
	t.Parallel()

	bar1 := &ptrBar{X: 1, Y: 2}
	bar2 := &ptrBar{X: 3, Y: 4}
	ptrs := []*ptrBar{bar1, bar2}
	src := &ptrFoo{Len: 2, Data: &ptrs[0]}

	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)
	r := w.IntoReader()
	got := cdump.DeserializeValue[ptrFoo](r)

	gotPtrs := unsafe.Slice(got.Data, int(got.Len))
	require.NotEqual(t, uintptr(unsafe.Pointer(gotPtrs[0])), uintptr(unsafe.Pointer(bar1)))
	require.NotEqual(t, uintptr(unsafe.Pointer(gotPtrs[1])), uintptr(unsafe.Pointer(bar2)))
	require.Equal(t, *bar1, *gotPtrs[0])
	require.Equal(t, *bar2, *gotPtrs[1])
}

// Scenario 6: deserialize_to against a pre-allocated mirror tree.
type modeCLeaf struct {
	V int32
}

type modeCFoo struct {
	A     int32
	Child *modeCLeaf `cdump:"ref"`
}

var (
	modeCLeafType = reflectdesc.MustBuild(reflect.TypeOf(modeCLeaf{}))
	modeCFooType  = reflectdesc.MustBuild(reflect.TypeOf(modeCFoo{}))
)

func (v modeCLeaf) CDumpType() *cdump.RecordType { return modeCLeafType }
func (v modeCFoo) CDumpType() *cdump.RecordType  { return modeCFooType }

func TestModeCRefresh(t *testing.T) {
	t.Parallel()

	src := &modeCFoo{A: 1984, Child: &modeCLeaf{V: 7}}

	var dst modeCFoo
	require.NoError(t, deepcopy.Copy(&dst, src))
	dst.A = 0
	dst.Child.V = 0
	preAllocatedChild := dst.Child

	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)
	r := w.IntoReader()
	cdump.DeserializeTo(r, &dst)

	require.Equal(t, int32(1984), dst.A)
	require.Equal(t, int32(7), dst.Child.V)
	require.Same(t, preAllocatedChild, dst.Child)
}
