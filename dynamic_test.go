package cdump_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/cstr"
	"github.com/cdump-go/cdump/internal/reflectdesc"
	"github.com/cdump-go/cdump/internal/xmem"
)

// dynBlob is a payload kind only ever reached through a DynamicCodec, never
// through the field-directed codec itself: a discriminator tag plus a
// trailing CString, laid out the same way the core codec lays out a bare
// CString field (a null-sentinel length slot followed by the bytes), to
// show that a hook is free to reuse the same trick standalone.
type dynBlob struct {
	Ty   int32
	Text *byte
}

type dynBlobCodec struct{}

func (dynBlobCodec) Serialize(w *cdump.Writer, obj unsafe.Pointer) int {
	w.AlignTo(int(unsafe.Alignof(dynBlob{})))
	start := w.Len()
	w.Append(unsafe.Slice((*byte)(obj), int(unsafe.Sizeof(dynBlob{}))))

	b := (*dynBlob)(obj)
	if b.Text != nil {
		n := cstr.Len(unsafe.Pointer(b.Text)) + 1
		xmem.SetIntAt(w.PtrAt(start+int(unsafe.Offsetof(dynBlob{}.Text))), 0, n)
		w.Append(unsafe.Slice(b.Text, n))
	}
	return w.Len() - start
}

func (dynBlobCodec) Deserialize(r *cdump.Reader) (unsafe.Pointer, int) {
	r.AlignTo(int(unsafe.Alignof(dynBlob{})))
	start := r.Cursor()
	p := r.Consume(int(unsafe.Sizeof(dynBlob{})))

	textOffset := unsafe.Offsetof(dynBlob{}.Text)
	if xmem.PointerAt(p, textOffset) != 0 {
		n := xmem.IntAt(p, textOffset)
		text := r.Consume(n)
		xmem.SetPointerAt(p, textOffset, uintptr(text))
	}
	return p, r.Cursor() - start
}

func (dynBlobCodec) SizeOf(obj unsafe.Pointer) int {
	return int(unsafe.Sizeof(dynBlob{}))
}

// The codec must be registered before dynFooType is built, and package-level
// var initializers run before init(), so both happen here.
func init() {
	reflectdesc.RegisterDynamicCodec("dynBlob", dynBlobCodec{})
	dynFooType = reflectdesc.MustBuild(reflect.TypeOf(dynFoo{}))
}

type dynFoo struct {
	A    int32
	D    unsafe.Pointer `cdump:"dynamic,codec=dynBlob"`
	Text *byte          `cdump:"cstring"`
}

var dynFooType *cdump.RecordType

func (v dynFoo) CDumpType() *cdump.RecordType { return dynFooType }

func TestDynamic(t *testing.T) {
	t.Parallel()

	blob := &dynBlob{Ty: 42, Text: mustCString("Never coming back!")}
	src := &dynFoo{A: 1984, D: unsafe.Pointer(blob), Text: mustCString("Hello world!")}

	w := cdump.NewWriter()
	cdump.SerializeValue(w, src)
	r := w.IntoReader()
	got := cdump.DeserializeValue[dynFoo](r)

	require.Equal(t, int32(1984), got.A)
	require.Equal(t, "Hello world!", goString(got.Text))

	gotBlob := (*dynBlob)(got.D)
	require.Equal(t, blob.Ty, gotBlob.Ty)
	require.Equal(t, goString(blob.Text), goString(gotBlob.Text))
	require.NotEqual(t, uintptr(unsafe.Pointer(blob)), uintptr(got.D))
}
