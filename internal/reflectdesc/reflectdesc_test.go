package reflectdesc_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/reflectdesc"
)

type rdLeaf struct {
	V int32
}

type rdNode struct {
	Text *byte   `cdump:"cstring"`
	Next *rdNode `cdump:"ref"`
	Leaf *rdLeaf `cdump:"ref"`
}

func TestBuildSelfReferential(t *testing.T) {
	t.Parallel()

	rt, err := reflectdesc.Build(reflect.TypeOf(rdNode{}))
	require.NoError(t, err)
	require.Equal(t, "rdNode", rt.Name)
	require.Equal(t, uintptr(unsafe.Sizeof(rdNode{})), rt.Size)

	var next *cdump.FieldDescriptor
	for i := range rt.Fields {
		if rt.Fields[i].Name == "Next" {
			next = &rt.Fields[i]
		}
	}
	require.NotNil(t, next)
	require.Equal(t, cdump.KindReference, next.Kind)
	require.Same(t, rt, next.PointeeType)
}

func TestBuildCachesPerType(t *testing.T) {
	t.Parallel()

	a, err := reflectdesc.Build(reflect.TypeOf(rdLeaf{}))
	require.NoError(t, err)
	b, err := reflectdesc.Build(reflect.TypeOf(rdLeaf{}))
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestBuildRejectsNonStruct(t *testing.T) {
	t.Parallel()

	_, err := reflectdesc.Build(reflect.TypeOf(42))
	require.Error(t, err)
}
