package yamldesc_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/yamldesc"
)

const nodeYAML = `
name: YamlNode
size: 24
align: 8
fields:
  - name: value
    offset: 0
    size: 4
    kind: plain
  - name: text
    offset: 8
    size: 8
    kind: cstring
  - name: next
    offset: 16
    size: 8
    kind: reference
    pointee: YamlNode
    pointee_size: 24
    pointee_align: 8
`

func TestLoadSelfReferential(t *testing.T) {
	t.Parallel()

	rt, err := yamldesc.Load([]byte(nodeYAML))
	require.NoError(t, err)
	require.Equal(t, "YamlNode", rt.Name)
	require.Equal(t, uintptr(24), rt.Size)

	var next *cdump.FieldDescriptor
	for i := range rt.Fields {
		if rt.Fields[i].Name == "next" {
			next = &rt.Fields[i]
		}
	}
	require.NotNil(t, next)
	require.Same(t, rt, next.PointeeType)
}

const arrayYAML = `
name: YamlArrayHolder
size: 16
align: 8
fields:
  - name: len
    offset: 0
    size: 4
    kind: plain
  - name: data
    offset: 8
    size: 8
    kind: array
    elem: ref
    pointee: YamlLeaf
    len_offset: 0
    len_size: 4
    len_signed: true
`

const leafYAML = `
name: YamlLeaf
size: 4
align: 4
fields:
  - name: v
    offset: 0
    size: 4
    kind: plain
`

func TestLoadAllResolvesForwardReference(t *testing.T) {
	t.Parallel()

	out, err := yamldesc.LoadAll(map[string][]byte{
		"holder": []byte(arrayYAML),
		"leaf":   []byte(leafYAML),
	})
	require.NoError(t, err)

	holder := out["holder"]
	require.Equal(t, cdump.ElemReference, holder.Fields[1].ElemKind)
	require.Equal(t, "YamlLeaf", holder.Fields[1].PointeeType.Name)

	rec := make([]byte, 16)
	*(*int32)(unsafe.Pointer(&rec[0])) = 3
	require.Equal(t, 3, holder.Fields[1].LenOf(unsafe.Pointer(&rec[0])))
}
