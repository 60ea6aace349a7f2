package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/reflectdesc"
)

const sampleSrc = `package sample

//cdump:generate
type Node struct {
	Value int32
	Text  *byte ` + "`cdump:\"cstring\"`" + `
	Next  *Node ` + "`cdump:\"ref\"`" + `
}
`

// loadSamplePackage type-checks sampleSrc in isolation (no packages.Load,
// no module on disk) and wraps the result in a packages.Package, the same
// shape run() hands to collectStructs.
func loadSamplePackage(t *testing.T) *packages.Package {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "sample.go", sampleSrc, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{Defs: make(map[*ast.Ident]types.Object)}
	conf := types.Config{}
	tpkg, err := conf.Check("sample", fset, []*ast.File{file}, info)
	require.NoError(t, err)

	return &packages.Package{
		Name:            "sample",
		PkgPath:         "sample",
		Fset:            fset,
		Syntax:          []*ast.File{file},
		TypesInfo:       info,
		Types:           tpkg,
		TypesSizes:      types.SizesFor("gc", "amd64"),
		CompiledGoFiles: []string{"sample.go"},
	}
}

// reflectNode mirrors sample.Node field-for-field, so reflectdesc and
// cdumpgen's analyzer can be compared against each other directly.
type reflectNode struct {
	Value int32
	Text  *byte        `cdump:"cstring"`
	Next  *reflectNode `cdump:"ref"`
}

func TestAnalyzeAgreesWithReflectdesc(t *testing.T) {
	t.Parallel()

	pkg := loadSamplePackage(t)
	structs, err := collectStructs(pkg)
	require.NoError(t, err)
	require.Len(t, structs, 1)

	node := structs[0]
	require.Equal(t, "Node", node.Name)

	want, err := reflectdesc.Build(reflect.TypeOf(reflectNode{}))
	require.NoError(t, err)
	require.Len(t, node.Fields, len(want.Fields))

	for i, fi := range node.Fields {
		wf := want.Fields[i]
		require.Equal(t, fi.Name, wf.Name, "field %d name", i)
		require.Equal(t, fi.Offset, int64(wf.Offset), "field %q offset", fi.Name)
		require.Equal(t, fi.Size, int64(wf.Size), "field %q size", fi.Name)

		switch wf.Kind {
		case cdump.KindPlain:
			require.Equal(t, fkPlain, fi.Kind, fi.Name)
		case cdump.KindCString:
			require.Equal(t, fkCString, fi.Kind, fi.Name)
		case cdump.KindReference:
			require.Equal(t, fkReference, fi.Kind, fi.Name)
			require.Equal(t, "Node", fi.PointeeName)
		default:
			t.Fatalf("unexpected reflectdesc kind %v for field %q", wf.Kind, fi.Name)
		}
	}
}

func TestCollectStructsSkipsUnannotatedTypes(t *testing.T) {
	t.Parallel()

	fset := token.NewFileSet()
	src := `package sample

type Plain struct {
	X int32
}
`
	file, err := parser.ParseFile(fset, "plain.go", src, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{Defs: make(map[*ast.Ident]types.Object)}
	tpkg, err := (types.Config{}).Check("sample", fset, []*ast.File{file}, info)
	require.NoError(t, err)

	pkg := &packages.Package{
		Name: "sample", PkgPath: "sample", Fset: fset,
		Syntax: []*ast.File{file}, TypesInfo: info, Types: tpkg,
		TypesSizes: types.SizesFor("gc", "amd64"), CompiledGoFiles: []string{"plain.go"},
	}

	structs, err := collectStructs(pkg)
	require.NoError(t, err)
	require.Empty(t, structs)
}
