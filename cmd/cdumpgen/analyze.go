package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/cdump-go/cdump/internal/cdesctag"
	"golang.org/x/tools/go/packages"
)

// structInfo is the generator's intermediate representation of one
// annotated struct: everything the template needs to emit a FieldList
// literal, already fully resolved (no further type-checking at template
// time).
type structInfo struct {
	Name   string
	Fields []*fieldInfo

	astStruct *ast.StructType
	fset      *token.FileSet
}

type fieldKind int

const (
	fkPlain fieldKind = iota
	fkInlineArray
	fkReference
	fkCString
	fkDynamic
	fkArray
)

type fieldInfo struct {
	Name   string
	Offset int64
	Size   int64
	Kind   fieldKind

	// reference / array(elem=ref)
	PointeeName string // same-package struct name, or "" for a primitive pointee
	PointeeSize int64
	PointeeAlign int64

	// dynamic / array(elem=dynamic)
	Codec        string
	PointerDepth int

	// array
	ElemKind  fieldKind // fkPlain, fkReference, fkCString or fkDynamic
	LenField  string
}

// analyzeStruct pairs up the AST field list (for struct tags) with the
// type-checked field list (for offsets and types) and classifies each
// field per the cdump tag grammar.
func analyzeStruct(pkg *packages.Package, name string, ast0 *ast.StructType, st *types.Struct) (*structInfo, error) {
	sizes := pkg.TypesSizes

	vars := make([]*types.Var, st.NumFields())
	for i := range vars {
		vars[i] = st.Field(i)
	}
	offsets := sizes.Offsetsof(vars)

	astFlat := flattenFields(ast0.Fields.List)
	if len(astFlat) != len(vars) {
		return nil, fmt.Errorf("%s: AST field count %d does not match type field count %d", name, len(astFlat), len(vars))
	}

	si := &structInfo{Name: name}
	for i, v := range vars {
		tag := fieldTag(astFlat[i])
		fi, err := classifyField(pkg, v, tag, offsets[i], sizes.Sizeof(v.Type()))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, v.Name(), err)
		}
		si.Fields = append(si.Fields, fi)
	}
	return si, nil
}

func flattenFields(list []*ast.Field) []*ast.Field {
	var out []*ast.Field
	for _, f := range list {
		n := len(f.Names)
		if n == 0 {
			n = 1 // embedded field
		}
		for i := 0; i < n; i++ {
			out = append(out, f)
		}
	}
	return out
}

func classifyField(pkg *packages.Package, v *types.Var, tag string, offset, size int64) (*fieldInfo, error) {
	fi := &fieldInfo{Name: v.Name(), Offset: offset, Size: size}

	if tag == "" {
		if _, isArray := v.Type().Underlying().(*types.Array); isArray {
			fi.Kind = fkInlineArray
		} else {
			fi.Kind = fkPlain
		}
		return fi, nil
	}

	verb, opts := cdesctag.Parse(tag)

	switch verb {
	case "ref":
		ptr, ok := v.Type().(*types.Pointer)
		if !ok {
			return nil, fmt.Errorf(`tag "ref" requires a pointer field, got %s`, v.Type())
		}
		fi.Kind = fkReference
		fi.PointeeSize = pkg.TypesSizes.Sizeof(ptr.Elem())
		fi.PointeeAlign = pkg.TypesSizes.Alignof(ptr.Elem())
		fi.PointeeName = samePackageStructName(pkg, ptr.Elem())

	case "cstring":
		if !isBytePointer(v.Type()) {
			return nil, fmt.Errorf(`tag "cstring" requires a *byte field, got %s`, v.Type())
		}
		fi.Kind = fkCString

	case "dynamic":
		codec, ok := opts["codec"]
		if !ok {
			return nil, fmt.Errorf(`tag "dynamic" requires codec=name`)
		}
		fi.Kind = fkDynamic
		fi.PointerDepth = 1
		fi.Codec = codec

	case "array":
		ptr, ok := v.Type().(*types.Pointer)
		if !ok {
			return nil, fmt.Errorf(`tag "array" requires a pointer field, got %s`, v.Type())
		}
		lenField, ok := opts["len"]
		if !ok {
			return nil, fmt.Errorf(`tag "array" requires len=FieldName`)
		}
		fi.Kind = fkArray
		fi.LenField = lenField
		if err := classifyArrayElem(pkg, fi, ptr.Elem(), opts); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown cdump tag verb %q", verb)
	}

	return fi, nil
}

func classifyArrayElem(pkg *packages.Package, fi *fieldInfo, elem types.Type, opts map[string]string) error {
	switch opts["elem"] {
	case "", "plain":
		fi.ElemKind = fkPlain
		fi.PointeeSize = pkg.TypesSizes.Sizeof(elem)
		fi.PointeeAlign = pkg.TypesSizes.Alignof(elem)
		fi.PointeeName = samePackageStructName(pkg, elem)

	case "ref":
		ptr, ok := elem.(*types.Pointer)
		if !ok {
			return fmt.Errorf("array elem=ref requires field type **T, got *%s", elem)
		}
		fi.ElemKind = fkReference
		fi.PointeeSize = pkg.TypesSizes.Sizeof(ptr)
		fi.PointeeAlign = pkg.TypesSizes.Alignof(ptr)
		fi.PointeeName = samePackageStructName(pkg, ptr.Elem())

	case "cstring":
		if !isBytePointer(elem) {
			return fmt.Errorf("array elem=cstring requires field type **byte, got *%s", elem)
		}
		fi.ElemKind = fkCString
		fi.PointeeSize = pkg.TypesSizes.Sizeof(elem)
		fi.PointeeAlign = pkg.TypesSizes.Alignof(elem)

	case "dynamic":
		codec, ok := opts["codec"]
		if !ok {
			return fmt.Errorf("array elem=dynamic requires codec=name")
		}
		fi.ElemKind = fkDynamic
		fi.Codec = codec
		fi.PointerDepth = 2
		fi.PointeeSize = pkg.TypesSizes.Sizeof(elem)
		fi.PointeeAlign = pkg.TypesSizes.Alignof(elem)

	default:
		return fmt.Errorf("unknown array elem kind %q", opts["elem"])
	}
	return nil
}

func isBytePointer(t types.Type) bool {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	basic, ok := ptr.Elem().Underlying().(*types.Basic)
	return ok && basic.Kind() == types.Uint8
}

// samePackageStructName returns t's struct name if t is a named struct type
// declared in pkg itself, for emitting a same-package descriptor reference.
// For a cross-package pointee it returns "", since this generator has no
// way to import another package's generated cdumpType* variable by name;
// the generated descriptor then carries no PointeeType for that field.
func samePackageStructName(pkg *packages.Package, t types.Type) string {
	named, ok := t.(*types.Named)
	if !ok {
		return ""
	}
	if named.Obj().Pkg() != pkg.Types {
		return ""
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return ""
	}
	return named.Obj().Name()
}
