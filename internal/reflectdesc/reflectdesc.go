// Package reflectdesc builds a cdump.FieldList for an ordinary Go struct
// type via reflect and a `cdump:"..."` struct tag: a static description
// (a Go struct's own field tags) turned into the table the codec walks
// at run time.
package reflectdesc

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"unsafe"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/cdesctag"
	"github.com/cdump-go/cdump/internal/dyncodec"
	"github.com/cdump-go/cdump/internal/xmem"
)

// RegisterDynamicCodec makes codec available to fields tagged
// `cdump:"dynamic,codec=name"` (or `cdump:"array,...,elem=dynamic,codec=name"`).
// It is normally called from an init() alongside the struct it serves.
func RegisterDynamicCodec(name string, codec cdump.DynamicCodec) {
	dyncodec.Register(name, codec)
}

var (
	typeCacheMu sync.Mutex
	typeCache   = map[reflect.Type]*cdump.RecordType{}
)

// Build returns the RecordType for struct type t, building and caching it
// on first use. t may be a struct type or a pointer to one.
//
// The cache entry for t is reserved before its fields are analyzed, so a
// self-referential struct (a field pointing back to its own type, as in a
// linked list node) does not recurse forever: the recursive call sees the
// reserved, not-yet-populated entry and returns it immediately, and the
// outer call fills in Fields once the recursion has unwound.
func Build(t reflect.Type) (*cdump.RecordType, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflectdesc: %s is not a struct", t)
	}

	typeCacheMu.Lock()
	if rt, ok := typeCache[t]; ok {
		typeCacheMu.Unlock()
		return rt, nil
	}
	rt := &cdump.RecordType{Name: t.Name(), Size: t.Size(), Align: uintptr(t.Align())}
	typeCache[t] = rt
	typeCacheMu.Unlock()

	fields, err := buildFields(t)
	if err != nil {
		return nil, err
	}
	rt.Fields = fields
	if err := cdump.Validate(rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// MustBuild is Build, panicking on error. Intended for package-level var
// initializers: `var fooType = reflectdesc.MustBuild(reflect.TypeOf(Foo{}))`.
func MustBuild(t reflect.Type) *cdump.RecordType {
	rt, err := Build(t)
	if err != nil {
		panic(err)
	}
	return rt
}

func buildFields(t reflect.Type) (cdump.FieldList, error) {
	var fields cdump.FieldList
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fd, err := buildField(t, sf, sf.Tag.Get("cdump"))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		fields = append(fields, *fd)
	}
	return fields, nil
}

// fieldPointeeRecordType reports the RecordType of t if t is itself a
// record (a struct), or nil if it's a primitive pointee.
func fieldPointeeRecordType(t reflect.Type) (*cdump.RecordType, error) {
	if t.Kind() != reflect.Struct {
		return nil, nil
	}
	return Build(t)
}

func buildField(owner reflect.Type, sf reflect.StructField, tag string) (*cdump.FieldDescriptor, error) {
	fd := &cdump.FieldDescriptor{
		Name:   sf.Name,
		Offset: sf.Offset,
		Size:   sf.Type.Size(),
	}

	if tag == "" {
		if sf.Type.Kind() == reflect.Array {
			fd.Kind = cdump.KindInlineArray
		} else {
			fd.Kind = cdump.KindPlain
		}
		return fd, nil
	}

	verb, opts := cdesctag.Parse(tag)

	switch verb {
	case "ref":
		if sf.Type.Kind() != reflect.Pointer {
			return nil, fmt.Errorf("tag %q requires a pointer field, got %s", tag, sf.Type)
		}
		elem := sf.Type.Elem()
		fd.Kind = cdump.KindReference
		fd.PointeeSize = elem.Size()
		fd.PointeeAlign = uintptr(elem.Align())
		rt, err := fieldPointeeRecordType(elem)
		if err != nil {
			return nil, err
		}
		fd.PointeeType = rt

	case "cstring":
		if sf.Type.Kind() != reflect.Pointer || sf.Type.Elem().Kind() != reflect.Uint8 {
			return nil, fmt.Errorf("tag %q requires a *byte field, got %s", tag, sf.Type)
		}
		fd.Kind = cdump.KindCString

	case "dynamic":
		if sf.Type.Kind() != reflect.UnsafePointer && sf.Type.Kind() != reflect.Pointer {
			return nil, fmt.Errorf("tag %q requires a pointer-shaped field, got %s", tag, sf.Type)
		}
		codec, ok := opts["codec"]
		if !ok {
			return nil, fmt.Errorf("tag %q requires codec=name", tag)
		}
		c, ok := dyncodec.Lookup(codec)
		if !ok {
			return nil, fmt.Errorf("dynamic codec %q is not registered", codec)
		}
		fd.Kind = cdump.KindDynamic
		fd.PointerDepth = 1
		fd.Dynamic = c

	case "array":
		if sf.Type.Kind() != reflect.Pointer {
			return nil, fmt.Errorf("tag %q requires a pointer field, got %s", tag, sf.Type)
		}
		lenField, ok := opts["len"]
		if !ok {
			return nil, fmt.Errorf("tag %q requires len=FieldName", tag)
		}
		lenOf, err := lenOfField(owner, lenField)
		if err != nil {
			return nil, err
		}
		fd.Kind = cdump.KindArray
		fd.LenOf = lenOf
		if err := buildArrayElem(fd, sf.Type.Elem(), opts); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown cdump tag verb %q", verb)
	}

	return fd, nil
}

func buildArrayElem(fd *cdump.FieldDescriptor, elem reflect.Type, opts map[string]string) error {
	switch opts["elem"] {
	case "", "plain":
		fd.ElemKind = cdump.ElemPlain
		fd.PointeeSize = elem.Size()
		fd.PointeeAlign = uintptr(elem.Align())
		rt, err := fieldPointeeRecordType(elem)
		if err != nil {
			return err
		}
		fd.PointeeType = rt

	case "ref":
		if elem.Kind() != reflect.Pointer {
			return fmt.Errorf("array elem=ref requires field type **T, got *%s", elem)
		}
		fd.ElemKind = cdump.ElemReference
		fd.PointeeSize = uintptr(xmem.PointerSize)
		fd.PointeeAlign = uintptr(xmem.PointerSize)
		rt, err := fieldPointeeRecordType(elem.Elem())
		if err != nil {
			return err
		}
		fd.PointeeType = rt

	case "cstring":
		if elem.Kind() != reflect.Pointer || elem.Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("array elem=cstring requires field type **byte, got *%s", elem)
		}
		fd.ElemKind = cdump.ElemCString
		fd.PointeeSize = uintptr(xmem.PointerSize)
		fd.PointeeAlign = uintptr(xmem.PointerSize)

	case "dynamic":
		codec, ok := opts["codec"]
		if !ok {
			return fmt.Errorf("array elem=dynamic requires codec=name")
		}
		c, ok := dyncodec.Lookup(codec)
		if !ok {
			return fmt.Errorf("dynamic codec %q is not registered", codec)
		}
		depth := 2
		if d, ok := opts["depth"]; ok {
			n, err := strconv.Atoi(d)
			if err != nil {
				return fmt.Errorf("bad depth %q: %w", d, err)
			}
			depth = n
		}
		fd.ElemKind = cdump.ElemDynamic
		fd.PointeeSize = uintptr(xmem.PointerSize)
		fd.PointeeAlign = uintptr(xmem.PointerSize)
		fd.PointerDepth = depth
		fd.Dynamic = c

	default:
		return fmt.Errorf("unknown array elem kind %q", opts["elem"])
	}
	return nil
}

// lenOfField binds a KindArray field's LenOf to a named sibling integer
// field of owner, resolving the len_expr Open Question (DESIGN.md) as
// "names a sibling field" rather than an arbitrary expression.
func lenOfField(owner reflect.Type, name string) (func(rec unsafe.Pointer) int, error) {
	sf, ok := owner.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("len field %q not found on %s", name, owner)
	}
	offset := sf.Offset
	size := sf.Type.Size()

	switch sf.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(rec unsafe.Pointer) int {
			p := unsafe.Add(rec, offset)
			switch size {
			case 1:
				return int(*(*int8)(p))
			case 2:
				return int(*(*int16)(p))
			case 4:
				return int(*(*int32)(p))
			default:
				return int(*(*int64)(p))
			}
		}, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(rec unsafe.Pointer) int {
			p := unsafe.Add(rec, offset)
			switch size {
			case 1:
				return int(*(*uint8)(p))
			case 2:
				return int(*(*uint16)(p))
			case 4:
				return int(*(*uint32)(p))
			default:
				return int(*(*uint64)(p))
			}
		}, nil

	default:
		return nil, fmt.Errorf("len field %q has non-integer type %s", name, sf.Type)
	}
}
