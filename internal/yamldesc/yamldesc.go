// Package yamldesc loads hand-written cdump.RecordType descriptors from
// YAML documents, for record types reflect cannot see into (cgo types,
// types whose layout is only known from a vendored C header).
//
// Unlike reflectdesc, a YAML document gives byte offsets and sizes
// directly rather than deriving them from a Go struct, so it carries a
// little more per-field detail (notably the length field's raw offset,
// since there is no Go struct to look a named sibling field up in).
package yamldesc

import (
	"fmt"
	"sync"
	"unsafe"

	"gopkg.in/yaml.v3"

	"github.com/cdump-go/cdump"
	"github.com/cdump-go/cdump/internal/dyncodec"
)

type doc struct {
	Name   string     `yaml:"name"`
	Size   uintptr    `yaml:"size"`
	Align  uintptr    `yaml:"align"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name   string  `yaml:"name"`
	Offset uintptr `yaml:"offset"`
	Size   uintptr `yaml:"size"`
	Kind   string  `yaml:"kind"`

	// Reference / Array(elem=plain) use all three; Array(elem=ref) uses
	// only pointee. Array(elem=cstring, elem=dynamic) ignores them.
	Pointee      string  `yaml:"pointee,omitempty"`
	PointeeSize  uintptr `yaml:"pointee_size,omitempty"`
	PointeeAlign uintptr `yaml:"pointee_align,omitempty"`

	// Array only
	Elem      string  `yaml:"elem,omitempty"`
	LenOffset uintptr `yaml:"len_offset,omitempty"`
	LenSize   uintptr `yaml:"len_size,omitempty"`
	LenSigned bool    `yaml:"len_signed,omitempty"`

	// Dynamic (bare or array element)
	Codec string `yaml:"codec,omitempty"`
	Depth int    `yaml:"depth,omitempty"`
}

var (
	mu           sync.Mutex
	typeRegistry = map[string]*cdump.RecordType{}
	built        = map[string]bool{}
)

// RegisterDynamicCodec makes codec available to fields with
// `codec: name` in a YAML document.
func RegisterDynamicCodec(name string, codec cdump.DynamicCodec) {
	dyncodec.Register(name, codec)
}

// resolveOrReserve returns the RecordType registered under name,
// creating an empty placeholder if this is the first document to
// mention it — either because it is a forward reference to a document
// not yet loaded, or because it is the type's own self-reference.
func resolveOrReserve(name string) *cdump.RecordType {
	mu.Lock()
	defer mu.Unlock()
	if rt, ok := typeRegistry[name]; ok {
		return rt
	}
	rt := &cdump.RecordType{Name: name}
	typeRegistry[name] = rt
	return rt
}

// Load parses one YAML record descriptor and returns its RecordType,
// registering it by name so other documents loaded later in the same
// process can reference it as a Pointee.
func Load(data []byte) (*cdump.RecordType, error) {
	var d doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("yamldesc: %w", err)
	}
	return build(&d)
}

// LoadAll parses a set of named YAML documents, in map order undefined,
// resolving Pointee references across the set.
func LoadAll(docs map[string][]byte) (map[string]*cdump.RecordType, error) {
	out := make(map[string]*cdump.RecordType, len(docs))
	for name, data := range docs {
		rt, err := Load(data)
		if err != nil {
			return nil, err
		}
		out[name] = rt
	}
	return out, nil
}

func build(d *doc) (*cdump.RecordType, error) {
	mu.Lock()
	if built[d.Name] {
		rt := typeRegistry[d.Name]
		mu.Unlock()
		return rt, nil
	}
	mu.Unlock()

	rt := resolveOrReserve(d.Name)
	rt.Size = d.Size
	rt.Align = d.Align

	fields := make(cdump.FieldList, 0, len(d.Fields))
	for i := range d.Fields {
		fd, err := buildField(&d.Fields[i])
		if err != nil {
			return nil, fmt.Errorf("yamldesc: %s.%s: %w", d.Name, d.Fields[i].Name, err)
		}
		fields = append(fields, *fd)
	}
	rt.Fields = fields

	if err := cdump.Validate(rt); err != nil {
		return nil, err
	}

	mu.Lock()
	built[d.Name] = true
	mu.Unlock()
	return rt, nil
}

func buildField(f *fieldDoc) (*cdump.FieldDescriptor, error) {
	fd := &cdump.FieldDescriptor{Name: f.Name, Offset: f.Offset, Size: f.Size}

	switch f.Kind {
	case "plain":
		fd.Kind = cdump.KindPlain

	case "inline_array":
		fd.Kind = cdump.KindInlineArray

	case "reference":
		fd.Kind = cdump.KindReference
		fd.PointeeSize = f.PointeeSize
		fd.PointeeAlign = f.PointeeAlign
		if f.Pointee != "" {
			fd.PointeeType = resolveOrReserve(f.Pointee)
		}

	case "cstring":
		fd.Kind = cdump.KindCString

	case "dynamic":
		fd.Kind = cdump.KindDynamic
		fd.PointerDepth = 1
		c, ok := dyncodec.Lookup(f.Codec)
		if !ok {
			return nil, fmt.Errorf("dynamic codec %q is not registered", f.Codec)
		}
		fd.Dynamic = c

	case "array":
		fd.Kind = cdump.KindArray
		fd.LenOf = rawLenOf(f.LenOffset, f.LenSize, f.LenSigned)
		if err := buildArrayElem(fd, f); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown kind %q", f.Kind)
	}

	return fd, nil
}

func buildArrayElem(fd *cdump.FieldDescriptor, f *fieldDoc) error {
	switch f.Elem {
	case "", "plain":
		fd.ElemKind = cdump.ElemPlain
		fd.PointeeSize = f.PointeeSize
		fd.PointeeAlign = f.PointeeAlign
		if f.Pointee != "" {
			fd.PointeeType = resolveOrReserve(f.Pointee)
		}

	case "ref":
		fd.ElemKind = cdump.ElemReference
		fd.PointeeSize = uintptr(unsafe.Sizeof(uintptr(0)))
		fd.PointeeAlign = fd.PointeeSize
		if f.Pointee == "" {
			return fmt.Errorf("array elem=ref requires pointee")
		}
		fd.PointeeType = resolveOrReserve(f.Pointee)

	case "cstring":
		fd.ElemKind = cdump.ElemCString
		fd.PointeeSize = uintptr(unsafe.Sizeof(uintptr(0)))
		fd.PointeeAlign = fd.PointeeSize

	case "dynamic":
		fd.ElemKind = cdump.ElemDynamic
		fd.PointeeSize = uintptr(unsafe.Sizeof(uintptr(0)))
		fd.PointeeAlign = fd.PointeeSize
		depth := f.Depth
		if depth == 0 {
			depth = 2
		}
		fd.PointerDepth = depth
		c, ok := dyncodec.Lookup(f.Codec)
		if !ok {
			return fmt.Errorf("dynamic codec %q is not registered", f.Codec)
		}
		fd.Dynamic = c

	default:
		return fmt.Errorf("unknown array elem kind %q", f.Elem)
	}
	return nil
}

// rawLenOf reads an integer of the given width and signedness at a fixed
// byte offset within the enclosing record — the YAML equivalent of
// reflectdesc's named-sibling-field lookup, expressed directly in bytes
// since there is no Go struct to resolve a field name against.
func rawLenOf(offset, size uintptr, signed bool) func(rec unsafe.Pointer) int {
	return func(rec unsafe.Pointer) int {
		p := unsafe.Add(rec, offset)
		if signed {
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
		}
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
	}
}
