package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/printer"
	"go/token"
	"strings"
	"text/template"

	strcase "github.com/stoewer/go-strcase"
	deepcopy "github.com/tiendc/go-deepcopy"
)

// render emits one Go source file declaring, for every annotated struct in
// structs, a package-level *cdump.RecordType variable, an init() that fills
// in its Fields (deferred past the var declaration itself so that a
// self-referential or mutually-referential PointeeType can name the sibling
// var without Go rejecting the package as an initialization cycle), and a
// CDumpType method satisfying cdump.Record.
func render(pkgName string, structs []*structInfo) ([]byte, error) {
	data := struct {
		Package      string
		NeedDyncodec bool
		Structs      []*genStruct
	}{Package: pkgName}

	for _, si := range structs {
		gs, err := toGenStruct(si)
		if err != nil {
			return nil, err
		}
		data.Structs = append(data.Structs, gs)
		for _, f := range si.Fields {
			if f.Kind == fkDynamic || f.ElemKind == fkDynamic {
				data.NeedDyncodec = true
			}
		}
	}

	var buf bytes.Buffer
	if err := genTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting generated source: %w", err)
	}
	return out, nil
}

// genStruct is the template-facing projection of a structInfo: every field
// literal is pre-rendered to ready-to-print Go source in toFieldLiteral, so
// the template itself stays a thin layout and doesn't need to know the
// cdump tag grammar a second time.
type genStruct struct {
	Name       string
	VarName    string
	TypeIDName string
	TypeIDVal  string
	ShapeDoc   string
	Fields     []string
}

var fieldKindExpr = map[fieldKind]string{
	fkPlain:       "cdump.KindPlain",
	fkInlineArray: "cdump.KindInlineArray",
	fkReference:   "cdump.KindReference",
	fkCString:     "cdump.KindCString",
	fkDynamic:     "cdump.KindDynamic",
	fkArray:       "cdump.KindArray",
}

var elemKindExpr = map[fieldKind]string{
	fkPlain:     "cdump.ElemPlain",
	fkReference: "cdump.ElemReference",
	fkCString:   "cdump.ElemCString",
	fkDynamic:   "cdump.ElemDynamic",
}

func toGenStruct(si *structInfo) (*genStruct, error) {
	gs := &genStruct{
		Name:       si.Name,
		VarName:    "cdumpType" + si.Name,
		TypeIDName: "TypeID" + si.Name,
		TypeIDVal:  strcase.SnakeCase(si.Name),
	}

	if si.astStruct != nil {
		shape, err := shapeComment(si.fset, si.astStruct)
		if err != nil {
			return nil, fmt.Errorf("%s: rendering shape comment: %w", si.Name, err)
		}
		gs.ShapeDoc = shape
	}

	for _, fi := range si.Fields {
		gs.Fields = append(gs.Fields, toFieldLiteral(si.Name, fi))
	}
	return gs, nil
}

// toFieldLiteral renders one cdump.FieldDescriptor composite literal.
func toFieldLiteral(structName string, fi *fieldInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\t\t{\n")
	fmt.Fprintf(&b, "\t\t\tName:   %q,\n", fi.Name)
	fmt.Fprintf(&b, "\t\t\tOffset: unsafe.Offsetof((*%s)(nil).%s),\n", structName, fi.Name)
	fmt.Fprintf(&b, "\t\t\tSize:   unsafe.Sizeof((*%s)(nil).%s),\n", structName, fi.Name)
	fmt.Fprintf(&b, "\t\t\tKind:   %s,\n", fieldKindExpr[fi.Kind])

	switch fi.Kind {
	case fkReference:
		fmt.Fprintf(&b, "\t\t\tPointeeSize:  %d,\n", fi.PointeeSize)
		fmt.Fprintf(&b, "\t\t\tPointeeAlign: %d,\n", fi.PointeeAlign)
		if fi.PointeeName != "" {
			fmt.Fprintf(&b, "\t\t\tPointeeType: cdumpType%s,\n", fi.PointeeName)
		}
	case fkDynamic:
		fmt.Fprintf(&b, "\t\t\tPointerDepth: %d,\n", fi.PointerDepth)
		fmt.Fprintf(&b, "\t\t\tDynamic: mustDynamicCodec(%q),\n", fi.Codec)
	case fkArray:
		fmt.Fprintf(&b, "\t\t\tElemKind: %s,\n", elemKindExpr[fi.ElemKind])
		fmt.Fprintf(&b, "\t\t\tLenOf: func(rec unsafe.Pointer) int { return int((*%s)(rec).%s) },\n", structName, fi.LenField)
		switch fi.ElemKind {
		case fkPlain:
			fmt.Fprintf(&b, "\t\t\tPointeeSize:  %d,\n", fi.PointeeSize)
			fmt.Fprintf(&b, "\t\t\tPointeeAlign: %d,\n", fi.PointeeAlign)
			if fi.PointeeName != "" {
				fmt.Fprintf(&b, "\t\t\tPointeeType: cdumpType%s,\n", fi.PointeeName)
			}
		case fkReference:
			fmt.Fprintf(&b, "\t\t\tPointeeSize:  %d,\n", fi.PointeeSize)
			fmt.Fprintf(&b, "\t\t\tPointeeAlign: %d,\n", fi.PointeeAlign)
			if fi.PointeeName != "" {
				fmt.Fprintf(&b, "\t\t\tPointeeType: cdumpType%s,\n", fi.PointeeName)
			}
		case fkCString:
			fmt.Fprintf(&b, "\t\t\tPointeeSize:  %d,\n", fi.PointeeSize)
			fmt.Fprintf(&b, "\t\t\tPointeeAlign: %d,\n", fi.PointeeAlign)
		case fkDynamic:
			fmt.Fprintf(&b, "\t\t\tPointeeSize:  %d,\n", fi.PointeeSize)
			fmt.Fprintf(&b, "\t\t\tPointeeAlign: %d,\n", fi.PointeeAlign)
			fmt.Fprintf(&b, "\t\t\tPointerDepth: %d,\n", fi.PointerDepth)
			fmt.Fprintf(&b, "\t\t\tDynamic: mustDynamicCodec(%q),\n", fi.Codec)
		}
	}

	fmt.Fprintf(&b, "\t\t}")
	return b.String()
}

// shapeComment renders a tag-stripped copy of the source struct literal for
// the generated file's header, so a reader diffing hand-written source
// against generated output doesn't have to go find the original: it deep
// copies the AST node first so stripping tags never mutates the tree the
// rest of the generator still reads field offsets from.
func shapeComment(fset *token.FileSet, st *ast.StructType) (string, error) {
	var clone ast.StructType
	if err := deepcopy.Copy(&clone, st); err != nil {
		return "", err
	}
	for _, f := range clone.Fields.List {
		f.Tag = nil
		f.Comment = nil
		f.Doc = nil
	}

	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, &clone); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), "\n", "\n//\t"), nil
}

var genTemplate = template.Must(template.New("cdumpgen").Parse(`// Code generated by cdumpgen. DO NOT EDIT.

package {{.Package}}

import (
{{- if .NeedDyncodec}}
	"fmt"
{{- end}}
	"unsafe"

	"github.com/cdump-go/cdump"
{{- if .NeedDyncodec}}
	"github.com/cdump-go/cdump/internal/dyncodec"
{{- end}}
)
{{if .NeedDyncodec}}
func mustDynamicCodec(name string) cdump.DynamicCodec {
	c, ok := dyncodec.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("cdumpgen: dynamic codec %q is not registered", name))
	}
	return c
}
{{end}}
{{range .Structs}}
// {{.Name}} shape, as seen by cdumpgen:
//
//	{{.ShapeDoc}}
const {{.TypeIDName}} cdump.TypeID = "{{.TypeIDVal}}"

var {{.VarName}} = &cdump.RecordType{
	Name:  "{{.Name}}",
	ID:    {{.TypeIDName}},
	Size:  unsafe.Sizeof({{.Name}}{}),
	Align: unsafe.Alignof({{.Name}}{}),
}

func init() {
	{{.VarName}}.Fields = cdump.FieldList{
{{range .Fields}}{{.}},
{{end}}	}
	if err := cdump.Validate({{.VarName}}); err != nil {
		panic(err)
	}
}

// CDumpType implements cdump.Record for {{.Name}}.
func (v {{.Name}}) CDumpType() *cdump.RecordType { return {{.VarName}} }
{{end}}
`))
