// Command cdumpgen is an external code generator descriptor source: it
// inspects Go struct declarations annotated with a //cdump:generate
// directive comment and emits a static FieldList for each one, so a
// build can serialize/deserialize those types without paying for reflect
// at run time (compare internal/reflectdesc, which builds the same kind
// of descriptor but lazily, via reflect, the first time a type is used).
//
// It works as a directive-comment scanner over a type-checked package
// loaded with golang.org/x/tools/go/packages, driving a text/template
// renderer that turns each struct's shape into a descriptor literal.
//
// Usage:
//
//	cdumpgen [-out name] <package pattern>
//
// Only same-package pointee references are resolved: a Reference or Array
// field pointing at a struct in another package gets no PointeeType in the
// generated descriptor.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"golang.org/x/tools/go/packages"
)

const directiveComment = "//cdump:generate"

func main() {
	out := flag.String("out", "cdump_generated.go", "output file name, written into the loaded package's directory")
	flag.Parse()

	pattern := "."
	if flag.NArg() > 0 {
		pattern = flag.Arg(0)
	}

	if err := run(pattern, *out); err != nil {
		fmt.Fprintln(os.Stderr, "cdumpgen:", err)
		os.Exit(1)
	}
}

func run(pattern, outName string) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypesSizes,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return fmt.Errorf("loading %s: %w", pattern, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("package %s has type errors", pattern)
	}

	for _, pkg := range pkgs {
		structs, err := collectStructs(pkg)
		if err != nil {
			return err
		}
		if len(structs) == 0 {
			continue
		}

		src, err := render(pkg.Name, structs)
		if err != nil {
			return fmt.Errorf("package %s: %w", pkg.PkgPath, err)
		}

		dir := filepath.Dir(pkg.CompiledGoFiles[0])
		path := filepath.Join(dir, outName)
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// collectStructs finds every struct type declaration in pkg preceded by a
// //cdump:generate directive comment and analyzes its fields.
func collectStructs(pkg *packages.Package) ([]*structInfo, error) {
	var out []*structInfo

	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if !hasDirective(gd.Doc) && !hasDirective(ts.Doc) {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					return nil, fmt.Errorf("%s: %s is annotated but is not a struct", pkg.Fset.Position(ts.Pos()), ts.Name.Name)
				}

				def, ok := pkg.TypesInfo.Defs[ts.Name]
				if !ok {
					return nil, fmt.Errorf("%s: no type information for %s", pkg.Fset.Position(ts.Pos()), ts.Name.Name)
				}
				named, ok := def.Type().(*types.Named)
				if !ok {
					return nil, fmt.Errorf("%s: %s did not resolve to a named type", pkg.Fset.Position(ts.Pos()), ts.Name.Name)
				}
				underlying, ok := named.Underlying().(*types.Struct)
				if !ok {
					return nil, fmt.Errorf("%s: %s underlying type is not a struct", pkg.Fset.Position(ts.Pos()), ts.Name.Name)
				}

				si, err := analyzeStruct(pkg, ts.Name.Name, st, underlying)
				if err != nil {
					return nil, err
				}
				si.astStruct = st
				si.fset = pkg.Fset
				out = append(out, si)
			}
		}
	}
	return out, nil
}

func hasDirective(cg *ast.CommentGroup) bool {
	if cg == nil {
		return false
	}
	for _, c := range cg.List {
		if c.Text == directiveComment {
			return true
		}
	}
	return false
}

// fieldTag returns the parsed `cdump:"..."` value of an AST field, or "".
func fieldTag(f *ast.Field) string {
	if f.Tag == nil {
		return ""
	}
	unquoted, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(unquoted).Get("cdump")
}
