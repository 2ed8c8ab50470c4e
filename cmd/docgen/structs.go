package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
)

// structDoc is one documented config struct.
type structDoc struct {
	Name   string
	Doc    string
	Fields []fieldDoc
}

// fieldDoc is one yaml key of a config struct. Keys tagged `yaml:"-"` or
// `yaml:",inline"` never reach the reference.
type fieldDoc struct {
	YAMLKey  string
	GoType   string
	Required bool
	Doc      string
}

// extractStructs parses a Go source file and returns the named structs in
// the requested order. A name with no matching struct is an error so a
// renamed config type breaks doc generation instead of silently dropping a
// section.
func extractStructs(path string, names []string) ([]structDoc, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]structDoc)
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}

			doc := structDoc{Name: ts.Name.Name, Doc: declDoc(gen, ts)}
			for _, field := range st.Fields.List {
				for _, name := range field.Names {
					if fd, ok := describeField(name.Name, field); ok {
						doc.Fields = append(doc.Fields, fd)
					}
				}
			}
			byName[doc.Name] = doc
		}
	}

	docs := make([]structDoc, 0, len(names))
	for _, name := range names {
		doc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("struct %s not found in %s", name, path)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// declDoc prefers the comment on the type declaration over one on the spec;
// gofmt attaches single-type declarations' comments to the GenDecl.
func declDoc(gen *ast.GenDecl, ts *ast.TypeSpec) string {
	if gen.Doc != nil {
		return strings.TrimSpace(gen.Doc.Text())
	}
	if ts.Doc != nil {
		return strings.TrimSpace(ts.Doc.Text())
	}
	return ""
}

// describeField maps one struct field to its yaml reference entry. The
// second return is false for fields the reference must not show.
func describeField(goName string, field *ast.Field) (fieldDoc, bool) {
	fd := fieldDoc{
		YAMLKey:  strings.ToLower(goName),
		GoType:   typeName(field.Type),
		Required: true,
	}

	if field.Tag != nil {
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		parts := strings.Split(tag.Get("yaml"), ",")
		switch parts[0] {
		case "-":
			return fieldDoc{}, false
		case "":
		default:
			fd.YAMLKey = parts[0]
		}
		for _, opt := range parts[1:] {
			switch opt {
			case "inline":
				return fieldDoc{}, false
			case "omitempty":
				fd.Required = false
			}
		}
	}

	// Pointer fields are optional whatever the tag says.
	if strings.HasPrefix(fd.GoType, "*") {
		fd.Required = false
	}

	if field.Doc != nil {
		fd.Doc = strings.TrimSpace(field.Doc.Text())
	} else if field.Comment != nil {
		fd.Doc = strings.TrimSpace(field.Comment.Text())
	}
	return fd, true
}

func typeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeName(t.X)
	case *ast.ArrayType:
		return "[]" + typeName(t.Elt)
	case *ast.MapType:
		return "map[" + typeName(t.Key) + "]" + typeName(t.Value)
	case *ast.SelectorExpr:
		return typeName(t.X) + "." + t.Sel.Name
	default:
		return "any"
	}
}
