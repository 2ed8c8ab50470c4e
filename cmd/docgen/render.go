package main

import (
	"fmt"
	"io"
	"strings"
)

// renderDoc writes the markdown reference for the given structs: a header,
// then one keyed table per struct. Write errors are ignored; generation is
// best-effort and the caller checks the file close.
func renderDoc(w io.Writer, title, intro string, docs []structDoc) {
	fmt.Fprintf(w, "# %s\n\n", title)
	if intro != "" {
		fmt.Fprintf(w, "%s\n\n", intro)
	}
	fmt.Fprintf(w, "> Auto-generated from pkg/config. Regenerate with `go generate ./cmd/docgen`.\n")

	for _, doc := range docs {
		fmt.Fprintf(w, "\n## %s\n\n", doc.Name)
		if doc.Doc != "" {
			fmt.Fprintf(w, "%s\n\n", doc.Doc)
		}
		if len(doc.Fields) == 0 {
			fmt.Fprintf(w, "_No documented keys._\n")
			continue
		}

		fmt.Fprintf(w, "| Key | Type | Required | Description |\n")
		fmt.Fprintf(w, "|-----|------|----------|-------------|\n")
		for _, f := range doc.Fields {
			fmt.Fprintf(w, "| `%s` | `%s` | %s | %s |\n",
				f.YAMLKey, f.GoType, yesNo(f.Required), cellText(f.Doc))
		}
	}
}

func yesNo(required bool) string {
	if required {
		return "yes"
	}
	return "no"
}

// cellText flattens a doc comment into a single markdown table cell.
func cellText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}
