//go:generate go run . -output ../../docs/configuration

// Command docgen renders the thingslab-config.yaml reference from the
// structs in pkg/config. Doc comments and yaml tags in the source stay the
// single source of truth; this tool reads them with go/ast.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// section is one generated markdown file and the structs it documents.
type section struct {
	source  string
	structs []string
	file    string
	title   string
	intro   string
}

var sections = []section{
	{
		source:  "pkg/config/config.go",
		structs: []string{"Config", "Environment", "Credentials", "GitOps", "NodeGroup"},
		file:    "core.md",
		title:   "Configuration Reference",
		intro:   "All options recognized in thingslab-config.yaml.",
	},
}

func main() {
	outputDir := flag.String("output", "docs/configuration", "Output directory for generated documentation")
	rootDir := flag.String("root", "", "Root directory of the project (defaults to the enclosing module)")
	flag.Parse()

	if *rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get working directory: %v", err)
		}
		*rootDir = findModuleRoot(wd)
	}

	outPath := filepath.Join(*rootDir, *outputDir)
	if err := os.MkdirAll(outPath, 0750); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	for _, sec := range sections {
		if err := writeSection(*rootDir, outPath, sec); err != nil {
			log.Fatalf("Failed to document %s: %v", sec.source, err)
		}
	}

	if err := writeIndex(outPath); err != nil {
		log.Fatalf("Failed to generate index: %v", err)
	}

	fmt.Printf("Documentation generated in %s\n", outPath)
}

func writeSection(rootDir, outPath string, sec section) (err error) {
	docs, err := extractStructs(filepath.Join(rootDir, sec.source), sec.structs)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Clean(filepath.Join(outPath, sec.file)))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	renderDoc(f, sec.title, sec.intro, docs)
	return err
}

// findModuleRoot walks up from start until it sees a go.mod.
func findModuleRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// writeIndex creates a README.md linking the generated files.
func writeIndex(outPath string) (err error) {
	f, err := os.Create(filepath.Clean(filepath.Join(outPath, "README.md")))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	content := `# Configuration Reference

Auto-generated documentation for Thingslab Orchestrator configuration.

> Regenerate with ` + "`go generate ./cmd/docgen`" + `.

- [Configuration Reference](core.md) - All options recognized in thingslab-config.yaml
`
	_, err = f.WriteString(content)
	return err
}
