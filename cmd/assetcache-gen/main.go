// Command assetcache-gen walks a directory tree and emits a Go source
// file defining an embedded.Table, filled from its contents through
// Put/PutChild calls, for use with the assetcache/source/embedded Source.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
)

func main() {
	var (
		root    = flag.String("root", ".", "directory tree to embed")
		out     = flag.String("out", "assets_gen.go", "output Go file path")
		pkg     = flag.String("package", "assets", "package name for the generated file")
		varName = flag.String("var", "Table", "exported variable name for the generated table")
	)
	flag.Parse()

	if err := run(*root, *out, *pkg, *varName); err != nil {
		fmt.Fprintln(os.Stderr, "assetcache-gen:", err)
		os.Exit(1)
	}
}

type fileEntry struct {
	id   string
	ext  string
	data []byte
}

func run(root, out, pkg, varName string) error {
	var entries []fileEntry
	children := make(map[string][]string)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ext := strings.TrimPrefix(filepath.Ext(rel), ".")
		withoutExt := strings.TrimSuffix(rel, filepath.Ext(rel))
		id := strings.ReplaceAll(withoutExt, string(filepath.Separator), ".")

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry{id: id, ext: ext, data: data})

		dir := filepath.Dir(withoutExt)
		if dir == "." {
			dir = ""
		}
		dirID := strings.ReplaceAll(dir, string(filepath.Separator), ".")
		leaf := filepath.Base(withoutExt)
		children[dirID] = append(children[dirID], leaf)
		return nil
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by assetcache-gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkg)
	if len(entries) > 0 || len(children) > 0 {
		fmt.Fprintf(&buf, "import (\n\t\"github.com/bakape/assetcache\"\n\t\"github.com/bakape/assetcache/source/embedded\"\n)\n\n")
	} else {
		fmt.Fprintf(&buf, "import \"github.com/bakape/assetcache/source/embedded\"\n\n")
	}
	fmt.Fprintf(&buf, "var %s = buildTable()\n\n", varName)
	fmt.Fprintf(&buf, "func buildTable() *embedded.Table {\n\tt := embedded.NewTable()\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "\tt.Put(assetcache.ID(%q), %q, %s)\n", e.id, e.ext, byteLiteral(e.data))
	}
	for dir, leaves := range children {
		for _, leaf := range leaves {
			fmt.Fprintf(&buf, "\tt.PutChild(assetcache.ID(%q), %q)\n", dir, leaf)
		}
	}
	fmt.Fprintf(&buf, "\treturn t\n}\n")

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		// Emit the unformatted source so the failure is still diagnosable.
		formatted = buf.Bytes()
	}
	return os.WriteFile(out, formatted, 0o644)
}

func byteLiteral(data []byte) string {
	var sb strings.Builder
	sb.WriteString("[]byte(\"")
	for _, b := range data {
		fmt.Fprintf(&sb, "\\x%02x", b)
	}
	sb.WriteString("\")")
	return sb.String()
}
