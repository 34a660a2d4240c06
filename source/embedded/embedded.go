// Package embedded is a build-time-table-backed assetcache.Source, for
// assets baked into the binary. The accompanying cmd/assetcache-gen tool
// generates the two tables this package consumes from an on-disk tree.
package embedded

import (
	"context"

	"github.com/bakape/assetcache"
)

type fileKey struct {
	id  assetcache.ID
	ext string
}

// Table is the generated data an embedded.Source serves. Files maps
// (id, ext) to file contents; Children maps a directory id to its leaf
// names, as produced by cmd/assetcache-gen.
type Table struct {
	Files    map[fileKey][]byte
	Children map[assetcache.ID][]string
}

// NewTable constructs an empty Table for hand-assembly or incremental
// population, e.g. in generated code or tests.
func NewTable() *Table {
	return &Table{
		Files:    make(map[fileKey][]byte),
		Children: make(map[assetcache.ID][]string),
	}
}

// Put installs data under (id, ext). Listing it from ReadDir additionally
// requires a PutChild registration on the parent directory.
func (t *Table) Put(id assetcache.ID, ext string, data []byte) {
	t.Files[fileKey{id, ext}] = data
}

// PutChild records leaf as a listed child of dir, without an extension:
// ReadDir lists it for an extension filter only if Files holds the child
// under one of those extensions. Recording the same leaf twice has no
// further effect, so ReadDir never returns duplicates.
func (t *Table) PutChild(dir assetcache.ID, leaf string) {
	for _, l := range t.Children[dir] {
		if l == leaf {
			return
		}
	}
	t.Children[dir] = append(t.Children[dir], leaf)
}

// Source serves assets from an in-memory Table, with no filesystem or
// network I/O. It never supports hot reload: a rebuild of the binary is
// required to change its contents.
type Source struct {
	table *Table
}

// New wraps table as a Source.
func New(table *Table) *Source {
	return &Source{table: table}
}

// Read implements assetcache.Source.
func (s *Source) Read(_ context.Context, id assetcache.ID, ext string) ([]byte, error) {
	data, ok := s.table.Files[fileKey{id, ext}]
	if !ok {
		return nil, assetcache.ErrNotFound
	}
	return data, nil
}

// ReadDir implements assetcache.Source.
func (s *Source) ReadDir(_ context.Context, id assetcache.ID, exts []string) ([]string, error) {
	children, ok := s.table.Children[id]
	if !ok {
		return nil, assetcache.ErrNotFound
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[e] = true
	}

	var leaves []string
	for _, leaf := range children {
		for ext := range want {
			if _, ok := s.table.Files[fileKey{id.Child(leaf), ext}]; ok {
				leaves = append(leaves, leaf)
				break
			}
		}
	}
	return leaves, nil
}

// SupportsHotReload implements assetcache.Source.
func (s *Source) SupportsHotReload() bool { return false }

var _ assetcache.Source = (*Source)(nil)
