package embedded

import (
	"context"
	"testing"

	"github.com/bakape/assetcache"
)

func TestTablePutAndRead(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Put("sprites.hero", "txt", []byte("hero-data"))
	table.PutChild("sprites", "hero")

	src := New(table)

	data, err := src.Read(context.Background(), "sprites.hero", "txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hero-data" {
		t.Errorf("got %q", data)
	}

	if _, err := src.Read(context.Background(), "sprites.hero", "json"); err != assetcache.ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestTableReadDirFiltersByExtension(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Put("sprites.hero", "txt", []byte("hero-data"))
	table.Put("sprites.villain", "png", []byte{0x1, 0x2})
	table.PutChild("sprites", "hero")
	table.PutChild("sprites", "villain")

	src := New(table)

	leaves, err := src.ReadDir(context.Background(), "sprites", []string{"txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 1 || leaves[0] != "hero" {
		t.Errorf("got %v, want [hero]", leaves)
	}
}

func TestSourceSupportsHotReloadIsFalse(t *testing.T) {
	t.Parallel()

	src := New(NewTable())
	if src.SupportsHotReload() {
		t.Error("an embedded.Source must never report hot-reload support")
	}
}

var _ assetcache.Source = (*Source)(nil)
