// Package memcache is a memcached-backed assetcache.Source.
//
// memcached has no directory concept at all, so ReadDir requires the
// caller to maintain an explicit index key; this Source reads that index
// as a single JSON-encoded list of leaf names stored under a synthetic
// "<dir>.dir.idx" key.
package memcache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bakape/assetcache"
	"github.com/bradfitz/gomemcache/memcache"
)

// Source reads assets as memcached items keyed by "<id>.<ext>".
type Source struct {
	client *memcache.Client
}

// New wraps an existing *memcache.Client as a Source.
func New(client *memcache.Client) *Source {
	return &Source{client: client}
}

func key(id assetcache.ID, ext string) string {
	return string(id) + "." + ext
}

// Read implements assetcache.Source.
func (s *Source) Read(_ context.Context, id assetcache.ID, ext string) ([]byte, error) {
	item, err := s.client.Get(key(id, ext))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}
	return item.Value, nil
}

// ReadDir implements assetcache.Source, reading the JSON-encoded leaf
// list stored at "<dir>.dir.idx".
func (s *Source) ReadDir(_ context.Context, id assetcache.ID, exts []string) ([]string, error) {
	item, err := s.client.Get(string(id) + ".dir.idx")
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}

	var leaves []string
	if err := json.Unmarshal(item.Value, &leaves); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[e] = true
	}

	var out []string
	for _, leaf := range leaves {
		if leaf == "" {
			continue
		}
		childID := id.Child(leaf)
		for ext := range want {
			if _, err := s.client.Get(key(childID, ext)); err == nil {
				out = append(out, leaf)
				break
			}
		}
	}
	return out, nil
}

// SupportsHotReload implements assetcache.Source.
func (s *Source) SupportsHotReload() bool { return false }

var _ assetcache.Source = (*Source)(nil)
