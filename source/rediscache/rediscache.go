// Package rediscache is a Redis-backed assetcache.Source, for assets
// shared across processes rather than read from a local filesystem.
package rediscache

import (
	"context"
	"errors"

	"github.com/bakape/assetcache"
	"github.com/go-redis/redis/v8"
)

// Source reads assets as Redis string values keyed by "<id>.<ext>".
// Directory listing uses a Redis Set stored at "<dir>.dir" that the
// writer side is responsible for maintaining alongside each value.
type Source struct {
	client *redis.Client
}

// New wraps an existing *redis.Client as a Source.
func New(client *redis.Client) *Source {
	return &Source{client: client}
}

func key(id assetcache.ID, ext string) string {
	return string(id) + "." + ext
}

// Read implements assetcache.Source.
func (s *Source) Read(ctx context.Context, id assetcache.ID, ext string) ([]byte, error) {
	data, err := s.client.Get(ctx, key(id, ext)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// ReadDir implements assetcache.Source. It reads the Redis Set at
// "<dir>.dir" and filters to leaves that have a value for at least one of
// exts.
func (s *Source) ReadDir(ctx context.Context, id assetcache.ID, exts []string) ([]string, error) {
	leaves, err := s.client.SMembers(ctx, string(id)+".dir").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}

	var out []string
	for _, leaf := range leaves {
		childID := id.Child(leaf)
		for _, ext := range exts {
			if ok, err := s.client.Exists(ctx, key(childID, ext)).Result(); err == nil && ok > 0 {
				out = append(out, leaf)
				break
			}
		}
	}
	return out, nil
}

// SupportsHotReload implements assetcache.Source. Redis has no local
// filesystem event stream to drive a HotReloader from; a deployment
// wanting reload-on-change would instead use Redis keyspace notifications
// layered on top, which is out of scope here.
func (s *Source) SupportsHotReload() bool { return false }

var _ assetcache.Source = (*Source)(nil)
