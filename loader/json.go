// Package loader provides concrete Loader implementations for common
// on-disk encodings, for use with assetcache.AssetType.
package loader

import (
	"encoding/json"

	"github.com/bakape/assetcache"
)

// JSON builds a Loader that unmarshals bytes as JSON into a fresh T.
func JSON[T any]() assetcache.Loader[T] {
	return assetcache.LoaderFunc[T](func(data []byte, _ string) (T, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	})
}
