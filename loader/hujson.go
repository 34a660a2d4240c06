package loader

import (
	"encoding/json"

	"github.com/bakape/assetcache"
	"github.com/tailscale/hujson"
)

// HuJSON builds a Loader that accepts human-edited JSON (comments,
// trailing commas) via hujson.Standardize before delegating to
// encoding/json. Suited to config-style assets maintained by hand.
func HuJSON[T any]() assetcache.Loader[T] {
	return assetcache.LoaderFunc[T](func(data []byte, _ string) (T, error) {
		var v T
		std, err := hujson.Standardize(data)
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(std, &v); err != nil {
			return v, err
		}
		return v, nil
	})
}
