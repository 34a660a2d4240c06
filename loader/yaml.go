package loader

import (
	"github.com/bakape/assetcache"
	"gopkg.in/yaml.v3"
)

// YAML builds a Loader that unmarshals bytes as YAML into a fresh T.
func YAML[T any]() assetcache.Loader[T] {
	return assetcache.LoaderFunc[T](func(data []byte, _ string) (T, error) {
		var v T
		if err := yaml.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	})
}
