package assetcache

import (
	"fmt"
	"unicode/utf8"
)

// Loader is a pure, stateless conversion from raw bytes to a typed asset
// value. Loaders must not retain the passed bytes slice beyond the call;
// a Source may hand back a borrowed buffer.
type Loader[T any] interface {
	Load(data []byte, ext string) (T, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[T any] func(data []byte, ext string) (T, error)

// Load implements Loader.
func (f LoaderFunc[T]) Load(data []byte, ext string) (T, error) {
	return f(data, ext)
}

// Bytes is the identity-bytes loader family: T is the raw byte sequence
// itself, copied so the cached value does not alias a Source's internal
// buffer.
func Bytes() Loader[[]byte] {
	return LoaderFunc[[]byte](func(data []byte, _ string) ([]byte, error) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	})
}

// String is the UTF-8 string loader family: fails if data is not valid
// UTF-8.
func String() Loader[string] {
	return LoaderFunc[string](func(data []byte, _ string) (string, error) {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("assetcache: invalid UTF-8")
		}
		return string(data), nil
	})
}

// Parse is the "parse" loader family: T is constructed from the UTF-8 text
// of the bytes via the supplied parse function (e.g. strconv.Atoi,
// time.Parse with a fixed layout bound in a closure, etc).
func Parse[T any](parse func(string) (T, error)) Loader[T] {
	return LoaderFunc[T](func(data []byte, _ string) (T, error) {
		var zero T
		if !utf8.Valid(data) {
			return zero, fmt.Errorf("assetcache: invalid UTF-8")
		}
		v, err := parse(string(data))
		if err != nil {
			return zero, err
		}
		return v, nil
	})
}

// From is the "from-another" adapter family: it runs inner, producing U,
// then converts U to T via convert.
func From[T any, U any](inner Loader[U], convert func(U) (T, error)) Loader[T] {
	return LoaderFunc[T](func(data []byte, ext string) (T, error) {
		var zero T
		u, err := inner.Load(data, ext)
		if err != nil {
			return zero, err
		}
		return convert(u)
	})
}
