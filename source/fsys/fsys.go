// Package fsys is a filesystem-backed assetcache.Source, with optional
// hot-reload support via fsnotify. An asset id's segments map to path
// components under the root; the Source contract is read/list-only, so
// no locking or atomic-write machinery is involved.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bakape/assetcache"
	"github.com/fsnotify/fsnotify"
)

// Source reads assets from files under Root, one file per (id, ext) pair:
// the id's segments joined by os.PathSeparator, plus a "." + ext suffix.
type Source struct {
	Root string

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	events  chan assetcache.SourceEvent
	closed  bool
}

// New constructs a fsys.Source rooted at root. Construction fails if root
// does not exist (assetcache.ErrNotFound) or exists but is not a readable
// directory (an I/O error). Hot reload is inert until Events is first
// consumed; the underlying fsnotify.Watcher is created lazily on first
// WatchAsset/WatchDir call.
func New(root string) (*Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assetcache/source/fsys: root %q is not a directory", root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, err
	}
	// Canonicalize so that watcher events, which carry absolute paths, can
	// be translated back into ids by prefix-stripping.
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Source{Root: abs}, nil
}

func (s *Source) path(id assetcache.ID, ext string) string {
	segments := id.Segments()
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, s.Root)
	parts = append(parts, segments...)
	joined := filepath.Join(parts...)
	// The empty extension addresses the bare path, used for directories.
	if ext == "" {
		return joined
	}
	return joined + "." + ext
}

func (s *Source) dirPath(id assetcache.ID) string {
	if id == "" {
		return s.Root
	}
	return filepath.Join(append([]string{s.Root}, id.Segments()...)...)
}

// Read implements assetcache.Source.
func (s *Source) Read(_ context.Context, id assetcache.ID, ext string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id, ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// ReadDir implements assetcache.Source.
func (s *Source) ReadDir(_ context.Context, id assetcache.ID, exts []string) ([]string, error) {
	entries, err := os.ReadDir(s.dirPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, assetcache.ErrNotFound
		}
		return nil, err
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[e] = true
	}

	var leaves []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !want[ext] {
			continue
		}
		leaf := strings.TrimSuffix(name, "."+ext)
		// Directory entries are raw bytes on some platforms; a stem that
		// is not valid UTF-8 cannot form an id and is skipped.
		if !utf8.ValidString(leaf) {
			continue
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

// SupportsHotReload implements assetcache.Source.
func (s *Source) SupportsHotReload() bool { return true }

func (s *Source) ensureWatcher() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.closed {
		return assetcache.ErrSourceClosed
	}
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w
	if s.events == nil {
		s.events = make(chan assetcache.SourceEvent, 256)
	}
	go s.translate()
	return nil
}

// translate adapts raw fsnotify.Events into assetcache.SourceEvent,
// converting an OS path back under Root into a dotted ID.
func (s *Source) translate() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			id, isDir := s.toID(ev.Name)
			s.events <- assetcache.SourceEvent{Path: string(id), IsDir: isDir}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.events <- assetcache.SourceEvent{Err: err}
		}
	}
}

func (s *Source) toID(path string) (assetcache.ID, bool) {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return assetcache.ID(path), false
	}
	info, statErr := os.Stat(path)
	isDir := statErr == nil && info.IsDir()

	ext := filepath.Ext(rel)
	rel = strings.TrimSuffix(rel, ext)
	dotted := strings.ReplaceAll(rel, string(os.PathSeparator), ".")
	return assetcache.ID(dotted), isDir
}

// WatchAsset implements assetcache.HotReloadable.
func (s *Source) WatchAsset(id assetcache.ID, ext string) error {
	if err := s.ensureWatcher(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path(id, ext))
	return s.watcher.Add(dir)
}

// WatchDir implements assetcache.HotReloadable.
func (s *Source) WatchDir(id assetcache.ID, _ []string) error {
	if err := s.ensureWatcher(); err != nil {
		return err
	}
	return s.watcher.Add(s.dirPath(id))
}

// ClearWatches implements assetcache.HotReloadable.
func (s *Source) ClearWatches() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.closed = true
	return err
}

// Events implements assetcache.HotReloadable.
func (s *Source) Events() <-chan assetcache.SourceEvent {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.events == nil {
		// No watch registered yet; return a channel that will only ever
		// carry events from a watcher created after the fact by a
		// concurrent WatchAsset/WatchDir call.
		s.events = make(chan assetcache.SourceEvent, 256)
	}
	return s.events
}

var _ assetcache.Source = (*Source)(nil)
var _ assetcache.HotReloadable = (*Source)(nil)
