// Package thumb produces and caches fixed-size raster previews for
// classified assets.
package thumb

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/tannerhall/assetview/internal/asset"
	"github.com/tannerhall/assetview/internal/debug"
)

// Service generates thumbnails and serves them through a bounded
// cache keyed on (path, size, mtime). Concurrent requests for the same
// key collapse into a single generation.
type Service struct {
	cache *Cache
	group singleflight.Group

	// genFn is swapped out by tests to instrument generation calls.
	genFn func(path string, typ asset.Type, size int) []byte
}

// NewService creates a thumbnail service with the given cache bound.
func NewService(maxEntries int) *Service {
	return &Service{
		cache: NewCache(maxEntries),
		genFn: generate,
	}
}

// Thumbnail returns encoded preview bytes for the asset at path. A
// cache hit short-circuits generation entirely; a changed file (new
// mtime) always misses. The only hard failure is a missing path.
func (s *Service) Thumbnail(path string, size int) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return s.FolderPreview(abs, size)
	}

	key := Key{Path: abs, Size: size, ModTime: fi.ModTime().UnixNano()}
	if data, ok := s.cache.Get(key); ok {
		debug.Log(debug.THUMB, "Thumbnail: cache hit %s@%d", abs, size)
		return data, nil
	}

	flight := fmt.Sprintf("%s|%d|%d", key.Path, key.Size, key.ModTime)
	v, _, _ := s.group.Do(flight, func() (interface{}, error) {
		data := s.genFn(abs, asset.Classify(abs), size)
		s.cache.Put(key, data)
		return data, nil
	})
	return v.([]byte), nil
}

// FolderPreview returns preview bytes representing a folder: the
// thumbnail of its representative asset, or a generated folder panel
// when it holds none.
func (s *Service) FolderPreview(path string, size int) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return s.Thumbnail(abs, size)
	}

	if fa, ok := asset.FindFirstAsset(abs); ok {
		return s.Thumbnail(fa.Path, size)
	}

	// Empty folder: cache the generated panel against the directory
	// itself so repeated listings stay cheap.
	key := Key{Path: abs, Size: size, ModTime: fi.ModTime().UnixNano()}
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}
	data := s.genFn(abs, asset.Folder, size)
	s.cache.Put(key, data)
	return data, nil
}

// CacheLen reports the number of resident cache entries.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}
