package asset

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/tannerhall/assetview/internal/debug"
)

// ListOptions controls directory listing behavior.
type ListOptions struct {
	ShowDotfiles   bool
	FollowSymlinks bool
}

// List reads the direct children of path and returns them as records,
// directories first, then case-insensitive by name. Unreadable entries
// are skipped rather than failing the listing.
func List(path string, opts ListOptions) ([]Record, error) {
	debug.Log(debug.ASSET, "List: reading %q", path)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", path)
	}

	var result []Record
	var mu sync.Mutex

	conf := &fastwalk.Config{
		Follow: opts.FollowSymlinks,
	}

	pathLen := len(path)

	err = fastwalk.Walk(conf, path, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			debug.Log(debug.ASSET, "List: walk error at %q: %v", fullPath, err)
			return nil // Skip errors, continue walking
		}

		// Skip the root directory itself
		if fullPath == path {
			return nil
		}

		// Only process direct children (depth 1)
		relStart := pathLen
		if relStart < len(fullPath) && (fullPath[relStart] == '/' || fullPath[relStart] == '\\') {
			relStart++
		}
		rel := fullPath[relStart:]
		if strings.ContainsAny(rel, "/\\") {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if !opts.ShowDotfiles && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			// Fall back to lstat for broken symlinks
			info, err = os.Lstat(fullPath)
			if err != nil {
				debug.Log(debug.ASSET, "List: skipping %q: stat error: %v", d.Name(), err)
				return nil
			}
		}

		rec := Record{
			Name:    d.Name(),
			Path:    fullPath,
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Ext:     Ext(fullPath),
		}
		if rec.IsDir {
			rec.Type = Folder
			rec.Ext = ""
		} else {
			rec.Type = Classify(fullPath)
		}

		mu.Lock()
		result = append(result, rec)
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		debug.Log(debug.ASSET, "List: walk error: %v", err)
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})

	debug.Log(debug.ASSET, "List: returning %d entries", len(result))
	return result, nil
}
