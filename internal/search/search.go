package search

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/tannerhall/assetview/internal/asset"
	"github.com/tannerhall/assetview/internal/debug"
)

// DefaultLimit caps result counts when the caller does not.
const DefaultLimit = 500

var errLimitReached = errors.New("result limit reached")

// Options controls a search walk.
type Options struct {
	Limit        int // Maximum results; DefaultLimit when zero
	ShowDotfiles bool
}

// Search walks the tree under root and returns records matching the
// query string, sorted dirs-first then by name. The walk stops early
// once the limit is hit or the context is cancelled.
func Search(ctx context.Context, root, query string, opts Options) ([]asset.Record, error) {
	q := Parse(query)
	if q.IsEmpty() {
		return nil, nil
	}
	matcher := NewMatcher(q)

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	debug.Log(debug.ASSET, "Search: %q under %q (limit %d)", query, root, limit)

	var mu sync.Mutex
	var result []asset.Record

	conf := &fastwalk.Config{}

	err := fastwalk.Walk(conf, root, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fullPath == root {
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
			info, err = os.Lstat(fullPath)
			if err != nil {
				return nil
			}
		}

		rec := asset.Record{
			Name:    d.Name(),
			Path:    fullPath,
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Ext:     asset.Ext(fullPath),
		}
		if rec.IsDir {
			rec.Type = asset.Folder
			rec.Ext = ""
		} else {
			rec.Type = asset.Classify(fullPath)
		}

		if !matcher.Match(rec) {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if len(result) >= limit {
			return errLimitReached
		}
		result = append(result, rec)
		if len(result) >= limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})

	debug.Log(debug.ASSET, "Search: %d matches for %q", len(result), query)
	return result, nil
}
