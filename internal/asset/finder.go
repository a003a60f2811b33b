package asset

import (
	"os"
	"path/filepath"

	"github.com/tannerhall/assetview/internal/debug"
)

// FirstAsset identifies the representative asset of a folder.
type FirstAsset struct {
	Path string
	Type Type
}

// typeRank orders asset types by how well they represent a folder:
// models first, then images, then any other supported type.
func typeRank(t Type) int {
	switch t {
	case Model:
		return 0
	case Image:
		return 1
	case Audio, Video, Document, Font:
		return 2
	default:
		return -1
	}
}

// FindFirstAsset locates the best representative asset inside folder:
// a model beats an image beats any other supported type, regardless of
// listing order. If the folder itself holds no assets, each immediate
// subdirectory is searched the same way, first hit wins. Unreadable
// entries are skipped; an unreadable root yields no result.
func FindFirstAsset(folder string) (FirstAsset, bool) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		debug.Log(debug.ASSET, "FindFirstAsset: cannot read %q: %v", folder, err)
		return FirstAsset{}, false
	}

	if fa, ok := bestInEntries(folder, entries); ok {
		return fa, true
	}

	// Recurse one level into subdirectories, first non-empty result wins.
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(folder, e.Name())
		subEntries, err := os.ReadDir(sub)
		if err != nil {
			debug.Log(debug.ASSET, "FindFirstAsset: skipping %q: %v", sub, err)
			continue
		}
		if fa, ok := bestInEntries(sub, subEntries); ok {
			return fa, true
		}
	}

	return FirstAsset{}, false
}

// bestInEntries picks the highest-priority supported file among the
// given directory entries.
func bestInEntries(dir string, entries []os.DirEntry) (FirstAsset, bool) {
	best := FirstAsset{}
	bestRank := -1

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t := Classify(e.Name())
		rank := typeRank(t)
		if rank < 0 {
			continue
		}
		if bestRank == -1 || rank < bestRank {
			best = FirstAsset{Path: filepath.Join(dir, e.Name()), Type: t}
			bestRank = rank
			if bestRank == 0 {
				break // Nothing outranks a model
			}
		}
	}

	return best, bestRank != -1
}
