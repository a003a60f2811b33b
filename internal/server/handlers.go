package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tannerhall/assetview/internal/asset"
	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/search"
	"github.com/tannerhall/assetview/internal/texture"
	"github.com/tannerhall/assetview/internal/thumb"
)

// browseEntry is the JSON shape of a directory listing entry.
type browseEntry struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	IsDir      bool       `json:"isDirectory"`
	FileType   asset.Type `json:"fileType"`
	Size       int64      `json:"size"`
	ModTime    time.Time  `json:"modified"`
	Ext        string     `json:"extension,omitempty"`
	HasAssets  bool       `json:"hasAssets,omitempty"`
	FirstAsset string     `json:"firstAsset,omitempty"`
}

type browseResponse struct {
	Path    string        `json:"path"`
	Entries []browseEntry `json:"entries"`
}

var errOutsideRoot = errors.New("path outside served root")

// resolvePath confines a client-supplied path to the served root.
// Relative paths are joined to the root; absolute paths must already
// be inside it.
func (s *Server) resolvePath(p string) (string, error) {
	if p == "" || p == "." {
		return s.root, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return abs, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Log(debug.HTTP, "encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, err := s.resolvePath(r.URL.Query().Get("path"))
	if err != nil {
		if errors.Is(err, errOutsideRoot) {
			writeError(w, http.StatusForbidden, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return "", false
	}
	return p, true
}

// handleBrowse lists a directory's entries. Folder entries carry
// whether they contain a previewable asset and which one represents
// them.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	cfg := s.cfg.Get()
	records, err := asset.List(dir, asset.ListOptions{
		ShowDotfiles:   cfg.Browse.ShowDotfiles || r.URL.Query().Get("hidden") == "1",
		FollowSymlinks: cfg.Browse.FollowSymlinks,
	})
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	entries := make([]browseEntry, 0, len(records))
	for _, rec := range records {
		e := browseEntry{
			Name:     rec.Name,
			Path:     rec.Path,
			IsDir:    rec.IsDir,
			FileType: rec.Type,
			Size:     rec.Size,
			ModTime:  rec.ModTime,
			Ext:      rec.Ext,
		}
		if rec.IsDir {
			if first, found := asset.FindFirstAsset(rec.Path); found {
				e.HasAssets = true
				e.FirstAsset = first.Path
			}
		}
		entries = append(entries, e)
	}

	if s.db != nil {
		if err := s.db.TouchRecent(dir); err != nil {
			debug.Log(debug.HTTP, "touch recent %q: %v", dir, err)
		}
	}

	writeJSON(w, http.StatusOK, browseResponse{Path: dir, Entries: entries})
}

// handleSearch runs a directive query ("crate ext:obj size:>1MB")
// against the tree under the given directory.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	opts := search.Options{ShowDotfiles: s.cfg.Get().Browse.ShowDotfiles}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	records, err := search.Search(r.Context(), dir, q, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]browseEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, browseEntry{
			Name:     rec.Name,
			Path:     rec.Path,
			IsDir:    rec.IsDir,
			FileType: rec.Type,
			Size:     rec.Size,
			ModTime:  rec.ModTime,
			Ext:      rec.Ext,
		})
	}
	writeJSON(w, http.StatusOK, browseResponse{Path: dir, Entries: entries})
}

func (s *Server) thumbSize(r *http.Request) int {
	cfg := s.cfg.Get()
	size := cfg.Thumbnails.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = n
		}
	}
	if size > cfg.Thumbnails.MaxSize {
		size = cfg.Thumbnails.MaxSize
	}
	return size
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	data, err := s.thumbs.Thumbnail(path, s.thumbSize(r))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", thumb.ContentType(data))
	w.Header().Set("Cache-Control", "max-age=60")
	_, _ = w.Write(data)
}

func (s *Server) handleFolderPreview(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	data, err := s.thumbs.FolderPreview(path, s.thumbSize(r))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", thumb.ContentType(data))
	w.Header().Set("Cache-Control", "max-age=60")
	_, _ = w.Write(data)
}

// handleModelTexture resolves the texture image paired with a model
// file. There is no placeholder: an unresolvable texture is a 404.
func (s *Server) handleModelTexture(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	tex, found := texture.Resolve(path)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no texture for %s", filepath.Base(path)))
		return
	}
	http.ServeFile(w, r, tex)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}

	fi, err := os.Stat(path)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if fi.IsDir() {
		writeError(w, http.StatusBadRequest, "path is a directory")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.db.Favorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"favorites": favs})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.db.AddFavorite(path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"added": path})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	path, ok := s.pathParam(w, r)
	if !ok {
		return
	}
	if err := s.db.RemoveFavorite(path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": path})
}

func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	recents, err := s.db.Recents()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recents": recents})
}
