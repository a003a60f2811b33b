// Package server exposes the asset browsing and preview pipeline over
// HTTP and websockets.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tannerhall/assetview/internal/config"
	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/preview"
	"github.com/tannerhall/assetview/internal/store"
	"github.com/tannerhall/assetview/internal/thumb"
	"github.com/tannerhall/assetview/internal/watch"
)

// Server wires the asset pipeline behind an HTTP API.
type Server struct {
	cfg     *config.Manager
	root    string
	thumbs  *thumb.Service
	queue   *preview.Queue
	db      *store.DB
	watcher *watch.DirectoryWatcher
	hub     *watchHub
}

// Options holds the constructed services the server depends on. The
// watcher and store are optional.
type Options struct {
	Config  *config.Manager
	Root    string
	Thumbs  *thumb.Service
	Queue   *preview.Queue
	DB      *store.DB
	Watcher *watch.DirectoryWatcher
}

// New creates a server around already constructed services.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		root:    opts.Root,
		thumbs:  opts.Thumbs,
		queue:   opts.Queue,
		db:      opts.DB,
		watcher: opts.Watcher,
	}
	if s.watcher != nil {
		s.hub = newWatchHub(s.watcher)
	}
	return s
}

// routes builds the chi router for the API.
func (s *Server) routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/browse", s.handleBrowse)
		r.Get("/search", s.handleSearch)
		r.Get("/thumbnail", s.handleThumbnail)
		r.Get("/folder-preview", s.handleFolderPreview)
		r.Get("/model-texture", s.handleModelTexture)
		r.Get("/raw", s.handleRaw)

		if s.db != nil {
			r.Get("/favorites", s.handleFavorites)
			r.Post("/favorites", s.handleAddFavorite)
			r.Delete("/favorites", s.handleRemoveFavorite)
			r.Get("/recents", s.handleRecents)
		}

		if s.hub != nil {
			r.Get("/watch", s.handleWatchWS)
		}
		r.Get("/preview", s.handlePreviewWS)
	})

	return r
}

// Serve starts the HTTP server and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.cfg.Get().Server.Addr
	debug.Log(debug.HTTP, "listening on %s", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.hub != nil {
		eg.Go(func() error {
			s.hub.run(egctx)
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
