package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tannerhall/assetview/internal/config"
	"github.com/tannerhall/assetview/internal/preview"
	"github.com/tannerhall/assetview/internal/server"
	"github.com/tannerhall/assetview/internal/store"
	"github.com/tannerhall/assetview/internal/thumb"
	"github.com/tannerhall/assetview/internal/watch"
)

func main() {
	addr := flag.String("addr", "", "Listen address (overrides config)")
	root := flag.String("root", "", "Asset root directory to serve (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	mgr := config.NewManager()
	if *configPath != "" {
		mgr.SetPath(*configPath)
	}
	if err := mgr.Load(); err != nil {
		log.Printf("config: %v (using defaults)", err)
	}
	if err := mgr.ParseError(); err != nil {
		log.Printf("config: parse error, using defaults: %v", err)
	}

	cfg := mgr.Get()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *root != "" {
		cfg.Server.Root = *root
	}

	servedRoot, err := filepath.Abs(cfg.Server.Root)
	if err != nil {
		log.Fatalf("resolve root %q: %v", cfg.Server.Root, err)
	}
	if fi, err := os.Stat(servedRoot); err != nil || !fi.IsDir() {
		log.Fatalf("root %q is not a directory", servedRoot)
	}

	db, err := store.Open(cfg.Store.Path, cfg.Store.MaxRecents)
	if err != nil {
		log.Printf("store: %v (favorites and recents disabled)", err)
		db = nil
	} else {
		defer db.Close()
	}

	var watcher *watch.DirectoryWatcher
	if cfg.Watcher.Enabled {
		watcher, err = watch.NewDirectoryWatcher(cfg.Watcher.DebounceMs)
		if err != nil {
			log.Printf("watcher: %v (change notifications disabled)", err)
		} else {
			defer watcher.Close()
		}
	}

	queue := preview.NewQueue(preview.Options{
		MaxConcurrent: cfg.Preview.MaxConcurrent,
		MaxLoaded:     cfg.Preview.MaxLoaded,
		IdleThreshold: cfg.Preview.IdleThreshold(),
		SweepInterval: cfg.Preview.SweepInterval(),
		FrameInterval: cfg.Preview.FrameInterval(),
		FrameSize:     cfg.Preview.FrameSize,
	})
	defer queue.Close()

	// Flag overrides live only in this process; write them back into
	// the manager so handlers read the effective values.
	mgr.Update(func(c *config.Config) {
		c.Server.Addr = cfg.Server.Addr
		c.Server.Root = servedRoot
	})

	srv := server.New(server.Options{
		Config:  mgr,
		Root:    servedRoot,
		Thumbs:  thumb.NewService(cfg.Thumbnails.CacheEntries),
		Queue:   queue,
		DB:      db,
		Watcher: watcher,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("assetview serving %s on %s", servedRoot, cfg.Server.Addr)
	if err := srv.Serve(ctx); err != nil {
		log.Fatal(err)
	}
}
