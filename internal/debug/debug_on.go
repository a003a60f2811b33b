//go:build debug

// Package debug provides a centralized, categorized debug logging system.
// Build with -tags debug to enable logging.
package debug

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	ASSET   Category = "ASSET"   // Classification, directory listing, first-asset lookup
	TEXTURE Category = "TEXTURE" // Texture resolution (candidate dirs, scoring)
	THUMB   Category = "THUMB"   // Thumbnail generation and cache
	PREVIEW Category = "PREVIEW" // Model load queue scheduling, eviction
	SCENE   Category = "SCENE"   // Model parsing, scene building, render loops
	STORE   Category = "STORE"   // Database operations, favorites, recents
	WATCH   Category = "WATCH"   // Filesystem watcher events
	HTTP    Category = "HTTP"    // Request handling

	// Verbose subcategories (disabled by default)
	TEXTURE_SCAN Category = "TEXTURE_SCAN" // Per-candidate scoring (very verbose)
	SCENE_FRAME  Category = "SCENE_FRAME"  // Per-frame render loop output (extremely verbose)
)

var (
	enabledCategories = map[Category]bool{
		ASSET:   true,
		TEXTURE: true,
		THUMB:   true,
		PREVIEW: true,
		SCENE:   true,
		STORE:   true,
		WATCH:   true,
		HTTP:    true,

		TEXTURE_SCAN: false,
		SCENE_FRAME:  false,
	}
	categoryMu sync.RWMutex

	logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

func init() {
	// Category overrides via environment variable.
	// Format: ASSETVIEW_DEBUG=THUMB,PREVIEW or ASSETVIEW_DEBUG=all or =none
	if env := os.Getenv("ASSETVIEW_DEBUG"); env != "" {
		categoryMu.Lock()
		defer categoryMu.Unlock()

		env = strings.ToUpper(env)
		switch env {
		case "ALL":
			for cat := range enabledCategories {
				enabledCategories[cat] = true
			}
		case "NONE":
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
		default:
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
			for _, cat := range strings.Split(env, ",") {
				cat = strings.TrimSpace(cat)
				enabledCategories[Category(cat)] = true
			}
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}

	msg := fmt.Sprintf(format, args...)
	logger.Printf("[%s] %s", cat, msg)
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables all debug categories including verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}
