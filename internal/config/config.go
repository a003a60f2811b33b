package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Server     ServerConfig    `json:"server"`
	Browse     BrowseConfig    `json:"browse"`
	Thumbnails ThumbnailConfig `json:"thumbnails"`
	Preview    PreviewConfig   `json:"preview"`
	Watcher    WatcherConfig   `json:"watcher"`
	Store      StoreConfig     `json:"store"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `json:"addr"` // Listen address, e.g. "127.0.0.1:8606"
	Root string `json:"root"` // Asset root directory; browsing is confined to it
}

// BrowseConfig holds directory listing settings
type BrowseConfig struct {
	ShowDotfiles   bool `json:"showDotfiles"`
	FollowSymlinks bool `json:"followSymlinks"`
}

// ThumbnailConfig holds thumbnail generation and cache settings
type ThumbnailConfig struct {
	CacheEntries int `json:"cacheEntries"` // Maximum cached thumbnails
	DefaultSize  int `json:"defaultSize"`  // Pixel size when the request omits one
	MaxSize      int `json:"maxSize"`      // Largest size a request may ask for
}

// PreviewConfig holds model load queue settings
type PreviewConfig struct {
	MaxConcurrent    int `json:"maxConcurrent"`    // In-flight load bound
	MaxLoaded        int `json:"maxLoaded"`        // Resident loaded-scene bound
	IdleThresholdSec int `json:"idleThresholdSec"` // Seconds unused before a scene is evictable
	SweepIntervalSec int `json:"sweepIntervalSec"` // Seconds between eviction sweeps
	FrameIntervalMs  int `json:"frameIntervalMs"`  // Render loop tick interval
	FrameSize        int `json:"frameSize"`        // Rendered frame edge in pixels
}

// WatcherConfig holds filesystem watcher settings
type WatcherConfig struct {
	Enabled    bool `json:"enabled"`
	DebounceMs int  `json:"debounceMs"`
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	Path       string `json:"path"`       // SQLite database path
	MaxRecents int    `json:"maxRecents"` // Recent-path history cap
}

// IdleThreshold returns the idle eviction threshold as a duration.
func (p PreviewConfig) IdleThreshold() time.Duration {
	return time.Duration(p.IdleThresholdSec) * time.Second
}

// SweepInterval returns the eviction sweep interval as a duration.
func (p PreviewConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalSec) * time.Second
}

// FrameInterval returns the render loop tick interval as a duration.
func (p PreviewConfig) FrameInterval() time.Duration {
	return time.Duration(p.FrameIntervalMs) * time.Millisecond
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8606",
			Root: home,
		},
		Browse: BrowseConfig{
			ShowDotfiles:   false,
			FollowSymlinks: true,
		},
		Thumbnails: ThumbnailConfig{
			CacheEntries: 100,
			DefaultSize:  128,
			MaxSize:      512,
		},
		Preview: PreviewConfig{
			MaxConcurrent:    4,
			MaxLoaded:        15,
			IdleThresholdSec: 180,
			SweepIntervalSec: 30,
			FrameIntervalMs:  100,
			FrameSize:        320,
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 200,
		},
		Store: StoreConfig{
			Path:       filepath.Join(home, ".config", "assetview", "assetview.db"),
			MaxRecents: 50,
		},
	}
}

// ConfigPath returns the config file path: ~/.config/assetview/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "assetview", "config.json")
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		m.path = ConfigPath()
	}
	m.parseErr = nil

	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", configDir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("Config: failed to read %s: %v", m.path, err)
		return err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// Store error for later display, use defaults
		log.Printf("Config: JSON parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}

	log.Printf("Config: loaded from %s", m.path)
	m.config = &cfg
	return nil
}

// SetPath overrides the config file location (must be called before Load)
func (m *Manager) SetPath(path string) {
	m.mu.Lock()
	m.path = path
	m.mu.Unlock()
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Update applies an in-memory mutation to the configuration. It does
// not persist the result; callers that want the change on disk call
// Save afterwards.
func (m *Manager) Update(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = DefaultConfig()
	}
	fn(m.config)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}
