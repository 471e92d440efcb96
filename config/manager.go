package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Manager owns the JSON config file serve runs from. The file is an overlay:
// keys it omits keep the value of the base config (defaults plus environment)
// the manager was created with, on startup and on every reload.
type Manager struct {
	path     string
	base     Config
	debounce time.Duration

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)
	watching bool

	// set while Update writes the file, so the watcher skips our own write
	selfWrite atomic.Bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	base := *DefaultConfigWithRoot(filepath.Dir(path))
	if options.initialConfig != nil {
		base = *options.initialConfig
	}

	m := &Manager{
		path:     path,
		base:     base,
		debounce: options.debounce,
	}
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// UpdateFromJSON overlays jsonStr on the current config and persists it.
func (m *Manager) UpdateFromJSON(jsonStr string) error {
	cfg := m.Get()
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Update validates, writes and applies cfg. onChange runs before it returns.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}

	m.selfWrite.Store(true)
	err := writeConfigFile(m.path, cfg)
	time.AfterFunc(m.debounce, func() { m.selfWrite.Store(false) })
	if err != nil {
		m.selfWrite.Store(false)
		return err
	}

	m.apply(cfg)
	return nil
}

// Watch calls onChange after every accepted change of the file until ctx
// ends. Changes that fail to parse or validate are logged and ignored.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// the directory is watched so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if m.isConfigEvent(evt) && !m.selfWrite.Load() {
				timer.Reset(m.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config watcher error")
		case <-timer.C:
			m.reload()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) isConfigEvent(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

func (m *Manager) reload() {
	cfg, err := m.load()
	if err != nil {
		log.WithError(err).WithField("path", m.path).Error("config reload failed, keeping previous")
		return
	}
	prev := m.Get()
	changed := ChangedKeys(prev, cfg)
	if len(changed) == 0 {
		return
	}
	log.WithFields(log.Fields{"path": m.path, "changed": changed}).Info("config reloaded")
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
}

// load overlays the file on the base config. A missing file is recreated
// from the base.
func (m *Manager) load() (Config, error) {
	cfg := m.base
	cfg.AllowedOrigins = slices.Clone(m.base.AllowedOrigins)
	err := loadConfigFromFile(m.path, &cfg)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		if err := writeConfigFile(m.path, cfg); err != nil {
			return Config{}, fmt.Errorf("write initial config: %w", err)
		}
		return cfg, nil
	default:
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ChangedKeys lists the JSON keys whose values differ between a and b.
func ChangedKeys(a, b Config) []string {
	var left, right map[string]any
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	_ = json.Unmarshal(ja, &left)
	_ = json.Unmarshal(jb, &right)

	var keys []string
	for k, v := range right {
		if !reflect.DeepEqual(left[k], v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "PainRadar", "config.json"), nil
}

// writeConfigFile replaces path atomically. The file holds API keys, so it
// keeps the 0600 mode of the temp file.
func writeConfigFile(path string, cfg Config) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig sets the base config the file is overlaid on.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}
