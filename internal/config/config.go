package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/heft/internal/config/layer"
	"github.com/dshills/heft/internal/config/loader"
	"github.com/dshills/heft/internal/config/notify"
	"github.com/dshills/heft/internal/config/watcher"
)

// Config provides unified access to the Heft configuration system.
// It manages configuration loading, live reloading, and change notification.
type Config struct {
	mu sync.RWMutex

	// Layer manager for merged configuration
	layers *layer.Manager

	// File watcher for live reload
	watcher *watcher.Watcher

	// Change notifier
	notifier *notify.Notifier

	// Configuration paths
	userConfigDir  string
	userConfigPath string

	// settingsPath is the resolved settings file being watched after Load.
	settingsPath string

	// Options
	enableWatcher bool

	// configErrors stores errors encountered during configuration access.
	// This allows detection of type mismatches and other config problems.
	configErrors map[string]error
}

// Option configures a Config instance.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithUserConfigPath sets an explicit settings file path, bypassing
// discovery in the user configuration directory. The format is chosen
// by file extension.
func WithUserConfigPath(path string) Option {
	return func(c *Config) {
		c.userConfigPath = path
	}
}

// WithWatcher enables file watching for live reload.
func WithWatcher(enable bool) Option {
	return func(c *Config) {
		c.enableWatcher = enable
	}
}

// New creates a new Config instance with the given options.
func New(opts ...Option) *Config {
	c := &Config{
		layers:        layer.NewManager(),
		notifier:      notify.New(),
		enableWatcher: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Set default paths
	if c.userConfigDir == "" {
		c.userConfigDir = defaultUserConfigDir()
	}

	// Initialize file watcher
	if c.enableWatcher {
		c.watcher = watcher.New()
		c.watcher.OnChange(c.handleFileChange)
	}

	return c
}

// Load loads configuration from all sources.
func (c *Config) Load(_ context.Context) error {
	c.mu.Lock()

	// Load defaults layer
	c.loadDefaults()

	// Load user settings
	if err := c.loadUserSettings(); err != nil {
		c.mu.Unlock()
		return err
	}

	// Load environment variables
	if err := c.loadEnvironment(); err != nil {
		c.mu.Unlock()
		return err
	}

	// Release lock before starting watcher to avoid deadlock
	// (watcher callbacks acquire the same lock)
	w := c.watcher
	c.mu.Unlock()

	// Start file watcher outside the lock. Live reload is best effort;
	// a watcher that fails to start leaves the loaded config in place.
	if w != nil {
		_ = w.Start()
	}

	return nil
}

// Close shuts down the configuration system.
func (c *Config) Close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if c.notifier != nil {
		c.notifier.Close()
	}
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.layers.GetEffectiveValue(path)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
	}
}

// GetInt64 returns a 64-bit integer value at the given path. Size
// thresholds expressed in bytes need the full range.
func (c *Config) GetInt64(path string) (int64, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int64", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetFloat returns a float64 value at the given path.
func (c *Config) GetFloat(path string) (float64, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "float64", Actual: typeName(v)}
	}
}

// GetStringSlice returns a string slice at the given path.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}

	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// Set sets a value at the given path in the user settings layer. The
// layer is created if no settings file was loaded. Observers receive
// the effective merged values before and after the change.
func (c *Config) Set(path string, value any) error {
	if path == "" {
		return ErrInvalidPath
	}

	c.mu.Lock()

	userName := layer.StandardLayerName(layer.SourceUser)
	if c.layers.GetLayer(userName) == nil {
		c.layers.AddLayer(layer.NewLayer(userName, layer.SourceUser, layer.PriorityUser))
	}

	oldValue, _ := c.layers.GetEffectiveValue(path)
	if err := c.layers.Set(userName, path, value); err != nil {
		c.mu.Unlock()
		return err
	}
	newValue, _ := c.layers.GetEffectiveValue(path)

	c.mu.Unlock()

	// Observers run synchronously on this goroutine and may call back
	// into Config, so notify without holding the lock.
	c.notifier.NotifySet(path, oldValue, newValue, "user")

	return nil
}

// SetSession sets a value in the session layer, which overrides every
// other source. Command line --set overrides land here.
func (c *Config) SetSession(path string, value any) error {
	if path == "" {
		return ErrInvalidPath
	}

	c.mu.Lock()
	oldValue, _ := c.layers.GetEffectiveValue(path)
	c.layers.SetInSession(path, value)
	newValue, _ := c.layers.GetEffectiveValue(path)
	c.mu.Unlock()

	c.notifier.NotifySet(path, oldValue, newValue, "session")

	return nil
}

// Subscribe registers an observer for all configuration changes.
func (c *Config) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes to a specific path.
func (c *Config) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return c.notifier.SubscribePath(path, observer)
}

// Merged returns the fully merged configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.Merge()
}

// Origin returns the name of the layer that provides the value at the
// given path, or "" if the path is not set anywhere.
func (c *Config) Origin(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.WhichLayer(path)
}

// SettingsPath returns the settings file in use after Load.
func (c *Config) SettingsPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settingsPath
}

// loadDefaults loads the default configuration layer.
func (c *Config) loadDefaults() {
	name := layer.StandardLayerName(layer.SourceBuiltin)
	l := layer.NewLayerWithData(name, layer.SourceBuiltin, layer.PriorityBuiltin, defaultConfig())
	c.layers.AddLayer(l)
}

// loadUserSettings loads the user settings file. An explicit path set
// with WithUserConfigPath wins; otherwise the configuration directory
// is probed for a settings file. A missing file is not an error, the
// path is still watched so a file created later is picked up.
func (c *Config) loadUserSettings() error {
	path := c.userConfigPath
	if path == "" {
		path = c.discoverSettingsPath()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	data, err := loaderFor(path).Load()
	if err != nil {
		return err
	}

	if data != nil {
		name := layer.StandardLayerName(layer.SourceUser)
		l := layer.NewLayerWithData(name, layer.SourceUser, layer.PriorityUser, data)
		c.layers.AddLayer(l)
	}

	c.settingsPath = path
	if c.watcher != nil {
		_ = c.watcher.Watch(path)
	}

	return nil
}

// discoverSettingsPath returns the first settings file that exists in
// the user configuration directory. When none exists yet, the TOML
// location is returned so the watcher picks up a file created later.
func (c *Config) discoverSettingsPath() string {
	candidates := []string{"settings.toml", "settings.json", "settings.yaml", "settings.yml"}
	for _, name := range candidates {
		path := filepath.Join(c.userConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(c.userConfigDir, candidates[0])
}

// loadEnvironment loads configuration from environment variables.
func (c *Config) loadEnvironment() error {
	envLoader := loader.NewEnvLoader("HEFT_")
	data, err := envLoader.Load()
	if err != nil {
		return err
	}

	if len(data) > 0 {
		name := layer.StandardLayerName(layer.SourceEnv)
		l := layer.NewLayerWithData(name, layer.SourceEnv, layer.PriorityEnv, data)
		c.layers.AddLayer(l)
	}

	return nil
}

// handleFileChange handles file change events from the watcher. The
// user settings layer is replaced with the reloaded file; reloads that
// change no value are dropped. A file that no longer parses keeps the
// last good configuration.
func (c *Config) handleFileChange(event watcher.Event) {
	c.mu.RLock()
	settingsPath := c.settingsPath
	c.mu.RUnlock()

	if settingsPath == "" || event.Path != settingsPath {
		return
	}

	userName := layer.StandardLayerName(layer.SourceUser)

	// A deleted settings file drops the user layer entirely.
	if event.Op == watcher.OpRemove {
		c.mu.Lock()
		removed := c.layers.RemoveLayer(userName)
		c.mu.Unlock()
		if removed {
			c.notifier.NotifyReload(event.Path)
		}
		return
	}

	data, err := loaderFor(event.Path).Load()
	if err != nil || data == nil {
		return
	}

	c.mu.Lock()

	var current map[string]any
	existing := c.layers.GetLayer(userName)
	if existing != nil {
		current = existing.Data
	}
	added, modified, removed := layer.DiffMaps(current, data)
	if len(added) == 0 && len(modified) == 0 && len(removed) == 0 {
		c.mu.Unlock()
		return
	}

	if existing == nil {
		c.layers.AddLayer(layer.NewLayerWithData(userName, layer.SourceUser, layer.PriorityUser, data))
	} else {
		_ = c.layers.UpdateLayer(userName, data)
	}

	c.mu.Unlock()

	c.notifier.NotifyReload(event.Path)
}

// loaderFor picks a file loader by extension. TOML is the default.
func loaderFor(path string) loader.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loader.NewJSONLoader(path)
	case ".yaml", ".yml":
		return loader.NewYAMLLoader(path)
	default:
		return loader.NewTOMLLoader(path)
	}
}

// defaultUserConfigDir returns the default user configuration directory.
func defaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "heft")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "heft")
}

// defaultConfig returns the default configuration values.
func defaultConfig() map[string]any {
	return map[string]any{
		"bigdoc": map[string]any{
			"filesize":     2,
			"filesizeUnit": "MiB",
			"pattern":      "*",
			"features": []string{
				"syntax", "highlight", "matchparen", "wordlight",
				"indentguides", "editoropts", "filetype", "lsp",
			},
			"predicateScript": "",
			"featureScripts":  []string{},
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return "unknown"
	}
}
