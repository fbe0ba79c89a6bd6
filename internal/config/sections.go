package config

// Section accessor methods return snapshot structs. Mutating the returned
// struct does not modify the underlying configuration. Use Config.Set()
// to update configuration values.

// BigDocConfig provides type-safe access to big document detection settings.
type BigDocConfig struct {
	// Filesize is the size threshold, expressed in FilesizeUnit units.
	Filesize int64

	// FilesizeUnit is the unit for Filesize ("MiB" or "bytes").
	FilesizeUnit string

	// Patterns restrict detection to documents whose path matches one of
	// the glob patterns. The setting accepts a single string or a list.
	Patterns []string

	// Features are the feature names disabled for big documents, in the
	// order they are disabled.
	Features []string

	// PredicateScript is an optional Lua predicate, either a chunk of
	// source or a path to a .lua file. Exclusive with Patterns.
	PredicateScript string

	// FeatureScripts are Lua feature definition files loaded at startup.
	FeatureScripts []string
}

// LoggingConfig provides type-safe access to logging settings.
type LoggingConfig struct {
	// Level is the logging verbosity level ("debug", "info", "warn", "error").
	Level string

	// Format is the log format ("text", "json").
	Format string
}

// BigDoc returns type-safe access to big document detection settings.
func (c *Config) BigDoc() BigDocConfig {
	return BigDocConfig{
		Filesize:     c.getInt64Or("bigdoc.filesize", 2),
		FilesizeUnit: c.getStringOr("bigdoc.filesizeUnit", "MiB"),
		Patterns:     c.getPatternsOr("bigdoc.pattern", []string{"*"}),
		Features: c.getStringSliceOr("bigdoc.features", []string{
			"syntax", "highlight", "matchparen", "wordlight",
			"indentguides", "editoropts", "filetype", "lsp",
		}),
		PredicateScript: c.getStringOr("bigdoc.predicateScript", ""),
		FeatureScripts:  c.getStringSliceOr("bigdoc.featureScripts", nil),
	}
}

// Logging returns type-safe access to logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level:  c.getStringOr("logging.level", "info"),
		Format: c.getStringOr("logging.format", "text"),
	}
}

// Helper methods for getting values with defaults.
// These methods only return the default for ErrSettingNotFound.
// Type errors are recorded and return the default to avoid breaking
// callers, but indicate a configuration problem that should be fixed.

func (c *Config) getStringOr(path string, defaultValue string) string {
	v, err := c.GetString(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getInt64Or(path string, defaultValue int64) int64 {
	v, err := c.GetInt64(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getStringSliceOr(path string, defaultValue []string) []string {
	v, err := c.GetStringSlice(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		// Return a copy of the default to prevent mutation
		return copyStrings(defaultValue)
	}
	// Return a copy of the result to enforce snapshot guarantee
	return copyStrings(v)
}

// getPatternsOr reads a glob pattern setting that accepts either a
// single string or a list of strings. An empty string falls back to
// the default.
func (c *Config) getPatternsOr(path string, defaultValue []string) []string {
	v, ok := c.Get(path)
	if !ok {
		return copyStrings(defaultValue)
	}

	switch val := v.(type) {
	case string:
		if val == "" {
			return copyStrings(defaultValue)
		}
		return []string{val}
	case []string:
		return copyStrings(val)
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				c.recordConfigError(path, &TypeError{Path: path, Expected: "string or []string", Actual: typeName(v)})
				return copyStrings(defaultValue)
			}
			result = append(result, s)
		}
		return result
	default:
		c.recordConfigError(path, &TypeError{Path: path, Expected: "string or []string", Actual: typeName(v)})
		return copyStrings(defaultValue)
	}
}

func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	result := make([]string, len(src))
	copy(result, src)
	return result
}

// recordConfigError stores configuration errors for later retrieval.
// Only the first error for each path is recorded to preserve the original cause.
// This helps identify misconfiguration without breaking callers.
func (c *Config) recordConfigError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErrors == nil {
		c.configErrors = make(map[string]error)
	}
	if _, exists := c.configErrors[path]; !exists {
		c.configErrors[path] = err
	}
}

// ConfigErrors returns any configuration errors encountered during access.
// This allows callers to check for misconfigurations after loading.
func (c *Config) ConfigErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.configErrors == nil {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]error, len(c.configErrors))
	for k, v := range c.configErrors {
		result[k] = v
	}
	return result
}

// ClearConfigErrors clears any stored configuration errors.
func (c *Config) ClearConfigErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configErrors = nil
}
