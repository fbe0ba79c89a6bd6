// Package config provides the configuration system for Heft.
//
// The config package manages loading, merging, and providing access to
// all big document detection settings, with live reload and change
// notification.
//
// # Architecture
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Session Overrides       │  ← Highest priority (--set flags)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← HEFT_BIGDOC_FILESIZE, ...
//	├─────────────────────────────┤
//	│  2. User Settings           │  ← ~/.config/heft/settings.{toml,json,yaml}
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: Configuration file loading (TOML, JSON, YAML, environment variables)
//   - layer: Layer management and deep-merge strategies
//   - watcher: File watching for live reload
//   - notify: Change notification and observer pattern
//
// # Basic Usage
//
// Load configuration from default paths:
//
//	cfg := config.New()
//	defer cfg.Close()
//	if err := cfg.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Access typed settings
//	threshold, err := cfg.GetInt64("bigdoc.filesize")
//	unit, err := cfg.GetString("bigdoc.filesizeUnit")
//
//	// Access typed sections
//	bigdoc := cfg.BigDoc()
//	fmt.Println(bigdoc.Filesize, bigdoc.FilesizeUnit)
//
// # Configuration Files
//
// Heft uses TOML as the primary configuration format; JSON and YAML
// settings files are also recognized by extension:
//
//	# ~/.config/heft/settings.toml
//	[bigdoc]
//	filesize = 2
//	filesizeUnit = "MiB"
//	pattern = "*"
//	features = ["syntax", "highlight", "lsp"]
//
//	[logging]
//	level = "info"
//
// # Error Handling
//
// The package defines several error types:
//
//   - ErrSettingNotFound: Setting path doesn't exist
//   - ErrTypeMismatch: Value type doesn't match expected type
//   - ErrInvalidPath: Setting path is malformed
//   - loader.ParseError: Configuration file parsing failed
package config
