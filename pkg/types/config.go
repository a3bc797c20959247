package types

// Config is the on-disk configuration shape. Files may be JSON (with
// comments), YAML, or a .env style overlay; all map onto this struct.
type Config struct {
	Schema         string         `json:"$schema,omitempty" yaml:"-"`
	Host           string         `json:"host,omitempty" yaml:"host,omitempty"`
	Port           int            `json:"port,omitempty" yaml:"port,omitempty"`
	Workspace      string         `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	DataDir        string         `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`
	LogLevel       string         `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	PingInterval   string         `json:"pingInterval,omitempty" yaml:"pingInterval,omitempty"`
	AllowedOrigins []string       `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
	Persist        *bool          `json:"persist,omitempty" yaml:"persist,omitempty"`
	Watcher        *WatcherConfig `json:"watcher,omitempty" yaml:"watcher,omitempty"`
}

// WatcherConfig controls the workspace file watcher.
type WatcherConfig struct {
	Enabled  *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Debounce string   `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	Ignore   []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// PersistEnabled reports whether source state should be written to
// disk. Persistence defaults to on.
func (c *Config) PersistEnabled() bool {
	return c.Persist == nil || *c.Persist
}

// WatcherEnabled reports whether the workspace watcher should run.
// The watcher defaults to on; a watcher block can switch it off.
func (c *Config) WatcherEnabled() bool {
	if c.Watcher == nil || c.Watcher.Enabled == nil {
		return true
	}
	return *c.Watcher.Enabled
}
