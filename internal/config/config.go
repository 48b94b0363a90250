// Package config parses condawatch.toml and the conda environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/watch"
)

// FileName is the name of the configuration file.
const FileName = "condawatch.toml"

// DefaultStoreFile is the base name of the Turtle store.
const DefaultStoreFile = "conda-watch.hidden.ttl"

// Environment variables read by condawatch.
const (
	EnvConfig   = "CONDAWATCH_CONFIG"
	EnvLogLevel = "CONDAWATCH_LOG_LEVEL"
)

// Config is the top-level condawatch.toml configuration.
type Config struct {
	Store         StoreConfig         `toml:"store"`
	Conda         CondaConfig         `toml:"conda"`
	Watch         WatchConfig         `toml:"watch"`
	Log           LogConfig           `toml:"log"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// StoreConfig locates the observation store.
type StoreConfig struct {
	Path string `toml:"path"` // empty = <data dir>/conda-watch.hidden.ttl
	Lock bool   `toml:"lock"` // hold an exclusive lock while recording
}

// CondaConfig controls the conda invocation.
type CondaConfig struct {
	Executable  string `toml:"executable"`
	HeaderLines int    `toml:"header_lines"` // lines skipped at the top of `conda list`
}

// WatchConfig lists the commands that trigger a recording.
type WatchConfig struct {
	Commands []string `toml:"commands"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level string `toml:"level"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL         string `toml:"url"`
	Title       string `toml:"title"`
	OnUnchanged bool   `toml:"on_unchanged"` // also notify when the snapshot did not change
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Conda.Executable) == "" {
		errs = append(errs, fmt.Errorf("conda.executable must not be empty"))
	}
	if c.Conda.HeaderLines < 0 {
		errs = append(errs, fmt.Errorf("conda.header_lines must be >= 0"))
	}

	watched := 0
	for _, cmd := range c.Watch.Commands {
		if strings.TrimSpace(cmd) != "" {
			watched++
		}
	}
	if watched == 0 {
		errs = append(errs, fmt.Errorf("watch.commands must name at least one command"))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level %q is not a valid level (trace, debug, info, warn, error)", c.Log.Level))
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

// Defaults returns a Config with the built-in defaults.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Path: "",
			Lock: true,
		},
		Conda: CondaConfig{
			Executable:  "conda",
			HeaderLines: 3,
		},
		Watch: WatchConfig{
			Commands: append([]string(nil), watch.DefaultCommands...),
		},
		Log: LogConfig{
			Level: "warn",
		},
		Notifications: NotificationsConfig{
			URL:         "",
			Title:       "condawatch",
			OnUnchanged: false,
		},
	}
}

// Load reads condawatch.toml from path. A missing file yields the defaults.
// Returns an error if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	return &cfg, nil
}

// ApplyEnv lets environment variables override file settings.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if lvl := getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
}

// StorePath returns the configured store path with a leading "~/" expanded,
// or the default location in the data directory.
func (c *Config) StorePath(getenv func(string) string) string {
	if c.Store.Path == "" {
		return filepath.Join(DataDir(getenv), DefaultStoreFile)
	}
	return expandHome(c.Store.Path, getenv)
}

// Path returns the configuration file location: $CONDAWATCH_CONFIG, or
// condawatch.toml under $XDG_CONFIG_HOME (default ~/.config).
func Path(getenv func(string) string) string {
	if p := getenv(EnvConfig); p != "" {
		return expandHome(p, getenv)
	}
	return filepath.Join(baseDir(getenv, "XDG_CONFIG_HOME", ".config"), "condawatch", FileName)
}

// DataDir returns the directory holding the default store: condawatch under
// $XDG_DATA_HOME (default ~/.local/share).
func DataDir(getenv func(string) string) string {
	return filepath.Join(baseDir(getenv, "XDG_DATA_HOME", filepath.Join(".local", "share")), "condawatch")
}

func baseDir(getenv func(string) string, xdgVar, fallback string) string {
	if dir := getenv(xdgVar); dir != "" {
		return dir
	}
	return filepath.Join(getenv("HOME"), fallback)
}

func expandHome(p string, getenv func(string) string) string {
	if p == "~" {
		return getenv("HOME")
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(getenv("HOME"), p[2:])
	}
	return p
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// InitFile writes a default condawatch.toml template to path, creating parent
// directories as needed. It refuses to overwrite an existing file.
func InitFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists at %s", FileName, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

const template = `# condawatch.toml: condawatch configuration

[store]
path = ""    # Turtle store; empty = $XDG_DATA_HOME/condawatch/conda-watch.hidden.ttl
lock = true  # exclusive lock on <path>.lock while recording

[conda]
executable = "conda"
header_lines = 3  # lines printed by "conda list" before the first package

[watch]
commands = ["conda install", "conda remove", "conda update"]

[log]
level = "warn"  # trace, debug, info, warn, error

[notifications]
url = ""              # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
title = "condawatch"  # X-Title header
on_unchanged = false  # also notify when the environment did not change
`
