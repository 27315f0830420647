package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/0xADE/ade-launchd/internal/appid"
	"github.com/0xADE/ade-launchd/internal/store"
)

const settingsrc = "~/.config/ade/launchd.yaml"

var (
	globalConfig *Config
	globalErr    error
	once         sync.Once
)

// Env holds settings taken from the environment at startup.
type Env struct {
	UnixSocket   string `envconfig:"ADE_LAUNCHD_SOCK"`
	DBPath       string `envconfig:"ADE_LAUNCHD_DB"`
	IconDir      string `envconfig:"ADE_LAUNCHD_ICON_DIR"`
	Helper       string `envconfig:"ADE_LAUNCHD_HELPER" default:"pwsh -NoProfile -NonInteractive -File"`
	LogLevel     string `envconfig:"ADE_LAUNCHD_LOG_LEVEL"`
	LogFile      string `envconfig:"ADE_LAUNCHD_LOG_FILE"`
	SettingsPath string `envconfig:"ADE_LAUNCHD_SETTINGS"`
	Terminal     string `envconfig:"ADE_DEFAULT_TERM"`
}

// Snapshot is the immutable configuration handed to the index controller.
type Snapshot struct {
	SearchPaths    []string
	Interval       time.Duration
	Aliases        map[string]string // launch path -> display alias
	Extensions     []string
	Executables    bool
	RegistryScript string
	IconScript     string
	IconDir        string
}

// Config combines the environment with the settings file.
type Config struct {
	env Env

	mu       sync.RWMutex
	settings Settings
}

// LoadEnv reads the environment and fills in path defaults.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return env, err
	}

	if env.UnixSocket == "" {
		currentUser, err := user.Current()
		if err != nil {
			return env, err
		}
		env.UnixSocket = fmt.Sprintf("/tmp/ade-%s/launchd", currentUser.Uid)
	}
	if env.DBPath == "" {
		dbPath, err := store.DefaultDBPath()
		if err != nil {
			return env, err
		}
		env.DBPath = dbPath
	}
	if env.IconDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return env, fmt.Errorf("get cache dir: %w", err)
		}
		env.IconDir = filepath.Join(cacheDir, "ade", "icons")
	}
	if env.SettingsPath == "" {
		env.SettingsPath = settingsrc
	}

	env.UnixSocket = expandPath(env.UnixSocket)
	env.DBPath = expandPath(env.DBPath)
	env.IconDir = expandPath(env.IconDir)
	env.SettingsPath = expandPath(env.SettingsPath)
	env.LogFile = expandPath(env.LogFile)
	return env, nil
}

// New loads the settings file named by env, creating it with defaults when
// it does not exist.
func New(env Env) (*Config, error) {
	c := &Config{env: env}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Init loads the process-wide configuration from the environment.
func Init() error {
	once.Do(func() {
		var env Env
		env, globalErr = LoadEnv()
		if globalErr != nil {
			return
		}
		globalConfig, globalErr = New(env)
	})
	return globalErr
}

// Get returns the process-wide configuration, initializing it on first use.
func Get() *Config {
	if globalConfig == nil {
		Init()
	}
	return globalConfig
}

// Reload re-reads the settings file. On error the previous settings stay.
func (c *Config) Reload() error {
	settings, err := LoadSettings(c.env.SettingsPath)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	return nil
}

// Env returns the environment part of the configuration.
func (c *Config) Env() Env {
	return c.env
}

// Settings returns a copy of the current settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.clone()
}

// Snapshot returns the controller configuration for the current settings.
func (c *Config) Snapshot() Snapshot {
	s := c.Settings()

	aliases := make(map[string]string, len(s.ApplicationNameAliases))
	for _, a := range s.ApplicationNameAliases {
		if a.Path == "" || a.Alias == "" {
			continue
		}
		aliases[aliasKey(a.Path)] = a.Alias
	}

	return Snapshot{
		SearchPaths:    s.ApplicationSearchPathList,
		Interval:       time.Duration(s.ApplicationSearchIntervalMinutes) * time.Minute,
		Aliases:        aliases,
		Extensions:     s.Extensions,
		Executables:    s.IncludeExecutables,
		RegistryScript: expandPath(s.RegistryScript),
		IconScript:     expandPath(s.IconScript),
		IconDir:        c.env.IconDir,
	}
}

// LogLevel returns the environment level if set, otherwise the settings one.
func (c *Config) LogLevel() string {
	if c.env.LogLevel != "" {
		return c.env.LogLevel
	}
	return c.Settings().LogLevel
}

// UnixSocket returns the Unix socket path
func (c *Config) UnixSocket() string {
	return c.env.UnixSocket
}

// Terminal returns the default terminal command
func (c *Config) Terminal() string {
	if c.env.Terminal != "" {
		return c.env.Terminal
	}
	if term := os.Getenv("TERMINAL"); term != "" {
		return term
	}
	return "xterm"
}

// SettingsPath returns the location of the settings file.
func (c *Config) SettingsPath() string {
	return c.env.SettingsPath
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// aliasKey keys filesystem aliases by application identity. Registry ids
// are used as written.
func aliasKey(path string) string {
	path = expandPath(path)
	if !filepath.IsAbs(path) {
		return path
	}
	return appid.FromPath(path)
}

var errNoSettingsPath = errors.New("settings path is empty")
