package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// DefaultIntervalMinutes is the default minimum time between full scans.
const DefaultIntervalMinutes = 1440

// Alias overrides the display name of the application launched from Path.
type Alias struct {
	Path  string `yaml:"path"`
	Alias string `yaml:"alias"`
}

// Settings is the user-editable settings file. Keys missing from the file
// keep their defaults.
type Settings struct {
	ApplicationSearchPathList        []string `yaml:"application_search_path_list"`
	ApplicationSearchIntervalMinutes int      `yaml:"application_search_interval_on_startup_minute"`
	ApplicationNameAliases           []Alias  `yaml:"application_name_aliases"`
	Extensions                       []string `yaml:"extensions,omitempty"`
	IncludeExecutables               bool     `yaml:"include_executables,omitempty"`
	RegistryScript                   string   `yaml:"registry_script,omitempty"`
	IconScript                       string   `yaml:"icon_script,omitempty"`
	LogLevel                         string   `yaml:"log_level"`
}

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		ApplicationSearchPathList:        defaultSearchPaths(),
		ApplicationSearchIntervalMinutes: DefaultIntervalMinutes,
		ApplicationNameAliases:           []Alias{},
		LogLevel:                         "info",
	}
}

func defaultSearchPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\ProgramData\Microsoft\Windows\Start Menu\Programs`,
			filepath.Join(os.Getenv("APPDATA"), `Microsoft\Windows\Start Menu\Programs`),
			"WindowsStoreApp",
		}
	}
	return []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
		"~/.local/share/applications",
		"~/Applications",
	}
}

// LoadSettings reads the settings file at path. A missing file is created
// with the defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return Settings{}, errNoSettingsPath
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		settings := DefaultSettings()
		if err := SaveSettings(path, settings); err != nil {
			return Settings{}, err
		}
		return settings, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	return ParseSettings(data)
}

// ParseSettings decodes settings, keeping defaults for absent keys.
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()
	if len(bytes.TrimSpace(data)) == 0 {
		return settings, nil
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if settings.ApplicationSearchIntervalMinutes < 0 {
		return Settings{}, fmt.Errorf("parse settings: negative application_search_interval_on_startup_minute %d",
			settings.ApplicationSearchIntervalMinutes)
	}
	return settings, nil
}

// SaveSettings writes settings to path, creating its directory.
func SaveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s Settings) clone() Settings {
	out := s
	out.ApplicationSearchPathList = append([]string(nil), s.ApplicationSearchPathList...)
	out.ApplicationNameAliases = append([]Alias(nil), s.ApplicationNameAliases...)
	out.Extensions = append([]string(nil), s.Extensions...)
	return out
}
