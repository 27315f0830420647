package desktop

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	Ext          = ".desktop"
	entrySection = "Desktop Entry"
)

// Entry is the part of a .desktop file the launcher cares about.
type Entry struct {
	Name      string            // Default name
	Names     map[string]string // Localized names (locale -> name)
	Exec      string            // Exec command
	Terminal  bool              // Whether to run in terminal
	NoDisplay bool              // Hidden from menus
	Path      string            // Path to .desktop file
}

// ParseFile parses the [Desktop Entry] section of a .desktop file.
func ParseFile(path string) (*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry := &Entry{
		Path:  path,
		Names: make(map[string]string),
	}

	scanner := bufio.NewScanner(file)
	var inDesktopEntry bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inDesktopEntry = strings.Trim(line, "[]") == entrySection
			continue
		}

		if !inDesktopEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			entry.Name = value
		case "Exec":
			entry.Exec = value
		case "Terminal":
			entry.Terminal = strings.EqualFold(value, "true")
		case "NoDisplay":
			entry.NoDisplay = strings.EqualFold(value, "true")
		default:
			if strings.HasPrefix(key, "Name[") && strings.HasSuffix(key, "]") {
				locale := key[5 : len(key)-1]
				entry.Names[locale] = value
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if entry.Name == "" && entry.Exec == "" {
		return nil, fmt.Errorf("%s: missing required fields", path)
	}

	if entry.Name == "" {
		entry.Name = strings.TrimSuffix(filepath.Base(path), Ext)
	}

	return entry, nil
}

// LocalizedName returns the name for locale, falling back to the language
// part ("de" from "de_DE" or "de-DE") and then to the default name.
func (e *Entry) LocalizedName(locale string) string {
	if locale == "" {
		return e.Name
	}

	if name, ok := e.Names[locale]; ok {
		return name
	}

	if idx := strings.IndexAny(locale, "_-"); idx > 0 {
		if name, ok := e.Names[locale[:idx]]; ok {
			return name
		}
	}

	return e.Name
}

// Command returns the Exec line with field codes removed and whitespace
// collapsed.
func (e *Entry) Command() string {
	return strings.Join(strings.Fields(removeFieldCodes(e.Exec)), " ")
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}
