package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/internal/appid"
	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/helper"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/scanner/desktop"
)

// Kind tells a scanner where a source's applications come from.
type Kind int

const (
	KindFilesystem Kind = iota
	KindRegistry
)

// Sentinels accepted in the search path list in place of a directory.
const (
	PackageRegistry = "PackageRegistry"
	WindowsStoreApp = "WindowsStoreApp"
)

// DefaultExtensions lists the launchable file types picked up by the
// filesystem walk.
var DefaultExtensions = []string{".exe", ".lnk", ".desktop", ".appimage"}

func (k Kind) String() string {
	switch k {
	case KindFilesystem:
		return "filesystem"
	case KindRegistry:
		return "registry"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source describes one scan source.
type Source struct {
	Kind Kind
	Root string // directory for KindFilesystem, empty for KindRegistry
}

// ParseSource converts an entry of the configured search path list.
func ParseSource(s string) Source {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, PackageRegistry) || strings.EqualFold(trimmed, WindowsStoreApp) {
		return Source{Kind: KindRegistry}
	}
	return Source{Kind: KindFilesystem, Root: expandHome(trimmed)}
}

// ParseSources converts the whole search path list, dropping blank entries.
func ParseSources(list []string) []Source {
	sources := make([]Source, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		sources = append(sources, ParseSource(s))
	}
	return sources
}

func (s Source) String() string {
	if s.Kind == KindRegistry {
		return PackageRegistry
	}
	return s.Root
}

// ScanError reports a source that contributed nothing because it failed.
type ScanError struct {
	Source Source
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Source, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner produces candidate applications from sources.
type Scanner struct {
	Extensions     []string
	Executables    bool // also accept files with an execute bit, whatever their extension
	Helper         *helper.Helper
	RegistryScript string // script run by Helper to list registry packages
	Locale         string // preferred locale for .desktop names
	Logger         *logx.Logger
}

// New creates a scanner with the default extension allow-list.
func New(h *helper.Helper, logger *logx.Logger) *Scanner {
	return &Scanner{
		Extensions:     DefaultExtensions,
		Helper:         h,
		RegistryScript: DefaultRegistryScript,
		Locale:         os.Getenv("LANG"),
		Logger:         logger,
	}
}

// Scan lists the applications of a single source. The returned error, if any,
// is a *ScanError; callers treat it as an empty contribution.
func (s *Scanner) Scan(ctx context.Context, src Source) ([]apps.Application, error) {
	var (
		found []apps.Application
		err   error
	)
	switch src.Kind {
	case KindFilesystem:
		found, err = s.scanFilesystem(ctx, src.Root)
	case KindRegistry:
		found, err = s.scanRegistry(ctx)
	default:
		err = fmt.Errorf("unknown source kind %s", src.Kind)
	}
	if err != nil {
		return nil, &ScanError{Source: src, Err: err}
	}
	return found, nil
}

// ScanAll scans every source concurrently and merges the results in source
// order. Failed sources are logged and contribute nothing; their errors are
// returned for reporting only.
func (s *Scanner) ScanAll(ctx context.Context, sources []Source) ([]apps.Application, []error) {
	results := make([][]apps.Application, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i], errs[i] = s.Scan(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var (
		merged []apps.Application
		failed []error
	)
	for i, src := range sources {
		if errs[i] != nil {
			s.Logger.Warnf("Source %s skipped: %v", src, errs[i])
			failed = append(failed, errs[i])
			continue
		}
		s.Logger.Debugf("Source %s: %d applications", src, len(results[i]))
		merged = append(merged, results[i]...)
	}
	return merged, failed
}

func (s *Scanner) scanFilesystem(ctx context.Context, root string) ([]apps.Application, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	allowed := s.extensionSet()
	var found []apps.Application

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable entry or subtree; keep walking the rest.
			s.Logger.Debugf("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			if !s.Executables || !isExecutable(path, d) {
				return nil
			}
		} else if !isRegularFile(path, d) {
			return nil
		}

		app, ok := s.fileApplication(path, ext)
		if ok {
			found = append(found, app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Scanner) fileApplication(path, ext string) (apps.Application, bool) {
	id := appid.FromPath(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if ext == desktop.Ext {
		entry, err := desktop.ParseFile(path)
		if err != nil {
			s.Logger.Debugf("Skipping desktop entry %s: %v", path, err)
			return apps.Application{}, false
		}
		if entry.NoDisplay {
			return apps.Application{}, false
		}
		name = entry.LocalizedName(localeName(s.Locale))
	}

	return apps.New(name, id, id), true
}

func (s *Scanner) extensionSet() map[string]struct{} {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// isRegularFile accepts regular files and symlinks that point at one.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isExecutable accepts visible regular files with an execute bit set.
func isExecutable(path string, d fs.DirEntry) bool {
	if strings.HasPrefix(d.Name(), ".") {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0o111 != 0
}

// localeName trims encoding and modifier suffixes: "de_DE.UTF-8@euro" -> "de_DE".
func localeName(locale string) string {
	if idx := strings.IndexAny(locale, ".@"); idx >= 0 {
		locale = locale[:idx]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	return locale
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
