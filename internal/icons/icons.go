package icons

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/0xADE/ade-launchd/internal/appid"
	"github.com/0xADE/ade-launchd/internal/helper"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/store"
)

// Placeholders substituted into the icon script.
const (
	SourcesPlaceholder = "{SOURCE_PATH_ARR}"
	OutputsPlaceholder = "{OUTPUT_PATH_ARR}"
)

// IconDirEnv names the icon cache directory for icon scripts. The script also
// runs with that directory as its working directory.
const IconDirEnv = "ADE_ICON_DIR"

// DefaultScript extracts an icon per source into the matching output path.
// Sources are file paths or store package family names.
const DefaultScript = `Add-Type -AssemblyName System.Drawing
$sources = @({SOURCE_PATH_ARR})
$outputs = @({OUTPUT_PATH_ARR})
for ($i = 0; $i -lt $sources.Count; $i++) {
    $source = $sources[$i]
    $output = $outputs[$i]
    try {
        if (Test-Path -LiteralPath $source) {
            $icon = [System.Drawing.Icon]::ExtractAssociatedIcon($source)
            $icon.ToBitmap().Save($output, [System.Drawing.Imaging.ImageFormat]::Png)
        } else {
            $package = Get-AppxPackage -Name $source | Select-Object -First 1
            if ($package) {
                $manifest = Get-AppxPackageManifest $package
                $logo = $manifest.Package.Properties.Logo
                $candidates = Get-ChildItem -LiteralPath (Split-Path (Join-Path $package.InstallLocation $logo)) -Filter "$([IO.Path]::GetFileNameWithoutExtension($logo))*.png" |
                    Sort-Object Length -Descending
                if ($candidates) { Copy-Item -LiteralPath $candidates[0].FullName -Destination $output -Force }
            }
        }
    } catch {
        Write-Error "icon for ${source}: $_"
    }
}
`

// Generator asks the helper process to render icons into the cache directory.
type Generator struct {
	Helper  *helper.Helper
	Script  string
	IconDir string
	Logger  *logx.Logger
}

// New creates a generator using the default script.
func New(h *helper.Helper, iconDir string, logger *logx.Logger) *Generator {
	return &Generator{Helper: h, Script: DefaultScript, IconDir: iconDir, Logger: logger}
}

// LoadScript reads an icon script from path, or returns the default script
// when path is empty.
func LoadScript(path string) (string, error) {
	if path == "" {
		return DefaultScript, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read icon script: %w", err)
	}
	return string(data), nil
}

// Source returns what the icon is extracted from: the file itself, or the
// package family part of a store package identifier.
func Source(path string) string {
	if strings.ContainsAny(path, `/\`) {
		return path
	}
	family, _, _ := strings.Cut(path, "_")
	return family
}

// Generate renders icons for records. Callers pass only newly added records;
// existing icons are left alone.
func (g *Generator) Generate(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	if g.Helper == nil {
		return fmt.Errorf("icons: no helper configured")
	}
	if err := os.MkdirAll(g.IconDir, 0o755); err != nil {
		return fmt.Errorf("icons: create cache dir: %w", err)
	}

	sources := make([]string, 0, len(records))
	outputs := make([]string, 0, len(records))
	for _, r := range records {
		sources = append(sources, Source(r.Path))
		outputs = append(outputs, appid.IconPath(g.IconDir, r.AppID))
	}

	g.Logger.Infof("Generating icons for %d applications", len(records))
	result, err := g.Helper.RunWith(ctx, g.Render(sources, outputs), helper.RunOptions{
		Dir: g.IconDir,
		Env: []string{IconDirEnv + "=" + g.IconDir},
	})
	if err != nil {
		return fmt.Errorf("icons: %w", err)
	}
	g.Logger.Debugf("Icon helper output: %s", strings.TrimSpace(result.Stdout))
	return nil
}

// Render fills the script placeholders with quoted path lists.
func (g *Generator) Render(sources, outputs []string) string {
	script := g.Script
	if script == "" {
		script = DefaultScript
	}
	return strings.NewReplacer(
		SourcesPlaceholder, quoteList(sources),
		OutputsPlaceholder, quoteList(outputs),
	).Replace(script)
}

// quoteList renders single-quoted PowerShell literals separated by commas.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return strings.Join(quoted, ",")
}
