package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/helper"
)

// DefaultRegistryScript lists installed store packages that have a start menu
// entry as a JSON array of {name, app_id, package_fullname}.
const DefaultRegistryScript = `$ErrorActionPreference = "Stop"
[Console]::OutputEncoding = [System.Text.Encoding]::UTF8
$packages = @{}
Get-AppxPackage | ForEach-Object { $packages[$_.PackageFamilyName] = $_.PackageFullName }
Get-StartApps | Where-Object { $_.AppID -like "*!*" } | ForEach-Object {
    $family = $_.AppID.Split("!")[0]
    if ($packages.ContainsKey($family)) {
        [PSCustomObject]@{
            name             = $_.Name
            app_id           = $_.AppID
            package_fullname = $packages[$family]
        }
    }
} | ConvertTo-Json -Compress
`

// registryApp is one element of the registry script output.
type registryApp struct {
	Name            string `json:"name"`
	AppID           string `json:"app_id"`
	PackageFullname string `json:"package_fullname"`
}

// LoadRegistryScript reads the script at path, or returns the built-in script
// when path is empty.
func LoadRegistryScript(path string) (string, error) {
	if path == "" {
		return DefaultRegistryScript, nil
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("read registry script: %w", err)
	}
	return string(data), nil
}

func (s *Scanner) scanRegistry(ctx context.Context) ([]apps.Application, error) {
	if s.Helper == nil {
		return nil, errors.New("no helper configured")
	}
	script := s.RegistryScript
	if script == "" {
		script = DefaultRegistryScript
	}

	result, err := s.Helper.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	entries, err := helper.DecodeList[registryApp](s.Helper.Command, result)
	if err != nil {
		return nil, err
	}

	found := make([]apps.Application, 0, len(entries))
	for _, e := range entries {
		if e.AppID == "" {
			s.Logger.Debugf("Skipping registry entry without app_id: %q", e.Name)
			continue
		}
		found = append(found, apps.New(e.Name, e.AppID, e.PackageFullname))
	}
	return found, nil
}
