package appid

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

const (
	iconKeyLength = 16
	iconExt       = ".png"
)

// FromPath returns the identity of a filesystem application: its canonical
// absolute path. Symlinks are resolved when possible so that the same install
// reached through different links keeps one identity across rescans.
func FromPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}

// IconKey returns the icon cache file name for an identity.
func IconKey(appID string) string {
	sum := md5.Sum([]byte(appID))
	return hex.EncodeToString(sum[:])[:iconKeyLength] + iconExt
}

// IconPath returns where the icon for appID is cached inside iconDir.
func IconPath(iconDir, appID string) string {
	return filepath.Join(iconDir, IconKey(appID))
}
