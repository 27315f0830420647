package apps

import "time"

const secondsPerDay = 86400

// Application is one entry of the working set: a persisted record plus the
// session-only fields computed when the set is loaded.
type Application struct {
	AppID string // Stable identity (canonical path or registry id)
	Name  string // Name as discovered
	Path  string // Launch target

	UsageCount int64
	LastUsed   int64 // Unix seconds, 0 when never launched
	AddedDate  int64 // Unix seconds

	Alias             string  // Configured display override, empty when none
	IconPath          string  // Cached icon location, empty until resolved
	UsageRecencyScore float64 // Derived on load, never persisted
}

// New creates an application as produced by a scanner.
func New(name, appID, path string) Application {
	return Application{
		Name:  name,
		AppID: appID,
		Path:  path,
	}
}

// DisplayName returns the alias when one is configured, otherwise the name.
func (a Application) DisplayName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Name
}

// RecencyScore computes usageCount / (daysSinceLastUsed + 1). Days are whole
// days; an unset or future lastUsed counts as zero days.
func RecencyScore(usageCount, lastUsed int64, now time.Time) float64 {
	var days int64
	if nowUnix := now.Unix(); lastUsed > 0 && nowUnix > lastUsed {
		days = (nowUnix - lastUsed) / secondsPerDay
	}
	return float64(usageCount) / (float64(days) + 1.0)
}
