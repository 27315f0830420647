package index

import (
	"time"

	"github.com/0xADE/ade-launchd/internal/appid"
	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/store"
)

// Enrich turns persisted records into working-set entries: aliases are
// joined by launch path (or app_id), icon paths are derived from the icon
// cache directory and usage recency is computed against now. Records are
// not modified.
func Enrich(records []store.Record, aliases map[string]string, iconDir string, now time.Time) []apps.Application {
	set := make([]apps.Application, 0, len(records))
	for _, r := range records {
		app := r.Application()
		if alias, ok := aliases[app.Path]; ok {
			app.Alias = alias
		} else if alias, ok := aliases[app.AppID]; ok {
			app.Alias = alias
		}
		if iconDir != "" {
			app.IconPath = appid.IconPath(iconDir, app.AppID)
		}
		app.UsageRecencyScore = apps.RecencyScore(app.UsageCount, app.LastUsed, now)
		set = append(set, app)
	}
	return set
}
