package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/ranker"
	"github.com/0xADE/ade-launchd/internal/scanner"
	"github.com/0xADE/ade-launchd/internal/store"
)

// ErrNotReady is returned by operations that need a successful Init first.
var ErrNotReady = errors.New("index: not initialized")

// Controller owns the working set of applications. Searches read the
// current set; refreshes build a new set and swap it in whole.
type Controller struct {
	store  *store.DB
	tools  Tools
	ranker *ranker.Ranker
	logger *logx.Logger

	// Now is the controller clock.
	Now func() time.Time

	// refreshMu serializes Init, ForceRefresh and Reload.
	refreshMu sync.Mutex

	mu         sync.RWMutex
	snap       config.Snapshot
	scanner    SourceScanner
	icons      IconGenerator
	set        []apps.Application
	ready      bool
	refreshing bool
}

// NewController creates an uninitialized controller.
func NewController(db *store.DB, tools Tools, logger *logx.Logger) *Controller {
	return &Controller{
		store:  db,
		tools:  tools,
		ranker: ranker.New(),
		logger: logger,
		Now:    time.Now,
	}
}

// Init applies snap and loads the working set, scanning first when the last
// full scan is older than the configured interval. It may be called again to
// apply a new configuration.
func (c *Controller) Init(ctx context.Context, snap config.Snapshot) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sc, icons := c.tools(snap)
	c.mu.Lock()
	c.snap = snap
	c.scanner = sc
	c.icons = icons
	c.mu.Unlock()

	last, err := c.store.GetLastScanTime()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	now := c.Now()
	if now.Unix()-last > int64(snap.Interval/time.Second) {
		c.logger.Infof("Application scan due (last scan %d)", last)
		err = c.refresh(ctx)
	} else {
		c.logger.Infof("Application scan not due, loading from store")
		err = c.reload()
	}
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// ForceRefresh scans all sources, reconciles and replaces the working set.
// On failure the previous set stays in place.
func (c *Controller) ForceRefresh(ctx context.Context) error {
	if !c.Ready() {
		return ErrNotReady
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Reload rebuilds the working set from the store without scanning.
func (c *Controller) Reload() error {
	if !c.Ready() {
		return ErrNotReady
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.reload()
}

func (c *Controller) refresh(ctx context.Context) error {
	c.setRefreshing(true)
	defer c.setRefreshing(false)

	c.mu.RLock()
	snap, sc, icons := c.snap, c.scanner, c.icons
	c.mu.RUnlock()

	start := c.Now()
	sources := scanner.ParseSources(snap.SearchPaths)
	found, scanErrs := sc.ScanAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		// A cancelled scan is incomplete; reconciling it would drop applications.
		return err
	}
	if len(scanErrs) > 0 {
		c.logger.Warnf("%d of %d sources failed", len(scanErrs), len(sources))
	}

	added, err := c.store.Reconcile(found)
	if err != nil {
		return errors.Join(append([]error{err}, scanErrs...)...)
	}
	c.logger.Infof("Scanned %d applications, %d new", len(found), len(added))

	if icons != nil && len(added) > 0 {
		if err := icons.Generate(ctx, added); err != nil {
			c.logger.Errorf("Icon generation failed: %v", err)
		}
	}

	if err := c.store.SetLastScanTime(start.Unix()); err != nil {
		return err
	}
	return c.reload()
}

func (c *Controller) reload() error {
	records, err := c.store.GetAll()
	if err != nil {
		return err
	}

	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	set := Enrich(records, snap.Aliases, snap.IconDir, c.Now())

	c.mu.Lock()
	c.set = set
	c.mu.Unlock()
	c.logger.Debugf("Working set loaded: %d applications", len(set))
	return nil
}

func (c *Controller) setRefreshing(v bool) {
	c.mu.Lock()
	c.refreshing = v
	c.mu.Unlock()
}

// Search ranks the working set against query. It returns nothing before
// Init succeeds and never fails.
func (c *Controller) Search(query string) []Result {
	c.mu.RLock()
	set, ready := c.set, c.ready
	c.mu.RUnlock()
	if !ready {
		return nil
	}

	ranked := c.ranker.Rank(query, set)
	results := make([]Result, 0, len(ranked))
	for _, app := range ranked {
		results = append(results, Result{
			Name:     app.DisplayName(),
			AppID:    app.AppID,
			IconPath: app.IconPath,
			Path:     app.Path,
		})
	}
	return results
}

// Lookup returns the working-set entry for appID.
func (c *Controller) Lookup(appID string) (apps.Application, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, app := range c.set {
		if app.AppID == appID {
			return app, true
		}
	}
	return apps.Application{}, false
}

// RecordLaunch records a launch of appID and refreshes the working-set entry
// from the persisted row. Unknown ids and store failures are logged; the
// caller is never blocked by bookkeeping.
func (c *Controller) RecordLaunch(appID string) {
	if appID == "" {
		return
	}
	if _, ok := c.Lookup(appID); !ok {
		c.logger.Warnf("Launch of %q not in working set", appID)
		return
	}

	if err := c.store.RecordLaunch(appID); err != nil {
		c.logger.Errorf("Failed to record launch of %q: %v", appID, err)
		return
	}

	rec, err := c.store.Get(appID)
	if err != nil || rec == nil {
		c.logger.Errorf("Failed to read back launch of %q: %v", appID, err)
		return
	}
	persisted := rec.Application()

	now := c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make([]apps.Application, len(c.set))
	copy(set, c.set)
	for i := range set {
		if set[i].AppID == appID {
			set[i].UsageCount = persisted.UsageCount
			set[i].LastUsed = persisted.LastUsed
			set[i].UsageRecencyScore = apps.RecencyScore(set[i].UsageCount, set[i].LastUsed, now)
			break
		}
	}
	c.set = set
}

// Ready reports whether Init has succeeded.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Status returns a summary of the controller state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	st := Status{Ready: c.ready, Refreshing: c.refreshing, Applications: len(c.set)}
	c.mu.RUnlock()

	last, err := c.store.GetLastScanTime()
	if err != nil {
		c.logger.Warnf("Status: %v", err)
	}
	st.LastScan = last
	if st.Stored, err = c.store.Count(); err != nil {
		c.logger.Warnf("Status: %v", err)
	}
	if st.SchemaVersion, err = c.store.SchemaVersion(); err != nil {
		c.logger.Warnf("Status: %v", err)
	}
	return st
}
