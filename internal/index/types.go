package index

import (
	"context"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/scanner"
	"github.com/0xADE/ade-launchd/internal/store"
)

// Result is one search hit as shown to the user.
type Result struct {
	Name     string // display name (alias when configured)
	AppID    string
	IconPath string
	Path     string
}

// Status describes the controller for diagnostics.
type Status struct {
	Ready         bool
	Refreshing    bool
	Applications  int
	LastScan      int64 // unix seconds, 0 when never scanned
	Stored        int   // persisted rows
	SchemaVersion int
}

// SourceScanner lists applications from scan sources. Failed sources are
// reported in the error slice and contribute nothing.
type SourceScanner interface {
	ScanAll(ctx context.Context, sources []scanner.Source) ([]apps.Application, []error)
}

// IconGenerator renders icons for newly added applications.
type IconGenerator interface {
	Generate(ctx context.Context, records []store.Record) error
}

// Tools builds the scanner and icon generator for a configuration.
type Tools func(snap config.Snapshot) (SourceScanner, IconGenerator)
