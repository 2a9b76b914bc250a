package catalog

import (
	"context"
	"errors"
	"io"
	"time"

	"report_catalog/internal/domain/report"
)

// ErrReportNotFound is returned by a Source when it does not own the requested report.
var ErrReportNotFound = errors.New("report not found")

// Source is a named provider of report definitions. Report-keyed methods take
// the full composite report id.
type Source interface {
	ID() string
	Reports(ctx context.Context) ([]report.Definition, error)
	OnlineReports(ctx context.Context) ([]report.Definition, error)
	DisplayName(ctx context.Context, reportID string) (string, error)
	Engine(ctx context.Context, reportID string) (string, error)
	ReportService(ctx context.Context, reportID string) (string, error)
	Template(ctx context.Context, reportID string) (io.ReadCloser, error)
}

// RemoteDefinition describes a remote report repository.
type RemoteDefinition struct {
	ID          string
	Name        string
	Description string
	URL         string
	Login       string
	Password    string
	Active      bool
	Timeout     time.Duration
}

// RemoteConfig supplies the remote repositories that should be part of the catalog.
type RemoteConfig interface {
	ActiveRepositories(ctx context.Context) ([]RemoteDefinition, error)
}

// SourceFactory builds a Source for a remote repository definition.
type SourceFactory interface {
	NewSource(def RemoteDefinition, engineVersion string) (Source, error)
}
