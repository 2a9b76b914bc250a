package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"report_catalog/internal/domain/report"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultBuildConcurrency = 4

var (
	ErrMissingEngineVersion = errors.New("engine version is not configured")
	ErrSourceNotFound       = errors.New("source not found")
	ErrDuplicateSource      = errors.New("duplicate source id")
)

type origin int

const (
	originLocal origin = iota
	originConfigured
	originAdded
)

type entry struct {
	src    Source
	origin origin
}

// Options tunes an Aggregator.
type Options struct {
	// EngineVersion is passed to every remote source. Required.
	EngineVersion string
	// BuildConcurrency bounds parallel remote source construction.
	BuildConcurrency int
	Logger           *logrus.Logger
}

// Aggregator presents one catalog over a local source and any number of
// remote sources, routing per-report calls by the composite report id.
//
// The source list is copy-on-write: readers work on an immutable snapshot,
// writers serialize on mu and swap in a new slice.
type Aggregator struct {
	local       Source
	config      RemoteConfig
	factory     SourceFactory
	version     string
	concurrency int
	logger      *logrus.Logger

	mu      sync.Mutex
	entries atomic.Pointer[[]entry]
	result  atomic.Pointer[InitResult]
}

// New builds the aggregator: the local source first, then one remote source
// per active repository definition. Remote failures do not fail construction;
// they are reported in the returned InitResult.
func New(ctx context.Context, local Source, cfg RemoteConfig, factory SourceFactory, opts Options) (*Aggregator, InitResult, error) {
	if opts.EngineVersion == "" {
		return nil, InitResult{}, ErrMissingEngineVersion
	}
	if local == nil {
		return nil, InitResult{}, errors.New("local report source must not be nil")
	}
	if cfg == nil {
		return nil, InitResult{}, errors.New("remote repository config must not be nil")
	}
	if factory == nil {
		return nil, InitResult{}, errors.New("remote source factory must not be nil")
	}
	if err := ValidateSourceID(local.ID()); err != nil {
		return nil, InitResult{}, fmt.Errorf("local source: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	concurrency := opts.BuildConcurrency
	if concurrency <= 0 {
		concurrency = defaultBuildConcurrency
	}

	a := &Aggregator{
		local:       local,
		config:      cfg,
		factory:     factory,
		version:     opts.EngineVersion,
		concurrency: concurrency,
		logger:      logger,
	}

	logger.WithFields(logrus.Fields{
		"local_source":   local.ID(),
		"engine_version": opts.EngineVersion,
	}).Debug("Building report catalog")

	a.mu.Lock()
	defer a.mu.Unlock()

	entries := []entry{{src: local, origin: originLocal}}
	remotes, failures, _ := a.buildRemotes(ctx, map[string]bool{local.ID(): true})
	entries = append(entries, remotes...)

	res := a.store(entries, failures)
	return a, res, nil
}

// Reload rebuilds the remote sources from configuration. The local source
// and sources added with AddSource are kept in place.
func (a *Aggregator) Reload(ctx context.Context) InitResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.snapshot()
	reserved := map[string]bool{}
	var added, configured []entry
	for _, e := range current {
		switch e.origin {
		case originLocal:
			reserved[e.src.ID()] = true
		case originAdded:
			reserved[e.src.ID()] = true
			added = append(added, e)
		case originConfigured:
			configured = append(configured, e)
		}
	}

	remotes, failures, ok := a.buildRemotes(ctx, reserved)
	if !ok {
		// Unreadable configuration keeps the remote sources that are already serving.
		remotes = configured
	}

	entries := make([]entry, 0, 1+len(remotes)+len(added))
	entries = append(entries, entry{src: a.local, origin: originLocal})
	entries = append(entries, remotes...)
	entries = append(entries, added...)

	res := a.store(entries, failures)
	a.logger.WithFields(logrus.Fields{
		"status":   res.Status,
		"sources":  len(res.Sources),
		"failures": len(res.Failures),
	}).Info("Report catalog reloaded")
	return res
}

// buildRemotes constructs remote sources in configuration order. ok is false
// when the configuration itself could not be read. Caller must hold mu.
func (a *Aggregator) buildRemotes(ctx context.Context, reserved map[string]bool) (entries []entry, failures []SourceFailure, ok bool) {
	defs, err := a.config.ActiveRepositories(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Could not read remote repository configuration")
		return nil, []SourceFailure{{Reason: fmt.Sprintf("read remote repository config: %v", err)}}, false
	}

	built := make([]Source, len(defs))
	errs := make([]error, len(defs))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, def := range defs {
		g.Go(func() error {
			built[i], errs[i] = a.newSource(def)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(reserved)+len(defs))
	for id := range reserved {
		seen[id] = true
	}

	for i, def := range defs {
		err := errs[i]
		if err == nil && built[i] == nil {
			err = errors.New("factory returned no source")
		}
		if err == nil {
			id := built[i].ID()
			if verr := ValidateSourceID(id); verr != nil {
				err = verr
			} else if seen[id] {
				err = fmt.Errorf("%w: %q", ErrDuplicateSource, id)
			}
		}
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"source_id": def.ID,
				"url":       def.URL,
			}).Error("Could not add remote report repository")
			failures = append(failures, SourceFailure{SourceID: def.ID, Reason: err.Error()})
			continue
		}
		seen[built[i].ID()] = true
		entries = append(entries, entry{src: built[i], origin: originConfigured})
	}
	return entries, failures, true
}

// newSource calls the factory and turns a panic into a build failure.
func (a *Aggregator) newSource(def RemoteDefinition) (src Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("source factory panicked: %v", r)
		}
	}()
	return a.factory.NewSource(def, a.version)
}

// store publishes a new source list together with its build result. Caller must hold mu.
func (a *Aggregator) store(entries []entry, failures []SourceFailure) InitResult {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.src.ID()
	}
	res := newResult(ids, failures)
	a.entries.Store(&entries)
	a.result.Store(&res)
	return res
}

func (a *Aggregator) snapshot() []entry {
	if p := a.entries.Load(); p != nil {
		return *p
	}
	return nil
}

// Status returns the result of the last construction or reload.
func (a *Aggregator) Status() InitResult {
	if p := a.result.Load(); p != nil {
		return *p
	}
	return InitResult{}
}

// Local returns the local source.
func (a *Aggregator) Local() Source {
	return a.local
}

// AddSource appends src to the end of the source list.
func (a *Aggregator) AddSource(src Source) error {
	if src == nil {
		return errors.New("source must not be nil")
	}
	if err := ValidateSourceID(src.ID()); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.snapshot()
	for _, e := range current {
		if e.src.ID() == src.ID() {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src.ID())
		}
	}

	entries := make([]entry, len(current), len(current)+1)
	copy(entries, current)
	entries = append(entries, entry{src: src, origin: originAdded})
	a.store(entries, a.Status().Failures)

	a.logger.WithField("source_id", src.ID()).Info("Report source added")
	return nil
}

// Sources returns the current source list in order.
func (a *Aggregator) Sources() []Source {
	current := a.snapshot()
	sources := make([]Source, len(current))
	for i, e := range current {
		sources[i] = e.src
	}
	return sources
}

// SourceByID returns the first source with the given id.
func (a *Aggregator) SourceByID(sourceID string) (Source, bool) {
	for _, e := range a.snapshot() {
		if e.src.ID() == sourceID {
			return e.src, true
		}
	}
	return nil, false
}

// SourceForReport returns the source owning reportID.
func (a *Aggregator) SourceForReport(reportID string) (Source, error) {
	sourceID, _, err := SplitReportID(reportID)
	if err != nil {
		return nil, err
	}
	src, ok := a.SourceByID(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, sourceID)
	}
	return src, nil
}

// AllReports concatenates the reports of every source in list order.
func (a *Aggregator) AllReports(ctx context.Context) []report.Definition {
	return a.collect(ctx, a.snapshot(), "reports", Source.Reports)
}

// Reports lists the reports of one source; empty when the source is unknown.
func (a *Aggregator) Reports(ctx context.Context, sourceID string) []report.Definition {
	return a.collect(ctx, a.only(sourceID), "reports", Source.Reports)
}

// AllOnlineReports concatenates the online reports of every source.
func (a *Aggregator) AllOnlineReports(ctx context.Context) []report.Definition {
	return a.collect(ctx, a.snapshot(), "online_reports", Source.OnlineReports)
}

// OnlineReports lists the online reports of one source.
func (a *Aggregator) OnlineReports(ctx context.Context, sourceID string) []report.Definition {
	return a.collect(ctx, a.only(sourceID), "online_reports", Source.OnlineReports)
}

func (a *Aggregator) only(sourceID string) []entry {
	src, ok := a.SourceByID(sourceID)
	if !ok {
		a.logger.WithField("source_id", sourceID).Debug("No report source with this id")
		return nil
	}
	return []entry{{src: src}}
}

func (a *Aggregator) collect(ctx context.Context, entries []entry, op string,
	list func(Source, context.Context) ([]report.Definition, error)) []report.Definition {
	results := make([]report.Definition, 0)
	for _, e := range entries {
		reports, err := list(e.src, ctx)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"source_id": e.src.ID(),
				"operation": op,
			}).Warn("Report source failed, skipping")
			continue
		}
		results = append(results, reports...)
	}
	return results
}

// DisplayName returns the display name of a report, or "" when not found.
func (a *Aggregator) DisplayName(ctx context.Context, reportID string) string {
	return a.lookupString(ctx, reportID, "display_name", Source.DisplayName)
}

// Engine returns the rendering engine of a report, or "" when not found.
func (a *Aggregator) Engine(ctx context.Context, reportID string) string {
	return a.lookupString(ctx, reportID, "engine", Source.Engine)
}

// ReportService returns the backing service name of a report, or "" when not found.
func (a *Aggregator) ReportService(ctx context.Context, reportID string) string {
	return a.lookupString(ctx, reportID, "report_service", Source.ReportService)
}

// Template returns the template content of a report, or nil when not found.
// The caller closes the returned reader.
func (a *Aggregator) Template(ctx context.Context, reportID string) io.ReadCloser {
	src := a.route(reportID)
	if src == nil {
		return nil
	}
	rc, err := src.Template(ctx, reportID)
	if err != nil {
		a.logLookupError(src, reportID, "template", err)
		return nil
	}
	return rc
}

func (a *Aggregator) lookupString(ctx context.Context, reportID, op string,
	get func(Source, context.Context, string) (string, error)) string {
	src := a.route(reportID)
	if src == nil {
		return ""
	}
	value, err := get(src, ctx, reportID)
	if err != nil {
		a.logLookupError(src, reportID, op, err)
		return ""
	}
	return value
}

func (a *Aggregator) route(reportID string) Source {
	src, err := a.SourceForReport(reportID)
	if err != nil {
		a.logger.WithError(err).WithField("report_id", reportID).Debug("Report id does not resolve to a source")
		return nil
	}
	return src
}

func (a *Aggregator) logLookupError(src Source, reportID, op string, err error) {
	logger := a.logger.WithError(err).WithFields(logrus.Fields{
		"source_id": src.ID(),
		"report_id": reportID,
		"operation": op,
	})
	if errors.Is(err, ErrReportNotFound) {
		logger.Debug("Report not found in source")
		return
	}
	logger.Warn("Report source lookup failed")
}
