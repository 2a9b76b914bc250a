package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"report_catalog/internal/catalog"
	"report_catalog/internal/domain/report"

	"github.com/sirupsen/logrus"
)

const (
	// ExportPath is where a peer serves its local reports.
	ExportPath = "/api/v1/export"
	// EngineVersionHeader carries the caller's rendering engine version.
	EngineVersionHeader = "X-Engine-Version"

	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is read into the error message.
	maxErrorBody = 512
)

// ErrUnexpectedStatus is returned for non-2xx responses other than 404.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Source reads the catalog of another instance through its export API.
type Source struct {
	id            string
	name          string
	baseURL       string
	login         string
	password      string
	engineVersion string
	client        *http.Client
	logger        *logrus.Logger
}

func (s *Source) ID() string {
	return s.id
}

// Name returns the human-readable repository name.
func (s *Source) Name() string {
	return s.name
}

func (s *Source) Reports(ctx context.Context) ([]report.Definition, error) {
	return s.list(ctx, "/reports")
}

func (s *Source) OnlineReports(ctx context.Context) ([]report.Definition, error) {
	return s.list(ctx, "/reports/online")
}

func (s *Source) DisplayName(ctx context.Context, reportID string) (string, error) {
	def, err := s.Report(ctx, reportID)
	return def.DisplayName, err
}

func (s *Source) Engine(ctx context.Context, reportID string) (string, error) {
	def, err := s.Report(ctx, reportID)
	return def.Engine, err
}

func (s *Source) ReportService(ctx context.Context, reportID string) (string, error) {
	def, err := s.Report(ctx, reportID)
	return def.ReportService, err
}

// Report fetches one definition from the peer.
func (s *Source) Report(ctx context.Context, reportID string) (report.Definition, error) {
	localID, err := s.localID(reportID)
	if err != nil {
		return report.Definition{}, err
	}

	resp, err := s.get(ctx, "/reports/"+url.PathEscape(localID))
	if err != nil {
		return report.Definition{}, err
	}
	defer resp.Body.Close()

	var def report.Definition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return report.Definition{}, fmt.Errorf("decode report %s from %s: %w", localID, s.id, err)
	}
	def.ID = reportID
	return def, nil
}

// Template streams the template from the peer. The caller closes the reader.
func (s *Source) Template(ctx context.Context, reportID string) (io.ReadCloser, error) {
	localID, err := s.localID(reportID)
	if err != nil {
		return nil, err
	}

	resp, err := s.get(ctx, "/reports/"+url.PathEscape(localID)+"/template")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *Source) list(ctx context.Context, path string) ([]report.Definition, error) {
	resp, err := s.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var defs []report.Definition
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		return nil, fmt.Errorf("decode report list from %s: %w", s.id, err)
	}

	reports := make([]report.Definition, 0, len(defs))
	for _, def := range defs {
		def.ID = catalog.JoinReportID(s.id, def.ID)
		reports = append(reports, def)
	}
	return reports, nil
}

// get performs a request against the export API. On success the caller owns
// the response body.
func (s *Source) get(ctx context.Context, path string) (*http.Response, error) {
	endpoint := s.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(EngineVersionHeader, s.engineVersion)
	req.Header.Set("Accept", "application/json")
	if s.login != "" {
		req.SetBasicAuth(s.login, s.password)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}

	s.logger.WithFields(logrus.Fields{
		"source_id": s.id,
		"url":       endpoint,
		"status":    resp.StatusCode,
		"duration":  time.Since(start),
	}).Debug("Remote repository request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", catalog.ErrReportNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d: %s",
			ErrUnexpectedStatus, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// localID strips this source's prefix from a composite id.
func (s *Source) localID(reportID string) (string, error) {
	sourceID, localID, err := catalog.SplitReportID(reportID)
	if err != nil {
		return "", err
	}
	if sourceID != s.id {
		return "", fmt.Errorf("%w: %s belongs to source %q", catalog.ErrReportNotFound, reportID, sourceID)
	}
	return localID, nil
}
