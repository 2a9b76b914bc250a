package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"report_catalog/internal/catalog"
	"report_catalog/internal/catalog/format"
	"report_catalog/internal/catalog/local"
	"report_catalog/internal/catalog/remote"
	"report_catalog/internal/config"
	"report_catalog/internal/domain/report"
	"report_catalog/internal/models"
	"report_catalog/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type staticConfig struct {
	defs []catalog.RemoteDefinition
}

func (c *staticConfig) ActiveRepositories(ctx context.Context) ([]catalog.RemoteDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.defs, nil
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupLocalSource(t *testing.T, id string) *local.Source {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), id)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ReportDefinition{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath:    t.TempDir(),
		Permissions: 0o755,
		CreateDirs:  true,
	}, setupTestLogger())
	require.NoError(t, err)

	src, err := local.NewSource(id, local.NewGormRepository(db, setupTestLogger()), store, setupTestLogger())
	require.NoError(t, err)
	return src
}

func register(t *testing.T, src *local.Source, id, name string, online bool, template string) {
	t.Helper()
	var tpl io.Reader
	if template != "" {
		tpl = strings.NewReader(template)
	}
	require.NoError(t, src.Register(context.Background(), report.Definition{
		ID:            id,
		DisplayName:   name,
		Engine:        "jasper",
		ReportService: "billing",
		Format:        report.FormatJRXML,
		Online:        online,
		AllowAccess:   true,
	}, tpl))
}

type testEnv struct {
	server *Server
	agg    *catalog.Aggregator
	local  *local.Source
	cfg    *staticConfig
}

func newTestEnv(t *testing.T, localID string, serverCfg config.Server, dbCheck HealthCheck, remotes ...catalog.RemoteDefinition) *testEnv {
	t.Helper()
	src := setupLocalSource(t, localID)
	cfg := &staticConfig{defs: remotes}

	agg, _, err := catalog.New(context.Background(), src, cfg, remote.NewFactory(time.Second, setupTestLogger()), catalog.Options{
		EngineVersion: "6.20.0",
		Logger:        setupTestLogger(),
	})
	require.NoError(t, err)

	srv := NewServer(config.Config{Server: serverCfg}, agg, src, dbCheck, setupTestLogger())
	return &testEnv{server: srv, agg: agg, local: src, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type listResponse struct {
	Reports []report.Definition `json:"reports"`
	Count   int                 `json:"count"`
}

func TestListReports(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "<sales/>")
	register(t, env.local, "audit", "Audit", false, "")

	rec := env.do(t, http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "local_audit", resp.Reports[0].ID)
	assert.Equal(t, "local_sales", resp.Reports[1].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/online")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "<sales/>")

	rec := env.do(t, http.MethodGet, "/api/v1/reports/local_sales")
	require.Equal(t, http.StatusOK, rec.Code)

	var info reportInfo
	decode(t, rec, &info)
	assert.Equal(t, reportInfo{ID: "local_sales", DisplayName: "Sales", Engine: "jasper", ReportService: "billing"}, info)

	for _, id := range []string{"local_missing", "other_sales", "nosep"} {
		rec = env.do(t, http.MethodGet, "/api/v1/reports/"+id)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

func TestGetTemplate(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "<sales/>")
	register(t, env.local, "audit", "Audit", false, "")

	rec := env.do(t, http.MethodGet, "/api/v1/reports/local_sales/template")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<sales/>", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/reports/local_audit/template")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil,
		catalog.RemoteDefinition{ID: "broken", URL: "ftp://nowhere", Active: true})
	register(t, env.local, "sales", "Sales", true, "")

	rec := env.do(t, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []sourceInfo       `json:"sources"`
		Status  catalog.InitResult `json:"status"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, []sourceInfo{{ID: "local", Local: true}}, resp.Sources)
	assert.Equal(t, catalog.StatusDegraded, resp.Status.Status)
	require.Len(t, resp.Status.Failures, 1)
	assert.Equal(t, "broken", resp.Status.Failures[0].SourceID)

	rec = env.do(t, http.MethodGet, "/api/v1/sources/local/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = env.do(t, http.MethodGet, "/api/v1/sources/local/reports/online")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sources/unknown/reports")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReloadSources(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	env.cfg.defs = []catalog.RemoteDefinition{{ID: "broken", URL: "not a url", Active: true}}

	rec := env.do(t, http.MethodPost, "/api/v1/sources/reload")
	require.Equal(t, http.StatusOK, rec.Code)

	var res catalog.InitResult
	decode(t, rec, &res)
	assert.Equal(t, catalog.StatusDegraded, res.Status)
	assert.Equal(t, []string{"local"}, res.Sources)
}

func TestCatalogText(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "")

	rec := env.do(t, http.MethodGet, "/api/v1/catalog.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local (1 reports, 1 online):\n\tlocal_sales: Sales [engine=jasper, service=billing]\n", rec.Body.String())
}

func TestCatalogXLSX(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "")

	rec := env.do(t, http.MethodGet, "/api/v1/catalog.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, format.XLSXContentType, rec.Header().Get(echo.HeaderContentType))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(format.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, func(context.Context) error { return nil })

	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestDebugFollowsDevelopmentMode(t *testing.T) {
	assert.True(t, newTestEnv(t, "local", config.Server{Debug: true}, nil).server.echo.Debug)
	assert.False(t, newTestEnv(t, "other", config.Server{}, nil).server.echo.Debug)
}

func TestHealthDatabaseDown(t *testing.T) {
	env := newTestEnv(t, "local", config.Server{}, func(context.Context) error { return errors.New("connection refused") })

	rec := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportStripsPrefix(t *testing.T) {
	env := newTestEnv(t, "hq", config.Server{}, nil)
	register(t, env.local, "sales", "Sales", true, "<sales/>")

	rec := env.do(t, http.MethodGet, "/api/v1/export/reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var defs []report.Definition
	decode(t, rec, &defs)
	require.Len(t, defs, 1)
	assert.Equal(t, "sales", defs[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/export/reports/sales")
	require.Equal(t, http.StatusOK, rec.Code)
	var def report.Definition
	decode(t, rec, &def)
	assert.Equal(t, "sales", def.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/export/reports/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportBasicAuth(t *testing.T) {
	env := newTestEnv(t, "hq", config.Server{ExportLogin: "peer", ExportPassword: "secret"}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/export/reports")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export/reports", nil)
	req.SetBasicAuth("peer", "secret")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the catalog API stays open
	rec = env.do(t, http.MethodGet, "/api/v1/reports")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRemoteRoundTrip serves one instance over HTTP and uses it as a remote
// source of another.
func TestRemoteRoundTrip(t *testing.T) {
	peer := newTestEnv(t, "hq", config.Server{ExportLogin: "peer", ExportPassword: "secret"}, nil)
	register(t, peer.local, "kpi", "KPI", true, "<kpi/>")
	register(t, peer.local, "audit", "Audit", false, "")

	peerHTTP := httptest.NewServer(peer.server)
	defer peerHTTP.Close()

	env := newTestEnv(t, "local", config.Server{}, nil, catalog.RemoteDefinition{
		ID:       "hq",
		Name:     "Head office",
		URL:      peerHTTP.URL,
		Login:    "peer",
		Password: "secret",
		Active:   true,
	})
	register(t, env.local, "sales", "Sales", true, "<sales/>")

	ctx := context.Background()
	assert.False(t, env.agg.Status().Degraded())

	all := env.agg.AllReports(ctx)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"local_sales", "hq_audit", "hq_kpi"}, ids)

	online := env.agg.AllOnlineReports(ctx)
	assert.Len(t, online, 2)

	assert.Equal(t, "KPI", env.agg.DisplayName(ctx, "hq_kpi"))
	assert.Equal(t, "billing", env.agg.ReportService(ctx, "hq_kpi"))
	assert.Equal(t, "", env.agg.DisplayName(ctx, "hq_missing"))

	rec := env.do(t, http.MethodGet, "/api/v1/reports/hq_kpi/template")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<kpi/>", rec.Body.String())

	assert.Nil(t, env.agg.Template(ctx, "hq_audit"))

	rec = env.do(t, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	var sources struct {
		Sources []sourceInfo `json:"sources"`
	}
	decode(t, rec, &sources)
	assert.Equal(t, []sourceInfo{
		{ID: "local", Local: true},
		{ID: "hq", Name: "Head office"},
	}, sources.Sources)
}

func TestReloadIgnoresClientCancel(t *testing.T) {
	peer := newTestEnv(t, "hq", config.Server{}, nil)
	peerHTTP := httptest.NewServer(peer.server)
	defer peerHTTP.Close()

	env := newTestEnv(t, "local", config.Server{}, nil,
		catalog.RemoteDefinition{ID: "hq", URL: peerHTTP.URL, Active: true})
	require.Equal(t, []string{"local", "hq"}, env.agg.Status().Sources)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sources/reload", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res catalog.InitResult
	decode(t, rec, &res)
	assert.Equal(t, catalog.StatusHealthy, res.Status)
	assert.Equal(t, []string{"local", "hq"}, res.Sources)
}
