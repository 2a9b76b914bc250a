package format

import (
	"bytes"
	"context"
	"testing"

	"report_catalog/internal/catalog"
	"report_catalog/internal/domain/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// namedSource only answers ID; the formatters never call anything else on it.
type namedSource struct {
	catalog.Source
	id string
}

func (s namedSource) ID() string { return s.id }

type fakeCatalog struct {
	order   []string
	reports map[string][]report.Definition
}

func (c fakeCatalog) Sources() []catalog.Source {
	sources := make([]catalog.Source, 0, len(c.order))
	for _, id := range c.order {
		sources = append(sources, namedSource{id: id})
	}
	return sources
}

func (c fakeCatalog) Reports(_ context.Context, sourceID string) []report.Definition {
	return append([]report.Definition{}, c.reports[sourceID]...)
}

func (c fakeCatalog) OnlineReports(_ context.Context, sourceID string) []report.Definition {
	online := []report.Definition{}
	for _, r := range c.reports[sourceID] {
		if r.Online {
			online = append(online, r)
		}
	}
	return online
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		order: []string{"local", "hq", "empty"},
		reports: map[string][]report.Definition{
			"local": {
				{ID: "local_sales", DisplayName: "Sales", Engine: "jasper", ReportService: "billing", Format: report.FormatJRXML, Online: true, AllowAccess: true},
				{ID: "local_audit", DisplayName: "Audit", Engine: "jasper", ReportService: "security"},
			},
			"hq": {
				{ID: "hq_kpi", DisplayName: "KPI", Engine: "birt", ReportService: "analytics", Format: report.FormatXLSX},
			},
		},
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(context.Background(), &buf, testCatalog()))

	want := "local (2 reports, 1 online):\n" +
		"\tlocal_sales: Sales [engine=jasper, service=billing]\n" +
		"\tlocal_audit: Audit [engine=jasper, service=security]\n" +
		"hq (1 reports, 0 online):\n" +
		"\thq_kpi: KPI [engine=birt, service=analytics]\n" +
		"empty (0 reports, 0 online):\n" +
		"\t(no reports)\n"
	assert.Equal(t, want, buf.String())
}

func TestTextIsDeterministic(t *testing.T) {
	var first, second bytes.Buffer
	require.NoError(t, Text(context.Background(), &first, testCatalog()))
	require.NoError(t, Text(context.Background(), &second, testCatalog()))
	assert.Equal(t, first.String(), second.String())
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(context.Background(), &buf, testCatalog()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, xlsxHeaders, rows[0])
	assert.Equal(t, []string{"local", "local_sales", "Sales", "jasper", "billing", "jrxml", "TRUE", "TRUE"}, rows[1])
	assert.Equal(t, "local_audit", rows[2][1])
	assert.Equal(t, []string{"hq", "hq_kpi", "KPI", "birt", "analytics", "xlsx", "FALSE", "FALSE"}, rows[3])
}

func TestXLSXEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(context.Background(), &buf, fakeCatalog{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
