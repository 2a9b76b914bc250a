// Package format renders the report catalog for people: as indented text and
// as an XLSX workbook.
package format

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"report_catalog/internal/catalog"
	"report_catalog/internal/domain/report"
)

// Catalog is the read side of the aggregator used by the formatters.
type Catalog interface {
	Sources() []catalog.Source
	Reports(ctx context.Context, sourceID string) []report.Definition
	OnlineReports(ctx context.Context, sourceID string) []report.Definition
}

// Text writes one block per source in catalog order:
//
//	<sourceId> (<n> reports, <m> online):
//		<reportId>: <displayName> [engine=<e>, service=<s>]
func Text(ctx context.Context, w io.Writer, c Catalog) error {
	bw := bufio.NewWriter(w)

	for _, src := range c.Sources() {
		reports := c.Reports(ctx, src.ID())
		online := c.OnlineReports(ctx, src.ID())

		fmt.Fprintf(bw, "%s (%d reports, %d online):\n", src.ID(), len(reports), len(online))
		if len(reports) == 0 {
			fmt.Fprintln(bw, "\t(no reports)")
			continue
		}
		for _, r := range reports {
			fmt.Fprintf(bw, "\t%s: %s [engine=%s, service=%s]\n", r.ID, r.DisplayName, r.Engine, r.ReportService)
		}
	}

	return bw.Flush()
}
