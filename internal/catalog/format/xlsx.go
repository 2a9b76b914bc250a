package format

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Catalog"

	// XLSXContentType is the MIME type of the workbook.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var xlsxHeaders = []string{
	"Source", "Report ID", "Display name", "Engine", "Report service", "Format", "Online", "Allow access",
}

// XLSX writes the catalog as a workbook with a header row and one row per report.
func XLSX(ctx context.Context, w io.Writer, c Catalog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &xlsxHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, src := range c.Sources() {
		for _, r := range c.Reports(ctx, src.ID()) {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				src.ID(), r.ID, r.DisplayName, r.Engine, r.ReportService, string(r.Format), r.Online, r.AllowAccess,
			}
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.SetColWidth(SheetName, "A", lastCol, 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
