package report

// Format identifies the template format of a report.
type Format string

const (
	FormatJRXML Format = "jrxml"
	FormatXLSX  Format = "xlsx"
	FormatDOCX  Format = "docx"
)

// Definition describes a single report in the catalog. ID is composite:
// the owning source id, an underscore, then the source-local report id.
type Definition struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Description   string `json:"description,omitempty"`
	Engine        string `json:"engine"`
	ReportService string `json:"report_service"`
	Format        Format `json:"format,omitempty"`
	Online        bool   `json:"online"`
	AllowAccess   bool   `json:"allow_access"`
}
