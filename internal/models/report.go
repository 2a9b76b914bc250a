package models

import (
	"time"

	"report_catalog/internal/domain/report"

	"gorm.io/gorm"
)

// ReportDefinition is a report definition persisted for the local source.
type ReportDefinition struct {
	ID            uint           `json:"-" gorm:"primarykey"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	ReportID      string         `json:"report_id" gorm:"size:255;not null;uniqueIndex"`
	DisplayName   string         `json:"display_name" gorm:"size:255;not null"`
	Description   string         `json:"description" gorm:"size:1000"`
	Engine        string         `json:"engine" gorm:"size:100;not null"`
	ReportService string         `json:"report_service" gorm:"size:255;not null"`
	Format        string         `json:"format" gorm:"size:20"`
	TemplateKey   string         `json:"template_key" gorm:"size:1024"`
	Online        bool           `json:"online" gorm:"not null;default:false"`
	AllowAccess   bool           `json:"allow_access" gorm:"not null"`
}

// TableName specifies the table name for the ReportDefinition model
func (ReportDefinition) TableName() string {
	return "report_definitions"
}

// HasTemplate returns true if a template was stored for the report
func (r *ReportDefinition) HasTemplate() bool {
	return r.TemplateKey != ""
}

// ToDomain converts the row into a catalog definition carrying the given
// composite id.
func (r *ReportDefinition) ToDomain(id string) report.Definition {
	return report.Definition{
		ID:            id,
		DisplayName:   r.DisplayName,
		Description:   r.Description,
		Engine:        r.Engine,
		ReportService: r.ReportService,
		Format:        report.Format(r.Format),
		Online:        r.Online,
		AllowAccess:   r.AllowAccess,
	}
}
