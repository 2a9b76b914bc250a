package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"report_catalog/internal/catalog"
	"report_catalog/internal/domain/report"
	"report_catalog/internal/models"
	"report_catalog/internal/storage"

	"github.com/sirupsen/logrus"
)

const templatePrefix = "templates"

// Source локальный источник отчетов: описания в БД, шаблоны в хранилище
type Source struct {
	id         string
	repository Repository
	storage    storage.Storage
	logger     *logrus.Logger
}

// NewSource создает локальный источник с заданным идентификатором
func NewSource(id string, repository Repository, store storage.Storage, logger *logrus.Logger) (*Source, error) {
	if err := catalog.ValidateSourceID(id); err != nil {
		return nil, fmt.Errorf("local source: %w", err)
	}
	return &Source{
		id:         id,
		repository: repository,
		storage:    store,
		logger:     logger,
	}, nil
}

// ID возвращает идентификатор источника
func (s *Source) ID() string {
	return s.id
}

// Reports возвращает все отчеты источника с составными идентификаторами
func (s *Source) Reports(ctx context.Context) ([]report.Definition, error) {
	defs, err := s.repository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report definitions: %w", err)
	}
	return s.toDomain(defs), nil
}

// OnlineReports возвращает онлайн-отчеты источника
func (s *Source) OnlineReports(ctx context.Context) ([]report.Definition, error) {
	defs, err := s.repository.ListOnline(ctx)
	if err != nil {
		return nil, fmt.Errorf("list online report definitions: %w", err)
	}
	return s.toDomain(defs), nil
}

// Report возвращает описание одного отчета
func (s *Source) Report(ctx context.Context, reportID string) (report.Definition, error) {
	def, err := s.definition(ctx, reportID)
	if err != nil {
		return report.Definition{}, err
	}
	return def.ToDomain(reportID), nil
}

func (s *Source) DisplayName(ctx context.Context, reportID string) (string, error) {
	def, err := s.definition(ctx, reportID)
	if err != nil {
		return "", err
	}
	return def.DisplayName, nil
}

func (s *Source) Engine(ctx context.Context, reportID string) (string, error) {
	def, err := s.definition(ctx, reportID)
	if err != nil {
		return "", err
	}
	return def.Engine, nil
}

func (s *Source) ReportService(ctx context.Context, reportID string) (string, error) {
	def, err := s.definition(ctx, reportID)
	if err != nil {
		return "", err
	}
	return def.ReportService, nil
}

// Template открывает шаблон отчета из хранилища
func (s *Source) Template(ctx context.Context, reportID string) (io.ReadCloser, error) {
	def, err := s.definition(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !def.HasTemplate() {
		return nil, fmt.Errorf("%w: %s has no template", catalog.ErrReportNotFound, reportID)
	}

	reader, err := s.storage.Get(ctx, def.TemplateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WithFields(logrus.Fields{
				"report_id":    reportID,
				"template_key": def.TemplateKey,
			}).Warn("Шаблон отчета отсутствует в хранилище")
			return nil, fmt.Errorf("%w: template of %s", catalog.ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return reader, nil
}

// Register сохраняет шаблон в хранилище и затем описание отчета в БД.
// def.ID задается без префикса источника. template может быть nil.
func (s *Source) Register(ctx context.Context, def report.Definition, template io.Reader) error {
	logger := s.logger.WithFields(logrus.Fields{
		"report_id": def.ID,
		"source_id": s.id,
	})

	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid report definition: %w", err)
	}

	row := &models.ReportDefinition{
		ReportID:      def.ID,
		DisplayName:   def.DisplayName,
		Description:   def.Description,
		Engine:        def.Engine,
		ReportService: def.ReportService,
		Format:        string(def.Format),
		Online:        def.Online,
		AllowAccess:   def.AllowAccess,
	}

	if template != nil {
		row.TemplateKey = TemplateKey(def)
		if err := s.storage.Save(ctx, row.TemplateKey, template); err != nil {
			logger.WithError(err).Error("Ошибка сохранения шаблона отчета")
			return fmt.Errorf("save template: %w", err)
		}
	} else if existing, err := s.repository.Get(ctx, def.ID); err == nil {
		row.TemplateKey = existing.TemplateKey
	}

	if err := s.repository.Save(ctx, row); err != nil {
		logger.WithError(err).Error("Ошибка сохранения описания отчета в БД")
		return fmt.Errorf("save report definition: %w", err)
	}

	logger.Info("Отчет зарегистрирован")
	return nil
}

// Unregister удаляет описание отчета и его шаблон
func (s *Source) Unregister(ctx context.Context, localID string) error {
	logger := s.logger.WithFields(logrus.Fields{
		"report_id": localID,
		"source_id": s.id,
	})

	def, err := s.repository.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("get report definition: %w", err)
	}

	if def.HasTemplate() {
		if err := s.storage.Delete(ctx, def.TemplateKey); err != nil {
			// Не прерываем удаление описания из-за ошибки удаления шаблона
			logger.WithError(err).WithField("template_key", def.TemplateKey).
				Error("Ошибка удаления шаблона отчета")
		}
	}

	if err := s.repository.Delete(ctx, localID); err != nil {
		logger.WithError(err).Error("Ошибка удаления описания отчета из БД")
		return fmt.Errorf("delete report definition: %w", err)
	}

	logger.Info("Отчет удален")
	return nil
}

// TemplateKey строит ключ хранилища для шаблона отчета
func TemplateKey(def report.Definition) string {
	format := def.Format
	if format == "" {
		format = report.FormatJRXML
	}
	return fmt.Sprintf("%s/%s.%s", templatePrefix, def.ID, format)
}

// definition находит строку БД по составному идентификатору
func (s *Source) definition(ctx context.Context, reportID string) (*models.ReportDefinition, error) {
	sourceID, localID, err := catalog.SplitReportID(reportID)
	if err != nil {
		return nil, err
	}
	if sourceID != s.id {
		return nil, fmt.Errorf("%w: %s belongs to source %q", catalog.ErrReportNotFound, reportID, sourceID)
	}

	def, err := s.repository.Get(ctx, localID)
	if err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("get report definition: %w", err)
	}
	return def, nil
}

func (s *Source) toDomain(defs []models.ReportDefinition) []report.Definition {
	reports := make([]report.Definition, 0, len(defs))
	for i := range defs {
		reports = append(reports, defs[i].ToDomain(catalog.JoinReportID(s.id, defs[i].ReportID)))
	}
	return reports
}

func validateDefinition(def report.Definition) error {
	if strings.TrimSpace(def.ID) == "" {
		return errors.New("report id is required")
	}
	if strings.ContainsAny(def.ID, `/\`) || strings.Contains(def.ID, "..") {
		return fmt.Errorf("report id %q contains path characters", def.ID)
	}
	if def.DisplayName == "" {
		return errors.New("display name is required")
	}
	if def.Engine == "" {
		return errors.New("engine is required")
	}
	if def.ReportService == "" {
		return errors.New("report service is required")
	}
	return nil
}
