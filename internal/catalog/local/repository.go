package local

import (
	"context"
	"errors"

	"report_catalog/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDefinitionNotFound возвращается, когда в БД нет описания отчета
var ErrDefinitionNotFound = errors.New("report definition not found")

// Repository интерфейс для работы с описаниями отчетов в БД
type Repository interface {
	List(ctx context.Context) ([]models.ReportDefinition, error)
	ListOnline(ctx context.Context) ([]models.ReportDefinition, error)
	Get(ctx context.Context, reportID string) (*models.ReportDefinition, error)
	Save(ctx context.Context, def *models.ReportDefinition) error
	Delete(ctx context.Context, reportID string) error
}

// GormRepository реализация репозитория для GORM
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewGormRepository создает новый GORM репозиторий
func NewGormRepository(db *gorm.DB, logger *logrus.Logger) *GormRepository {
	return &GormRepository{
		db:     db,
		logger: logger,
	}
}

// List возвращает все описания отчетов, упорядоченные по идентификатору
func (r *GormRepository) List(ctx context.Context) ([]models.ReportDefinition, error) {
	var defs []models.ReportDefinition
	err := r.db.WithContext(ctx).Order("report_id").Find(&defs).Error
	return defs, err
}

// ListOnline возвращает только онлайн-отчеты
func (r *GormRepository) ListOnline(ctx context.Context) ([]models.ReportDefinition, error) {
	var defs []models.ReportDefinition
	err := r.db.WithContext(ctx).Where("online = ?", true).Order("report_id").Find(&defs).Error
	return defs, err
}

// Get получает описание отчета по локальному идентификатору
func (r *GormRepository) Get(ctx context.Context, reportID string) (*models.ReportDefinition, error) {
	var def models.ReportDefinition
	err := r.db.WithContext(ctx).Where("report_id = ?", reportID).First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDefinitionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// Save создает описание отчета или обновляет существующее с тем же идентификатором
func (r *GormRepository) Save(ctx context.Context, def *models.ReportDefinition) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "display_name", "description", "engine",
			"report_service", "format", "template_key", "online", "allow_access",
		}),
	}).Create(def).Error
}

// Delete удаляет описание отчета
func (r *GormRepository) Delete(ctx context.Context, reportID string) error {
	result := r.db.WithContext(ctx).Unscoped().Where("report_id = ?", reportID).Delete(&models.ReportDefinition{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}
