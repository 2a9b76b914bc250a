package di

import (
	"context"
	"time"

	"report_catalog/internal/catalog"
	"report_catalog/internal/catalog/local"
	"report_catalog/internal/catalog/remote"
	"report_catalog/internal/config"
	"report_catalog/internal/database"
	"report_catalog/internal/remoteconfig"
	"report_catalog/internal/server"
	"report_catalog/internal/storage"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// CatalogModule собирает каталог отчетов без HTTP сервера.
// Ожидает config.Config в контейнере.
var CatalogModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		provideDatabase,
		provideStorage,
		provideLocalSource,
		provideRemoteConfig,
		provideSourceFactory,
		provideAggregator,
	),
)

// ServerModule добавляет HTTP сервер и фоновую перезагрузку источников.
var ServerModule = fx.Options(
	fx.Provide(provideServer),
	fx.Invoke(
		registerServerHooks,
		registerRemoteConfigWatcher,
		registerReloadSchedule,
	),
)

// InitializeApp создает приложение сервиса каталога
func InitializeApp(opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Provide(ProvideConfig),
		CatalogModule,
		ServerModule,
		fx.Options(opts...),
	)
}

// ProvideConfig загружает и предоставляет конфигурацию приложения
func ProvideConfig() (config.Config, error) {
	return config.Load()
}

// ProvideLogger создает и настраивает логгер на основе конфигурации
func ProvideLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Debug("Конфигурация загружена")
	return logger
}

func provideDatabase(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := database.NewDatabase(cfg.DB, logger)
	if err != nil {
		return nil, err
	}

	// Пул соединений закрывается вместе с приложением
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Закрытие соединений с базой данных")
			return database.Close(db)
		},
	})
	return db, nil
}

func provideStorage(cfg config.Config, logger *logrus.Logger) (storage.Storage, error) {
	return storage.NewStorageFromConfig(cfg, logger)
}

func provideLocalSource(cfg config.Config, db *gorm.DB, store storage.Storage, logger *logrus.Logger) (*local.Source, error) {
	return local.NewSource(cfg.Reporting.LocalID, local.NewGormRepository(db, logger), store, logger)
}

func provideRemoteConfig(cfg config.Config, logger *logrus.Logger) *remoteconfig.File {
	return remoteconfig.NewFile(cfg.Reporting.RemoteConfig, logger)
}

func provideSourceFactory(cfg config.Config, logger *logrus.Logger) *remote.Factory {
	return remote.NewFactory(cfg.Reporting.RemoteTimeout, logger)
}

func provideAggregator(
	cfg config.Config,
	localSource *local.Source,
	remoteConfig *remoteconfig.File,
	factory *remote.Factory,
	logger *logrus.Logger,
) (*catalog.Aggregator, error) {
	agg, res, err := catalog.New(context.Background(), localSource, remoteConfig, factory, catalog.Options{
		EngineVersion:    cfg.Reporting.EngineVersion,
		BuildConcurrency: cfg.Reporting.BuildConcurrency,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	entry := logger.WithFields(logrus.Fields{
		"status":  res.Status,
		"sources": res.Sources,
	})
	if res.Degraded() {
		entry.WithField("failures", len(res.Failures)).Warn("Каталог отчетов собран не полностью")
	} else {
		entry.Info("Каталог отчетов собран")
	}
	return agg, nil
}

func provideServer(cfg config.Config, agg *catalog.Aggregator, localSource *local.Source, db *gorm.DB, logger *logrus.Logger) *server.Server {
	dbCheck := func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
	return server.NewServer(cfg, agg, localSource, dbCheck, logger)
}

// registerServerHooks настраивает хуки жизненного цикла HTTP сервера
func registerServerHooks(lc fx.Lifecycle, srv *server.Server, cfg config.Config, logger *logrus.Logger) {
	var httpServer server.HTTPServer = srv
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.WithField("address", cfg.Server.Address).Info("Запуск HTTP сервера")
			go func() {
				if err := httpServer.Start(cfg.Server.Address); err != nil {
					logger.WithError(err).Error("Не удалось запустить HTTP сервер")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Завершение работы HTTP сервера")
			return httpServer.Shutdown(ctx)
		},
	})
}
