package di

import (
	"context"
	"fmt"

	"report_catalog/internal/catalog"
	"report_catalog/internal/config"
	"report_catalog/internal/remoteconfig"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

const reloadJobName = "catalog-reload"

// reloader перестраивает удаленные источники и пишет итог в лог
func reloader(agg *catalog.Aggregator, logger *logrus.Logger, trigger string) func() {
	return func() {
		res := agg.Reload(context.Background())
		if res.Degraded() {
			logger.WithFields(logrus.Fields{
				"trigger":  trigger,
				"failures": res.Failures,
			}).Warn("Не все удаленные репозитории доступны после перезагрузки")
		}
	}
}

// registerRemoteConfigWatcher перезагружает источники при изменении файла репозиториев
func registerRemoteConfigWatcher(lc fx.Lifecycle, cfg config.Config, agg *catalog.Aggregator, logger *logrus.Logger) {
	if !cfg.Reporting.WatchRemoteConfig {
		return
	}

	watcher := remoteconfig.NewWatcher(cfg.Reporting.RemoteConfig, remoteconfig.DefaultDebounce,
		reloader(agg, logger, "file"), logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Отсутствие каталога с файлом не мешает запуску сервиса
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("Не удалось включить отслеживание файла репозиториев")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})
}

// registerReloadSchedule перезагружает источники по расписанию cron
func registerReloadSchedule(lc fx.Lifecycle, cfg config.Config, agg *catalog.Aggregator, logger *logrus.Logger) error {
	schedule := cfg.Reporting.ReloadSchedule
	if schedule == "" {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create cron scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(reloader(agg, logger, "schedule")),
		gocron.WithName(reloadJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("create scheduled job %s: %w", reloadJobName, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			logger.WithField("cron", schedule).Info("Перезагрузка источников по расписанию включена")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Shutdown()
		},
	})
	return nil
}
