package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report_catalog/internal/di"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

func main() {
	app := di.InitializeApp()

	// Запуск приложения с остановкой
	runWithGracefulShutdown(app)
}

// runWithGracefulShutdown обрабатывает жизненный цикл приложения с обработкой сигналов
func runWithGracefulShutdown(app *fx.App) {
	// Настраиваем обработку сигналов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем приложение с таймаутом
	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("Не удалось запустить сервис каталога отчетов")
	}

	// Ожидаем сигнал завершения
	sig := <-quit
	logrus.WithField("signal", sig.String()).Info("Получен сигнал завершения работы")

	// Грациозное завершение с таймаутом
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logrus.WithError(err).Error("Ошибка при завершении работы")
		os.Exit(1)
	}

	logrus.Info("Сервис каталога отчетов остановлен корректно")
}
