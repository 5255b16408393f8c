package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/backinv/internal/app"
	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/observability"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "путь к backinv.yml")
	flag.Parse()

	// Конфигурация читается до логгеров: от неё зависят уровни и каталог логов
	cfg, created, cfgErr := config.LoadOrCreate(*configPath)
	configureLogging(cfg.Log)

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎒 Запуск backinv...")
	switch {
	case cfgErr != nil:
		logging.Error("❌ Конфигурация %s не загружена, используются значения по умолчанию: %v", *configPath, cfgErr)
	case created:
		logging.Info("📝 Создан файл конфигурации по умолчанию: %s", *configPath)
	default:
		logging.Info("📝 Конфигурация загружена из %s", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	holder := config.NewHolder(*configPath, cfg)
	a, err := app.New(holder, app.Options{Source: hostname()})
	if err != nil {
		logging.Error("❌ Ошибка сборки сервиса: %v", err)
		log.Fatalf("❌ Ошибка сборки сервиса: %v", err)
	}
	a.Start(ctx)

	logging.Info("✅ backinv запущен")
	if cfg.API.Enabled {
		logging.Info("   🌐 REST API: http://localhost%s", cfg.API.Addr)
		logging.Info("   ❤️  Health check: http://localhost%s/health", cfg.API.Addr)
	}
	logging.Info("💡 Консоль: join <player>, give <player> <item> [count], kill <player>, players, backinv list|load ..., stop")

	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		runConsole(ctx, a, os.Stdin, os.Stdout, os.Stderr)
	}()

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения")
	case <-consoleDone:
		logging.Info("📡 Консоль закрыта")
	}
	stop()

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Close(shutdownCtx); err != nil {
		logging.Error("❌ %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Warn("⚠️ Остановка OpenTelemetry: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func configureLogging(cfg config.LogConfig) {
	console, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		log.Printf("⚠️ %v, используется INFO", err)
	}
	file, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		log.Printf("⚠️ %v, используется INFO", err)
	}
	logging.Configure(logging.Options{Dir: cfg.Dir, ConsoleLevel: console, FileLevel: file})
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "backinv"
}
