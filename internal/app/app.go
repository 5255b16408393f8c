// Package app собирает сервис снапшотов из конфигурации: хранилище, шину событий,
// сервис жизненного цикла, команды и REST API.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/annel0/backinv/internal/api"
	"github.com/annel0/backinv/internal/auth"
	"github.com/annel0/backinv/internal/command"
	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/eventbus"
	"github.com/annel0/backinv/internal/lifecycle"
	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/annel0/backinv/internal/storage"
	"github.com/annel0/backinv/internal/world/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Режимы доставки событий смерти
const (
	ModeDirect    = "direct"    // снятие синхронно в хуке смерти
	ModeMemory    = "memory"    // через шину в памяти процесса
	ModeJetStream = "jetstream" // через NATS JetStream
)

// durableName - префикс durable consumer'ов JetStream
const durableName = "backinv-snapshots"

// openEventBus подменяется в тестах
var openEventBus = OpenEventBus

// App - собранный сервис
type App struct {
	Config     *config.Holder
	Players    *entity.PlayerManager
	Service    *lifecycle.Service
	Dispatcher *command.Dispatcher
	Registry   *prometheus.Registry

	source   string
	repo     storage.SnapshotRepo
	bus      eventbus.EventBus
	exporter *eventbus.MetricsExporter
	api      *api.RestServer
	subs     []eventbus.Subscription

	wg  sync.WaitGroup
	log *logging.Logger
}

// Options дополнительные параметры сборки
type Options struct {
	Source string               // имя узла в событиях, по умолчанию "backinv"
	Clock  snapshot.Clock       // nil - системные часы
	Repo   storage.SnapshotRepo // nil - открыть по конфигурации
}

// New собирает сервис по текущей конфигурации holder.
func New(holder *config.Holder, opts Options) (*App, error) {
	cfg := holder.Current()
	a := &App{
		Config:   holder,
		Players:  entity.NewPlayerManager(),
		Registry: prometheus.NewRegistry(),
		source:   opts.Source,
		repo:     opts.Repo,
		log:      logging.GetComponentLogger("app"),
	}
	if a.source == "" {
		a.source = "backinv"
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if a.repo == nil {
		repo, err := storage.Open(StorageOptions(cfg.Storage))
		if err != nil {
			return nil, fmt.Errorf("хранилище %s: %w", cfg.Storage.Backend, err)
		}
		a.repo = repo
	}

	svc, err := lifecycle.New(lifecycle.Options{
		Store:      snapshot.NewStore(a.repo, snapshot.NewNamer(opts.Clock)),
		Codec:      entity.JSONStateCodec{},
		Directory:  a.Players,
		Config:     holder,
		Registerer: a.Registry,
	})
	if err != nil {
		a.closeRepo()
		return nil, err
	}
	a.Service = svc
	a.Dispatcher = command.NewDispatcher(svc)

	if err := a.wireDeaths(cfg.EventBus); err != nil {
		// Шина уже могла быть открыта
		_ = a.Close(context.Background())
		return nil, err
	}

	if cfg.API.Enabled {
		if err := a.buildAPI(cfg.API); err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}

	a.log.Info("🚀 backinv собран: storage=%s eventbus=%s api=%v", backendName(cfg.Storage.Backend), modeName(cfg.EventBus.Mode), cfg.API.Enabled)
	return a, nil
}

// StorageOptions переводит секцию storage конфигурации в параметры хранилища
func StorageOptions(cfg config.StorageConfig) storage.Options {
	return storage.Options{
		Backend:   cfg.Backend,
		Root:      cfg.Root,
		Extension: cfg.Extension,
		Badger: storage.BadgerConfig{
			Path:     cfg.BadgerPath,
			Compress: cfg.Compress,
		},
		Redis: storage.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			Compress:  cfg.Compress,
		},
	}
}

// OpenEventBus создаёт шину событий по режиму. Для direct возвращает nil.
func OpenEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch modeName(cfg.Mode) {
	case ModeDirect:
		return nil, nil
	case ModeMemory:
		return eventbus.NewMemoryBus(cfg.Capacity), nil
	case ModeJetStream:
		return eventbus.NewJetStreamBus(eventbus.JetStreamConfig{
			URL:       cfg.URL,
			Stream:    cfg.Stream,
			Durable:   durableName,
			Retention: time.Duration(cfg.Retention) * time.Hour,
		})
	default:
		return nil, fmt.Errorf("неизвестный режим шины событий: %q", cfg.Mode)
	}
}

// wireDeaths подключает снятие снапшотов к смерти игроков
func (a *App) wireDeaths(cfg config.EventBusConfig) error {
	bus, err := openEventBus(cfg)
	if err != nil {
		return err
	}

	if bus == nil {
		a.Players.OnPreDeath(func(p *entity.Player) {
			a.Service.Capture(context.Background(), p)
		})
		return nil
	}

	a.bus = bus

	ctx := context.Background()
	sub, err := a.Service.SubscribeDeaths(ctx, bus)
	if err != nil {
		return err
	}
	a.subs = append(a.subs, sub)

	if sub, err := eventbus.StartLoggingListener(ctx, bus); err == nil {
		a.subs = append(a.subs, sub)
	} else {
		a.log.Warn("⚠️ Логирование событий недоступно: %v", err)
	}

	exporter, err := eventbus.NewMetricsExporter(bus, a.Registry)
	if err != nil {
		return err
	}
	a.exporter = exporter

	a.Players.OnPreDeath(func(p *entity.Player) {
		if err := a.Service.PublishDeath(ctx, bus, a.source, p); err != nil {
			// Шина недоступна: снапшот снимается на месте, чтобы не потерять инвентарь
			a.log.Warn("⚠️ Публикация смерти %s не удалась (%v), снимаем снапшот напрямую", p.Name(), err)
			a.Service.Capture(ctx, p)
		}
	})
	return nil
}

func (a *App) buildAPI(cfg config.APIConfig) error {
	operators, err := auth.NewOperatorRepo(cfg.Operators)
	if err != nil {
		return fmt.Errorf("операторы API: %w", err)
	}
	if operators.Len() == 0 {
		a.log.Warn("⚠️ API включён, но не задано ни одного оператора")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("JWT: %w", err)
	}

	a.api, err = api.NewRestServer(api.Config{
		Addr:      cfg.Addr,
		Service:   a.Service,
		Operators: operators,
		Tokens:    tokens,
		Registry:  a.Registry,
	})
	return err
}

// Start запускает фоновые части: слежение за конфигурацией, экспорт метрик шины и REST API.
func (a *App) Start(ctx context.Context) {
	if a.Config.Path() != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.Config.Watch(ctx); err != nil {
				a.log.Warn("⚠️ Слежение за конфигурацией остановлено: %v", err)
			}
		}()
	}

	if a.exporter != nil {
		a.exporter.Start(15 * time.Second)
	}

	if a.api != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.api.Start(); err != nil {
				a.log.Error("❌ REST API остановлен с ошибкой: %v", err)
			}
		}()
	}
}

// Execute выполняет строку команды оператора
func (a *App) Execute(ctx context.Context, sender command.Sender, line string) int {
	return a.Dispatcher.Execute(ctx, sender, line)
}

// Close останавливает API, шину и хранилище. ctx ограничивает ожидание API.
// Слежение за конфигурацией завершается отменой контекста, переданного в Start.
func (a *App) Close(ctx context.Context) error {
	var errs []string

	if a.api != nil {
		if err := a.api.Stop(ctx); err != nil {
			errs = append(errs, "api: "+err.Error())
		}
	}
	if a.exporter != nil {
		a.exporter.Stop()
	}
	if a.bus != nil {
		// Close дожидается обработчиков, уже получивших события
		if err := a.bus.Close(); err != nil {
			errs = append(errs, "eventbus: "+err.Error())
		}
	}
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	if err := a.closeRepo(); err != nil {
		errs = append(errs, "storage: "+err.Error())
	}

	a.wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("остановка backinv: %s", strings.Join(errs, "; "))
	}
	a.log.Info("👋 backinv остановлен")
	return nil
}

func (a *App) closeRepo() error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close()
	a.repo = nil
	return err
}

func backendName(b string) string {
	if b == "" {
		return storage.BackendFile
	}
	return strings.ToLower(b)
}

func modeName(m string) string {
	if m == "" {
		return ModeDirect
	}
	return strings.ToLower(m)
}
