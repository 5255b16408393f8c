// Package lifecycle связывает снятие, перечисление и восстановление снапшотов
// инвентаря с хостом: событиями смерти, онлайн-игроками и конфигурацией.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/messages"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/annel0/backinv/internal/lifecycle"

// CaptureResult - итог снятия снапшота. Ошибка не возвращается вызывающему
// событию смерти, а только записывается сюда.
type CaptureResult struct {
	Player  string
	ID      snapshot.ID
	Skipped bool // снятие выключено в конфигурации
	Err     error
}

// OK сообщает, что снапшот сохранён
func (r CaptureResult) OK() bool { return !r.Skipped && r.Err == nil && r.ID != "" }

// Restored описывает успешное восстановление
type Restored struct {
	Player string
	ID     snapshot.ID
}

// Options зависимости сервиса
type Options struct {
	Store      *snapshot.Store
	Codec      StateCodec
	Directory  PlayerDirectory
	Config     *config.Holder
	Locks      *snapshot.PlayerLocks // nil - собственный набор
	Registerer prometheus.Registerer // nil - отдельный реестр
	Tracer     trace.Tracer          // nil - глобальный TracerProvider
}

// Service управляет жизненным циклом снапшотов
type Service struct {
	store   *snapshot.Store
	codec   StateCodec
	dir     PlayerDirectory
	cfg     *config.Holder
	locks   *snapshot.PlayerLocks
	metrics *Metrics
	tracer  trace.Tracer
	log     *logging.Logger
}

// New создаёт сервис
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Codec == nil || opts.Config == nil {
		return nil, errors.New("lifecycle: store, codec и config обязательны")
	}

	metrics, err := NewMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: регистрация метрик: %w", err)
	}

	s := &Service{
		store:   opts.Store,
		codec:   opts.Codec,
		dir:     opts.Directory,
		cfg:     opts.Config,
		locks:   opts.Locks,
		metrics: metrics,
		tracer:  opts.Tracer,
		log:     logging.GetLifecycleLogger(),
	}
	if s.locks == nil {
		s.locks = snapshot.NewPlayerLocks()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// Config возвращает текущую конфигурацию
func (s *Service) Config() *config.Config { return s.cfg.Current() }

// Capture снимает снапшот игрока перед смертью.
// Никогда не возвращает ошибку и не паникует: смерть продолжается при любом исходе.
func (s *Service) Capture(ctx context.Context, p Player) (res CaptureResult) {
	res.Player = p.Name()

	ctx, span := s.tracer.Start(ctx, "backinv.capture", trace.WithAttributes(attribute.String("player", res.Player)))
	defer span.End()
	defer s.recoverCapture(&res, span)

	if !s.cfg.Current().Enabled {
		res.Skipped = true
		s.metrics.captures.WithLabelValues(resultSkipped).Inc()
		return res
	}

	player, err := snapshot.ParsePlayerID(res.Player)
	if err != nil {
		return s.captureFailed(res, span, err)
	}

	payload, err := s.codec.Serialize(p)
	if err != nil {
		return s.captureFailed(res, span, &snapshot.Error{Kind: snapshot.KindUnknown, Player: res.Player, Action: "serializing inventory", Err: err})
	}

	return s.persist(ctx, span, player, payload)
}

// Persist сохраняет уже сериализованное состояние, полученное извне (например, из шины событий).
// Как и Capture, ошибки только записываются в результат.
func (s *Service) Persist(ctx context.Context, name string, payload []byte) (res CaptureResult) {
	res.Player = name

	ctx, span := s.tracer.Start(ctx, "backinv.persist", trace.WithAttributes(attribute.String("player", name)))
	defer span.End()
	defer s.recoverCapture(&res, span)

	if !s.cfg.Current().Enabled {
		res.Skipped = true
		s.metrics.captures.WithLabelValues(resultSkipped).Inc()
		return res
	}

	player, err := snapshot.ParsePlayerID(name)
	if err != nil {
		return s.captureFailed(res, span, err)
	}
	return s.persist(ctx, span, player, payload)
}

func (s *Service) persist(ctx context.Context, span trace.Span, player snapshot.PlayerID, payload []byte) CaptureResult {
	res := CaptureResult{Player: string(player)}

	unlock := s.locks.Lock(player)
	id, err := s.store.Save(ctx, player, payload)
	unlock()
	if err != nil {
		return s.captureFailed(res, span, err)
	}

	res.ID = id
	s.metrics.captures.WithLabelValues(resultOK).Inc()
	s.metrics.payloadBytes.Observe(float64(len(payload)))
	span.SetAttributes(attribute.String("snapshot", string(id)), attribute.Int("payload_bytes", len(payload)))
	s.log.Info("💾 Saved inventory for player %s to file %s", player, id)
	return res
}

func (s *Service) captureFailed(res CaptureResult, span trace.Span, err error) CaptureResult {
	res.Err = err
	s.metrics.captures.WithLabelValues(resultError).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "capture failed")
	s.log.Error("❌ Error saving player inventory for %s: %v", res.Player, err)
	return res
}

func (s *Service) recoverCapture(res *CaptureResult, span trace.Span) {
	if r := recover(); r != nil {
		*res = s.captureFailed(CaptureResult{Player: res.Player}, span, fmt.Errorf("panic: %v", r))
	}
}

// List возвращает снапшоты игрока, новые первыми. Игрок может быть не в сети.
// Пустой список - не ошибка.
func (s *Service) List(ctx context.Context, name string) (snapshot.List, error) {
	ctx, span := s.tracer.Start(ctx, "backinv.list", trace.WithAttributes(attribute.String("player", name)))
	defer span.End()
	s.metrics.lists.Inc()

	player, err := snapshot.ParsePlayerID(name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unlock := s.locks.Lock(player)
	defer unlock()

	list := s.store.List(ctx, player)
	span.SetAttributes(attribute.Int("count", len(list)))
	return list, nil
}

// Restore восстанавливает инвентарь игрока в сети из снапшота, выбранного токеном.
//
// Ошибки выбора и чтения возвращаются оператору. Ошибки разбора и применения
// сообщаются самому игроку (errorLoadPlayer), а возвращаемая ошибка помечена
// как IsTargetFacing. После успешного применения игрок отключается с reJoin.
func (s *Service) Restore(ctx context.Context, name, token string) (*Restored, error) {
	ctx, span := s.tracer.Start(ctx, "backinv.restore",
		trace.WithAttributes(attribute.String("player", name), attribute.String("token", token)))
	defer span.End()

	restored, err := s.restore(ctx, name, token)
	switch {
	case err == nil:
		s.metrics.restores.WithLabelValues(resultOK).Inc()
		span.SetAttributes(attribute.String("snapshot", string(restored.ID)))
	case isOperatorError(err):
		s.metrics.restores.WithLabelValues(resultRejected).Inc()
		span.SetStatus(codes.Error, err.Error())
	default:
		s.metrics.restores.WithLabelValues(resultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return restored, err
}

func (s *Service) restore(ctx context.Context, name, token string) (*Restored, error) {
	player, err := snapshot.ParsePlayerID(name)
	if err != nil {
		return nil, err
	}

	var target Player
	if s.dir != nil {
		target, _ = s.dir.OnlinePlayer(name)
	}
	if target == nil {
		return nil, &snapshot.Error{Kind: snapshot.KindPlayerNotOnline, Player: name}
	}

	unlock := s.locks.Lock(player)
	defer unlock()

	list := s.store.List(ctx, player)
	id, err := snapshot.Resolve(token, list)
	if err != nil {
		var e *snapshot.Error
		if errors.As(err, &e) {
			e.Player = name
		}
		return nil, err
	}

	payload, err := s.store.Load(ctx, player, id)
	if err != nil {
		return nil, err
	}

	msgs := s.cfg.Current().Messages

	state, err := s.codec.Deserialize(payload)
	if err != nil {
		return nil, s.targetFailed(target, msgs, &snapshot.Error{Kind: snapshot.KindDeserialization, Player: name, Save: string(id), Err: err})
	}

	target.SendMessage(messages.Loaded(msgs, name, id))

	if err := s.codec.Apply(target, state); err != nil {
		return nil, s.targetFailed(target, msgs, &snapshot.Error{Kind: snapshot.KindApplyFailed, Player: name, Save: string(id), Err: err})
	}

	target.Disconnect(msgs.ReJoin)
	s.log.Info("✅ Successfully restored inventory for player %s from %s", name, id)
	return &Restored{Player: name, ID: id}, nil
}

func (s *Service) targetFailed(target Player, msgs config.Messages, e *snapshot.Error) error {
	s.log.Error("❌ Error loading inventory for %s from %s: %v", e.Player, e.Save, e.Err)
	target.SendMessage(messages.LoadFailed(msgs, e.Player, snapshot.ID(e.Save), e.Err))
	return e
}

// isOperatorError - ошибка ввода оператора, а не сбой хранилища или хоста
func isOperatorError(err error) bool {
	switch snapshot.KindOf(err) {
	case snapshot.KindInvalidPlayer, snapshot.KindPlayerNotOnline, snapshot.KindNoSaves,
		snapshot.KindInvalidIndex, snapshot.KindSaveNotFound, snapshot.KindNotFound:
		return true
	}
	return false
}
