package lifecycle

import (
	"context"
	"fmt"

	"github.com/annel0/backinv/internal/eventbus"
)

// SubscribeDeaths сохраняет снапшоты из событий PlayerPreDeath, пришедших через шину.
// Полезная нагрузка события - уже сериализованное состояние игрока.
func (s *Service) SubscribeDeaths(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	filter := eventbus.Filter{Types: []string{eventbus.EventTypePlayerPreDeath}}
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		name := ev.Metadata[eventbus.MetaPlayer]
		res := s.Persist(ctx, name, ev.Payload)
		if res.Err != nil {
			s.log.Warn("⚠️ Событие %s для %s не сохранено: %v", ev.ID, name, res.Err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("подписка на %s: %w", eventbus.EventTypePlayerPreDeath, err)
	}
	s.log.Info("📥 Подписка на %s активирована", eventbus.EventTypePlayerPreDeath)
	return sub, nil
}

// PublishDeath сериализует состояние игрока и публикует PlayerPreDeath.
// Используется сервером игры, когда снапшоты сохраняет другой процесс.
func (s *Service) PublishDeath(ctx context.Context, bus eventbus.EventBus, source string, p Player) error {
	if !s.cfg.Current().Enabled {
		return nil
	}

	payload, err := s.codec.Serialize(p)
	if err != nil {
		return fmt.Errorf("сериализация %s: %w", p.Name(), err)
	}
	return bus.Publish(ctx, eventbus.NewPreDeathEnvelope(source, p.Name(), payload))
}
