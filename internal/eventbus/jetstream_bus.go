package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/backinv/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// subjectPrefix - пространство subject'ов стрима: backinv.events.<type>
const subjectPrefix = "backinv.events."

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Позволяет серверам игры публиковать PlayerPreDeath, а отдельному процессу сохранять снапшоты.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	durable   string
	published uint64
	consumed  uint64
	dropped   uint64

	mu       sync.Mutex
	durables map[string]int // выданные имена durable consumer'ов
}

// JetStreamConfig параметры подключения
type JetStreamConfig struct {
	URL       string
	Stream    string
	Durable   string // префикс имён durable consumer'ов; пусто - эфемерные подписки
	Retention time.Duration
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
func NewJetStreamBus(cfg JetStreamConfig) (*JetStreamBus, error) {
	if cfg.Stream == "" {
		cfg.Stream = "BACKINV"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("backinv"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{subjectPrefix + "*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    cfg.Retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	logging.Info("📡 JetStream подключён: %s stream=%s", cfg.URL, cfg.Stream)
	return &JetStreamBus{nc: nc, js: js, stream: cfg.Stream, durable: cfg.Durable}, nil
}

// Publish сериализует Envelope в JSON и публикует в subject backinv.events.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = jb.js.Publish(subjectPrefix+ev.EventType, data, nats.Context(ctx), nats.MsgId(ev.ID))
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("jetstream publish %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт consumer и вызывает handler для каждого сообщения.
// Сообщение подтверждается после обработки; нераспознанные конверты подтверждаются и считаются отброшенными.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := subjectPrefix + "*"
	if len(f.Types) == 1 {
		subj = subjectPrefix + f.Types[0]
	}

	opts := []nats.SubOpt{nats.ManualAck(), nats.AckWait(30 * time.Second), nats.DeliverNew()}
	if name := jb.nextDurable(f); name != "" {
		opts = append(opts, nats.Durable(name))
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			logging.Warn("⚠️ JetStream: неразборчивый конверт на %s: %v", msg.Subject, err)
			_ = msg.Ack()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &jetSub{natSub}, nil
}

// nextDurable выдаёт отдельное durable имя каждой подписке.
// Подписки с одинаковым фильтром различаются порядковым номером, поэтому при
// неизменном порядке подписок процесс после рестарта получает те же consumer'ы.
func (jb *JetStreamBus) nextDurable(f Filter) string {
	if jb.durable == "" {
		return ""
	}
	name := durableFor(jb.durable, f)

	jb.mu.Lock()
	defer jb.mu.Unlock()
	if jb.durables == nil {
		jb.durables = make(map[string]int)
	}
	jb.durables[name]++
	if n := jb.durables[name]; n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
	}
	return name
}

// durableFor строит имя consumer'а из префикса и фильтра.
// Имена durable в NATS не допускают '.', '*', '>' и пробелов.
func durableFor(base string, f Filter) string {
	if base == "" {
		return ""
	}
	key := "all"
	if len(f.Types) > 0 || len(f.Sources) > 0 {
		parts := append(append([]string{}, f.Types...), f.Sources...)
		key = strings.Join(parts, "_")
	}
	key = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '/', '\\':
			return '_'
		}
		return r
	}, key)
	return base + "-" + key
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // jetstream keeps its own queue
	}
}

// Close дожидается доставки и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
