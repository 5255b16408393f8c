package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreDeathEnvelope(t *testing.T) {
	ev := NewPreDeathEnvelope("server-1", "Alice", []byte(`{"Health":20}`))

	_, err := uuid.Parse(ev.ID)
	assert.NoError(t, err, "ID должен быть UUID")
	assert.Equal(t, EventTypePlayerPreDeath, ev.EventType)
	assert.Equal(t, "Alice", ev.Metadata[MetaPlayer])
	assert.Equal(t, 9, ev.Priority)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventTypePlayerPreDeath}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.Metadata[MetaPlayer])
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewPreDeathEnvelope("s", "Alice", nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", "ChatEvent", nil)))
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Alice"}, got, "фильтр по типу пропускает только PlayerPreDeath")

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", "X", nil)))
	select {
	case <-calls:
		t.Fatal("после отписки обработчик не вызывается")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")

	assert.ErrorIs(t, bus.Publish(context.Background(), NewEnvelope("s", "X", nil)), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMatchFilter(t *testing.T) {
	ev := &Envelope{EventType: "A", Source: "s1"}

	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Types: []string{"B", "A"}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{"B"}}))
	assert.False(t, matchFilter(ev, Filter{Sources: []string{"s2"}}))
}

// statsBus отдаёт заранее заданную статистику
type statsBus struct {
	EventBus
	stats Stats
}

func (b *statsBus) Metrics() Stats { return b.stats }

func TestMetricsExporter_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := &statsBus{stats: Stats{Published: 3, Consumed: 2, Dropped: 1, InFlight: 5}}

	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	me.Collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 5.0, testutil.ToFloat64(me.inflight))

	bus.stats = Stats{Published: 7, Consumed: 2, Dropped: 1}
	me.Collect()
	assert.Equal(t, 7.0, testutil.ToFloat64(me.published), "счётчик растёт на дельту")
	assert.Equal(t, 2.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.inflight))

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация в том же реестре отвергается")
}

func TestJetStreamDurablePerSubscription(t *testing.T) {
	jb := &JetStreamBus{durable: "backinv-snapshots"}

	deaths := jb.nextDurable(Filter{Types: []string{EventTypePlayerPreDeath}})
	all := jb.nextDurable(Filter{})
	allAgain := jb.nextDurable(Filter{})

	assert.Equal(t, "backinv-snapshots-PlayerPreDeath", deaths)
	assert.Equal(t, "backinv-snapshots-all", all)
	assert.Equal(t, "backinv-snapshots-all-2", allAgain)
	assert.NotEqual(t, deaths, all)

	assert.Equal(t, "b-x_y_z", durableFor("b", Filter{Types: []string{"x.y"}, Sources: []string{"z"}}))
	assert.Empty(t, (&JetStreamBus{}).nextDurable(Filter{}), "без префикса подписка эфемерная")
}
