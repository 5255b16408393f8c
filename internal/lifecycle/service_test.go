package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/eventbus"
	"github.com/annel0/backinv/internal/lifecycle"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/annel0/backinv/internal/storage"
	"github.com/annel0/backinv/internal/world/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *lifecycle.Service
	players *entity.PlayerManager
	repo    *storage.MemorySnapshotRepo
	cfg     *config.Holder
	reg     *prometheus.Registry
	clock   *tickClock
}

// tickClock сдвигается на секунду при каждом чтении
type tickClock struct{ now time.Time }

func (c *tickClock) Now() time.Time {
	now := c.now
	c.now = c.now.Add(time.Second)
	return now
}

func newFixture(t *testing.T, codec lifecycle.StateCodec) *fixture {
	t.Helper()

	if codec == nil {
		codec = entity.JSONStateCodec{}
	}
	f := &fixture{
		players: entity.NewPlayerManager(),
		repo:    storage.NewMemorySnapshotRepo(),
		cfg:     config.NewHolder("", config.Default()),
		reg:     prometheus.NewRegistry(),
		clock:   &tickClock{now: time.Date(2024, 6, 5, 14, 3, 22, 0, time.Local)},
	}

	svc, err := lifecycle.New(lifecycle.Options{
		Store:      snapshot.NewStore(f.repo, snapshot.NewNamer(f.clock)),
		Codec:      codec,
		Directory:  f.players,
		Config:     f.cfg,
		Registerer: f.reg,
	})
	require.NoError(t, err)
	f.svc = svc

	f.players.OnPreDeath(func(p *entity.Player) {
		svc.Capture(context.Background(), p)
	})
	return f
}

func TestCapture_OnDeath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	alice := f.players.Join("Alice")
	require.NoError(t, alice.AddItem("minecraft:diamond", 3))
	require.True(t, f.players.Damage(alice, 100))

	list, err := f.svc.List(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, snapshot.List{"14.03.22 05-06-2024"}, list)
	assert.Zero(t, alice.CountItem("minecraft:diamond"), "смерть всё равно произошла")

	assert.Equal(t, 1.0, metricValue(t, f.reg, "backinv_captures_total", "ok"))
}

func TestCapture_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	disabled := config.Default()
	disabled.Enabled = false
	f.cfg.Swap(disabled)

	res := f.svc.Capture(context.Background(), entity.NewPlayer("Alice"))
	assert.True(t, res.Skipped)
	assert.False(t, res.OK())
	assert.Zero(t, f.repo.Count())
}

func TestCapture_StorageFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.FailWrites = true

	alice := f.players.Join("Alice")
	require.NoError(t, alice.AddItem("minecraft:diamond", 1))

	var res lifecycle.CaptureResult
	assert.NotPanics(t, func() {
		res = f.svc.Capture(context.Background(), alice)
	})
	assert.ErrorIs(t, res.Err, snapshot.ErrStorageUnavailable)
	assert.True(t, f.players.Damage(alice, 100), "сбой хранилища не мешает смерти")
}

// panicCodec паникует при сериализации
type panicCodec struct{ entity.JSONStateCodec }

func (panicCodec) Serialize(lifecycle.Player) ([]byte, error) { panic("boom") }

func TestCapture_PanicIsAbsorbed(t *testing.T) {
	f := newFixture(t, panicCodec{})

	res := f.svc.Capture(context.Background(), entity.NewPlayer("Alice"))
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
}

func TestCapture_InvalidPlayerName(t *testing.T) {
	f := newFixture(t, nil)

	res := f.svc.Capture(context.Background(), entity.NewPlayer("../etc"))
	assert.ErrorIs(t, res.Err, snapshot.ErrInvalidPlayer)
	assert.Zero(t, f.repo.Count())
}

func TestRestore_LatestSave(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	alice := f.players.Join("Alice")
	require.NoError(t, alice.AddItem("minecraft:diamond", 3))
	require.True(t, f.players.Damage(alice, 100))
	alice.Respawn(entity.Vec3{})
	require.NoError(t, alice.AddItem("minecraft:dirt", 1))
	require.True(t, f.players.Damage(alice, 100))
	alice.Respawn(entity.Vec3{})

	restored, err := f.svc.Restore(ctx, "Alice", "1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID("14.03.23 05-06-2024"), restored.ID, "1 - самый новый снапшот")

	assert.Equal(t, 1, alice.CountItem("minecraft:dirt"))
	assert.Zero(t, alice.CountItem("minecraft:diamond"))

	msgs := alice.Messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "Player Alice inventory is loaded from file 14.03.23 05-06-2024.")

	reason, disconnected := alice.Disconnected()
	assert.True(t, disconnected)
	assert.Equal(t, "Sorry come back again", reason)
	_, online := f.players.Get("Alice")
	assert.False(t, online)
}

func TestRestore_ByLiteral(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	alice := f.players.Join("Alice")
	require.NoError(t, alice.AddItem("minecraft:diamond", 3))
	require.True(t, f.svc.Capture(ctx, alice).OK())
	require.True(t, f.svc.Capture(ctx, alice).OK())

	restored, err := f.svc.Restore(ctx, "Alice", "14.03.22 05-06-2024")
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID("14.03.22 05-06-2024"), restored.ID)
}

func TestRestore_OperatorErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	alice := f.players.Join("Alice")
	require.True(t, f.svc.Capture(ctx, alice).OK())
	f.players.Join("Carol")

	tests := []struct {
		name   string
		player string
		token  string
		want   error
	}{
		{"offline", "Bob", "1", snapshot.ErrPlayerNotOnline},
		{"no saves", "Carol", "1", snapshot.ErrNoSaves},
		{"zero", "Alice", "0", snapshot.ErrInvalidIndex},
		{"past end", "Alice", "2", snapshot.ErrInvalidIndex},
		{"unknown literal", "Alice", "yesterday", snapshot.ErrSaveNotFound},
		{"invalid name", "a/b", "1", snapshot.ErrInvalidPlayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Restore(ctx, tt.player, tt.token)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, snapshot.IsTargetFacing(err))
		})
	}

	_, disconnected := alice.Disconnected()
	assert.False(t, disconnected, "ошибки выбора не затрагивают игрока")
	assert.Equal(t, 6.0, metricValue(t, f.reg, "backinv_restores_total", "rejected"))

	var e *snapshot.Error
	_, err := f.svc.Restore(ctx, "Carol", "1")
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Carol", e.Player, "NoSaves несёт имя игрока для {player}")
}

func TestRestore_CorruptPayloadNotifiesTarget(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.repo.Write(ctx, "Alice", "14.03.22 05-06-2024", []byte("{not json")))
	alice := f.players.Join("Alice")
	require.NoError(t, alice.AddItem("minecraft:stick", 1))

	_, err := f.svc.Restore(ctx, "Alice", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrDeserialization)
	assert.True(t, snapshot.IsTargetFacing(err))

	msgs := alice.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Failed to save inventory for player Alice file 14.03.22 05-06-2024 - Error- ")

	_, disconnected := alice.Disconnected()
	assert.False(t, disconnected, "при ошибке игрок остаётся в игре")
	assert.Equal(t, 1, alice.CountItem("minecraft:stick"), "состояние не изменилось")
}

// failingApply не может применить состояние
type failingApply struct{ entity.JSONStateCodec }

func (failingApply) Apply(lifecycle.Player, any) error { return errors.New("host rejected state") }

func TestRestore_ApplyFailure(t *testing.T) {
	f := newFixture(t, failingApply{})
	ctx := context.Background()

	alice := f.players.Join("Alice")
	require.True(t, f.svc.Capture(ctx, alice).OK())

	_, err := f.svc.Restore(ctx, "Alice", "1")
	assert.ErrorIs(t, err, snapshot.ErrApplyFailed)

	msgs := alice.Messages()
	require.Len(t, msgs, 2, "сначала loadPlayer, затем errorLoadPlayer")
	assert.Contains(t, msgs[1], "host rejected state")
}

func TestList_OfflinePlayer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.True(t, f.svc.Persist(ctx, "Bob", []byte(`{"Health":20}`)).OK())

	list, err := f.svc.List(ctx, "Bob")
	require.NoError(t, err)
	assert.Len(t, list, 1, "список доступен и для игрока не в сети")

	_, err = f.svc.List(ctx, "..")
	assert.ErrorIs(t, err, snapshot.ErrInvalidPlayer)
}

func TestSubscribeDeaths(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(8)

	_, err := f.svc.SubscribeDeaths(ctx, bus)
	require.NoError(t, err)

	alice := entity.NewPlayer("Alice")
	require.NoError(t, alice.AddItem("minecraft:diamond", 2))
	require.NoError(t, f.svc.PublishDeath(ctx, bus, "server-1", alice))
	require.NoError(t, bus.Close())

	list, err := f.svc.List(ctx, "Alice")
	require.NoError(t, err)
	require.Len(t, list, 1)

	payload, err := f.repo.Read(ctx, "Alice", string(list[0]))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "minecraft:diamond")
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := lifecycle.New(lifecycle.Options{})
	assert.Error(t, err)
}

// metricValue достаёт значение счётчика с label result из реестра
func metricValue(t *testing.T, reg *prometheus.Registry, name, result string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
