package entity

import (
	"sort"
	"sync"

	"github.com/annel0/backinv/internal/lifecycle"
	"github.com/annel0/backinv/internal/logging"
)

// PreDeathHook вызывается синхронно перед тем, как смерть изменит состояние игрока.
type PreDeathHook func(p *Player)

// PlayerManager управляет игроками в сети
type PlayerManager struct {
	mu       sync.RWMutex
	players  map[string]*Player // Игроки в сети по имени
	preDeath []PreDeathHook
}

// NewPlayerManager создаёт новый менеджер игроков
func NewPlayerManager() *PlayerManager {
	return &PlayerManager{
		players: make(map[string]*Player),
	}
}

// OnPreDeath регистрирует обработчик, вызываемый перед смертью игрока
func (pm *PlayerManager) OnPreDeath(hook PreDeathHook) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.preDeath = append(pm.preDeath, hook)
}

// Join подключает игрока. Повторный вход с тем же именем заменяет прежнюю сессию.
func (pm *PlayerManager) Join(name string) *Player {
	p := NewPlayer(name)
	p.onDisconnect = pm.leave

	pm.mu.Lock()
	old := pm.players[name]
	pm.players[name] = p
	pm.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.onDisconnect = nil
		old.mu.Unlock()
		old.Disconnect("logged in from another location")
	}

	logging.Info("👤 Игрок %s вошёл в игру", name)
	return p
}

// leave убирает игрока из реестра, если зарегистрирована именно эта сессия
func (pm *PlayerManager) leave(p *Player) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if cur, ok := pm.players[p.name]; ok && cur == p {
		delete(pm.players, p.name)
		logging.Info("👋 Игрок %s вышел из игры", p.name)
	}
}

// Get возвращает игрока в сети по имени
func (pm *PlayerManager) Get(name string) (*Player, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.players[name]
	return p, ok
}

// OnlinePlayer реализует lifecycle.PlayerDirectory
func (pm *PlayerManager) OnlinePlayer(name string) (lifecycle.Player, bool) {
	p, ok := pm.Get(name)
	if !ok {
		return nil, false
	}
	return p, true
}

// Online возвращает имена игроков в сети в алфавитном порядке
func (pm *PlayerManager) Online() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, 0, len(pm.players))
	for name := range pm.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Damage наносит урон игроку. Смертельный урон сначала вызывает PreDeath
// обработчики со старым состоянием, затем инвентарь выпадает.
// Возвращает true, если игрок погиб.
func (pm *PlayerManager) Damage(p *Player, amount float64) bool {
	if !p.applyDamage(amount) {
		return false
	}

	pm.mu.RLock()
	hooks := append([]PreDeathHook(nil), pm.preDeath...)
	pm.mu.RUnlock()

	for _, hook := range hooks {
		pm.runHook(hook, p)
	}

	dropped := p.die()
	logging.Info("💀 Игрок %s погиб, выпало стопок: %d", p.name, len(dropped))
	return true
}

// runHook изолирует панику обработчика: смерть должна произойти в любом случае
func (pm *PlayerManager) runHook(hook PreDeathHook, p *Player) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("❌ PreDeath обработчик для %s запаниковал: %v", p.name, r)
		}
	}()
	hook(p)
}
