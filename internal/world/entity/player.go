package entity

import (
	"fmt"
	"sync"
)

// Player представляет игрока, подключённого к серверу
type Player struct {
	mu        sync.Mutex
	name      string
	state     State
	maxHealth float64
	dead      bool

	inbox        []string
	disconnected bool
	kickReason   string
	onDisconnect func(p *Player)
}

// NewPlayer создаёт игрока с полным здоровьем и пустым инвентарём
func NewPlayer(name string) *Player {
	return &Player{
		name:      name,
		maxHealth: DefaultMaxHealth,
		state:     State{Health: DefaultMaxHealth},
	}
}

// Name возвращает имя игрока
func (p *Player) Name() string { return p.name }

// SendMessage доставляет сообщение в чат игрока
func (p *Player) SendMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox = append(p.inbox, text)
}

// Messages возвращает копию полученных сообщений
func (p *Player) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inbox...)
}

// Disconnect отключает игрока с указанной причиной
func (p *Player) Disconnect(reason string) {
	p.mu.Lock()
	if p.disconnected {
		p.mu.Unlock()
		return
	}
	p.disconnected = true
	p.kickReason = reason
	hook := p.onDisconnect
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
}

// Disconnected сообщает, отключён ли игрок, и причину
func (p *Player) Disconnected() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kickReason, p.disconnected
}

// State возвращает снимок состояния игрока
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// SetState заменяет состояние игрока целиком
func (p *Player) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s.clone()
	p.dead = s.Health <= 0
}

// MaxHealth возвращает максимальное здоровье
func (p *Player) MaxHealth() float64 { return p.maxHealth }

// IsDead сообщает, мёртв ли игрок
func (p *Player) IsDead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead
}

// AddItem кладёт предметы в первый подходящий слот
func (p *Player) AddItem(id string, count int) error {
	if count <= 0 {
		return fmt.Errorf("некорректное количество %d", count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.Inventory {
		if p.state.Inventory[i].ID == id {
			p.state.Inventory[i].Count += count
			return nil
		}
	}

	used := make(map[int]bool, len(p.state.Inventory))
	for _, st := range p.state.Inventory {
		used[st.Slot] = true
	}
	for slot := 0; slot < InventorySize; slot++ {
		if !used[slot] {
			p.state.Inventory = append(p.state.Inventory, ItemStack{Slot: slot, ID: id, Count: count})
			return nil
		}
	}
	return fmt.Errorf("инвентарь игрока %s заполнен", p.name)
}

// CountItem возвращает количество предмета в инвентаре
func (p *Player) CountItem(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, st := range p.state.Inventory {
		if st.ID == id {
			total += st.Count
		}
	}
	return total
}

// MoveTo задаёт позицию и скорость
func (p *Player) MoveTo(pos, motion Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Pos = pos
	p.state.Motion = motion
}

// applyDamage уменьшает здоровье несмертельным ударом.
// Смертельный удар состояние не меняет и возвращает true.
func (p *Player) applyDamage(amount float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dead || amount <= 0 {
		return false
	}
	if p.state.Health-amount <= 0 {
		return true
	}
	p.state.Health -= amount
	return false
}

// die выполняет смерть: инвентарь выпадает, здоровье обнуляется
func (p *Player) die() []ItemStack {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := p.state.Inventory
	p.state.Inventory = nil
	p.state.Health = 0
	p.state.Motion = Vec3{}
	p.state.XpLevel = 0
	p.state.XpProgress = 0
	p.dead = true
	return dropped
}

// Respawn возрождает игрока с полным здоровьем
func (p *Player) Respawn(at Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Health = p.maxHealth
	p.state.Pos = at
	p.state.Motion = Vec3{}
	p.dead = false
}
