package entity

// Vec3 - позиция или скорость в мире
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ItemStack - стопка предметов в слоте инвентаря
type ItemStack struct {
	Slot  int    `json:"Slot"`
	ID    string `json:"id"`
	Count int    `json:"Count"`
}

// State - сохраняемая часть состояния игрока
type State struct {
	Inventory  []ItemStack `json:"Inventory"`
	Health     float64     `json:"Health"`
	Pos        Vec3        `json:"Pos"`
	Motion     Vec3        `json:"Motion"`
	XpLevel    int         `json:"XpLevel"`
	XpProgress float64     `json:"XpP"`
}

// clone возвращает копию, не разделяющую срез инвентаря
func (s State) clone() State {
	c := s
	c.Inventory = append([]ItemStack(nil), s.Inventory...)
	return c
}

const (
	// DefaultMaxHealth - здоровье игрока после возрождения
	DefaultMaxHealth = 20.0
	// InventorySize - число слотов инвентаря
	InventorySize = 36
)
