package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/backinv/internal/lifecycle"
)

// JSONStateCodec сохраняет состояние игрока в JSON.
// В снапшот пишется максимальное здоровье и нулевая скорость.
type JSONStateCodec struct{}

var _ lifecycle.StateCodec = JSONStateCodec{}

// Serialize снимает состояние игрока
func (JSONStateCodec) Serialize(target lifecycle.Player) ([]byte, error) {
	p, ok := target.(*Player)
	if !ok {
		return nil, fmt.Errorf("неподдерживаемый тип игрока %T", target)
	}

	state := p.State()
	state.Health = p.MaxHealth()
	state.Motion = Vec3{}
	if state.Inventory == nil {
		state.Inventory = []ItemStack{}
	}
	return json.Marshal(state)
}

// Deserialize разбирает полезную нагрузку. Проверяется только корректность JSON.
func (JSONStateCodec) Deserialize(payload []byte) (any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.New("пустой снапшот")
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, err
	}
	return state, nil
}

// Apply заменяет состояние игрока восстановленным
func (JSONStateCodec) Apply(target lifecycle.Player, state any) error {
	p, ok := target.(*Player)
	if !ok {
		return fmt.Errorf("неподдерживаемый тип игрока %T", target)
	}
	s, ok := state.(State)
	if !ok {
		return fmt.Errorf("неподдерживаемый тип состояния %T", state)
	}
	p.SetState(s)
	return nil
}
