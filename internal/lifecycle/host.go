package lifecycle

// Player - онлайн-игрок хоста, которому можно написать и которого можно отключить.
type Player interface {
	Name() string
	SendMessage(text string)
	Disconnect(reason string)
}

// PlayerDirectory находит игроков, находящихся в сети.
type PlayerDirectory interface {
	OnlinePlayer(name string) (Player, bool)
}

// StateCodec переводит состояние игрока в непрозрачную полезную нагрузку и обратно.
// Deserialize только разбирает данные; Apply применяет результат к игроку.
type StateCodec interface {
	Serialize(p Player) ([]byte, error)
	Deserialize(payload []byte) (any, error)
	Apply(p Player, state any) error
}
