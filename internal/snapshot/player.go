package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxPlayerIDLength ограничивает длину имени каталога игрока.
const MaxPlayerIDLength = 64

// PlayerID - непрозрачный идентификатор игрока, используется как имя каталога
// с его снапшотами. Создаётся только через ParsePlayerID.
type PlayerID string

func (p PlayerID) String() string { return string(p) }

// ParsePlayerID проверяет, что имя не может выйти за пределы корня хранилища.
func ParsePlayerID(name string) (PlayerID, error) {
	if err := validateComponent(name, MaxPlayerIDLength); err != nil {
		return "", &Error{Kind: KindInvalidPlayer, Player: name, Err: err}
	}
	return PlayerID(name), nil
}

// validateComponent проверяет одиночный компонент пути (игрок или снапшот).
func validateComponent(s string, maxLen int) error {
	if s == "" {
		return fmt.Errorf("пустое имя")
	}
	if len(s) > maxLen {
		return fmt.Errorf("имя длиннее %d байт", maxLen)
	}
	if s == "." || s == ".." {
		return fmt.Errorf("недопустимое имя %q", s)
	}
	if strings.ContainsAny(s, `/\:`) {
		return fmt.Errorf("имя %q содержит разделитель пути", s)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("имя %q содержит управляющий символ", s)
		}
	}
	if !filepath.IsLocal(s) {
		return fmt.Errorf("имя %q не является локальным путём", s)
	}
	return nil
}
