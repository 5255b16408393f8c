package snapshot

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибки жизненного цикла снапшотов.
// По Kind выбирается шаблон сообщения, поля Error подставляются в плейсхолдеры.
type Kind int

const (
	KindUnknown Kind = iota
	KindStorageUnavailable
	KindNotFound
	KindSaveNotFound
	KindInvalidIndex
	KindPlayerNotOnline
	KindDeserialization
	KindConfigLoad
	KindNoSaves
	KindInvalidPlayer
	KindApplyFailed
)

// String возвращает имя вида ошибки
func (k Kind) String() string {
	switch k {
	case KindStorageUnavailable:
		return "StorageUnavailable"
	case KindNotFound:
		return "NotFound"
	case KindSaveNotFound:
		return "SaveNotFound"
	case KindInvalidIndex:
		return "InvalidIndex"
	case KindPlayerNotOnline:
		return "PlayerNotOnline"
	case KindDeserialization:
		return "DeserializationError"
	case KindConfigLoad:
		return "ConfigLoadError"
	case KindNoSaves:
		return "NoSaves"
	case KindInvalidPlayer:
		return "InvalidPlayer"
	case KindApplyFailed:
		return "ApplyFailed"
	default:
		return "Unknown"
	}
}

// Error - структурированная ошибка: вид + именованные поля.
// Представление (шаблоны, префиксы) живёт в пакете messages.
type Error struct {
	Kind   Kind
	Player string // {player}
	Save   string // {save} / {file}
	Index  string // {index}
	Action string // {action}
	Err    error  // {e}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Player != "" {
		msg += fmt.Sprintf(" player=%q", e.Player)
	}
	if e.Save != "" {
		msg += fmt.Sprintf(" save=%q", e.Save)
	}
	if e.Index != "" {
		msg += fmt.Sprintf(" index=%q", e.Index)
	}
	if e.Action != "" {
		msg += " while " + e.Action
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по виду, чтобы работал errors.Is(err, snapshot.ErrNoSaves).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Эталонные значения для errors.Is.
var (
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrSaveNotFound       = &Error{Kind: KindSaveNotFound}
	ErrInvalidIndex       = &Error{Kind: KindInvalidIndex}
	ErrPlayerNotOnline    = &Error{Kind: KindPlayerNotOnline}
	ErrDeserialization    = &Error{Kind: KindDeserialization}
	ErrConfigLoad         = &Error{Kind: KindConfigLoad}
	ErrNoSaves            = &Error{Kind: KindNoSaves}
	ErrInvalidPlayer      = &Error{Kind: KindInvalidPlayer}
	ErrApplyFailed        = &Error{Kind: KindApplyFailed}
)

// KindOf возвращает вид ошибки или KindUnknown для посторонних ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTargetFacing сообщает, что об ошибке уже уведомлён восстанавливаемый игрок,
// а не оператор (ошибки применения полезной нагрузки на стороне хоста).
func IsTargetFacing(err error) bool {
	switch KindOf(err) {
	case KindDeserialization, KindApplyFailed:
		return true
	}
	return false
}
