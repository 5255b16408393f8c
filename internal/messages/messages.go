// Package messages превращает шаблоны конфигурации и доменные ошибки
// в текст для игроков и операторов.
package messages

import (
	"errors"
	"strconv"
	"strings"

	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/snapshot"
)

// Fields - значения плейсхолдеров {key}
type Fields map[string]string

// Render подставляет поля в шаблон. Неизвестные плейсхолдеры остаются как есть.
func Render(tmpl string, fields Fields) string {
	if len(fields) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Prefixed добавляет префикс плагина
func Prefixed(m config.Messages, text string) string {
	return m.Prefix + " " + text
}

// ListHeader - заголовок вывода `backinv list`
func ListHeader(m config.Messages, player string) string {
	return m.Prefix + " " + player + m.Suffix
}

// ListItem - строка списка, index начинается с 1
func ListItem(m config.Messages, index int, id snapshot.ID) string {
	return m.ItemPrefix + strconv.Itoa(index) + ". " + m.ItemSuffix + string(id)
}

// NoSaves - ответ на `backinv list` для игрока без сохранений
func NoSaves(m config.Messages, player string) string {
	return Prefixed(m, Render(m.NoSavesFound, Fields{"player": player}))
}

// Loaded - уведомление цели о начале восстановления
func Loaded(m config.Messages, player string, id snapshot.ID) string {
	return Prefixed(m, Render(m.LoadPlayer, Fields{"player": player, "file": string(id)}))
}

// LoadFailed - уведомление цели о неудачном восстановлении
func LoadFailed(m config.Messages, player string, id snapshot.ID, cause error) string {
	e := ""
	if cause != nil {
		e = cause.Error()
	}
	return Prefixed(m, Render(m.ErrorLoadPlayer, Fields{"player": player, "file": string(id), "e": e}))
}

// ForError возвращает текст ошибки для оператора. action подставляется в
// error_occurred, когда ошибка не относится ни к одному известному виду.
func ForError(m config.Messages, err error, action string) string {
	var e *snapshot.Error
	if !errors.As(err, &e) {
		return Render(m.ErrorOccurred, Fields{"action": action})
	}

	switch e.Kind {
	case snapshot.KindNoSaves:
		return Render(m.NoSavesFound, Fields{"player": e.Player})
	case snapshot.KindInvalidIndex:
		return Render(m.InvalidIndex, Fields{"index": e.Index})
	case snapshot.KindSaveNotFound, snapshot.KindNotFound:
		return Render(m.SaveNotFound, Fields{"save": e.Save, "player": e.Player})
	case snapshot.KindPlayerNotOnline:
		return Render(m.PlayerNotOnline, Fields{"player": e.Player})
	case snapshot.KindInvalidPlayer:
		return Render(m.InvalidPlayer, Fields{"player": e.Player})
	case snapshot.KindDeserialization, snapshot.KindApplyFailed:
		return LoadFailed(m, e.Player, snapshot.ID(e.Save), e.Err)
	default:
		if e.Action != "" {
			action = e.Action
		}
		return Render(m.ErrorOccurred, Fields{"action": action})
	}
}
