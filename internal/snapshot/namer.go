package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IDLayout - формат имени снапшота: HH.mm.ss dd-MM-yyyy.
// Совпадает с именами файлов, которые уже лежат на серверах.
const IDLayout = "15.04.05 02-01-2006"

// maxIDLength ограничивает длину литерального имени снапшота.
const maxIDLength = 128

// ID - идентификатор снапшота внутри каталога игрока.
type ID string

func (id ID) String() string { return string(id) }

// List - упорядоченный список снапшотов игрока, новые первыми.
type List []ID

// Contains проверяет наличие снапшота в списке.
func (l List) Contains(id ID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Clock - источник времени хоста.
type Clock interface {
	Now() time.Time
}

// ClockFunc адаптирует функцию к Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock - часы реального времени.
var SystemClock Clock = ClockFunc(time.Now)

// Namer выдаёт имена новым снапшотам и задаёт порядок списка.
type Namer struct {
	clock Clock
}

// NewNamer создаёт именователь поверх часов хоста.
func NewNamer(clock Clock) Namer {
	if clock == nil {
		clock = SystemClock
	}
	return Namer{clock: clock}
}

// Next возвращает имя для снапшота, снятого сейчас.
func (n Namer) Next() ID {
	return n.NewID(n.clock.Now())
}

// NewID детерминированно строит имя по показанию часов.
// Точность - секунда, доли секунды отбрасываются.
func (n Namer) NewID(now time.Time) ID {
	return ID(now.Format(IDLayout))
}

// WithSequence добавляет к имени разделитель коллизий " (n)" для n >= 2.
func WithSequence(id ID, seq int) ID {
	if seq < 2 {
		return id
	}
	return ID(fmt.Sprintf("%s (%d)", id, seq))
}

// ParseID разбирает имя снапшота: время захвата и номер коллизии (1 без суффикса).
// ok=false для имён, не созданных Namer (чужие файлы в каталоге).
func ParseID(id ID) (at time.Time, seq int, ok bool) {
	s := string(id)
	seq = 1
	if strings.HasSuffix(s, ")") {
		if i := strings.LastIndex(s, " ("); i > 0 {
			n, err := strconv.Atoi(s[i+2 : len(s)-1])
			if err != nil || n < 2 {
				return time.Time{}, 0, false
			}
			seq = n
			s = s[:i]
		}
	}
	at, err := time.ParseInLocation(IDLayout, s, time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	return at, seq, true
}

// Less задаёт порядок списка: a идёт раньше b, если a новее.
// Имена сравниваются по разобранному времени, а не по строке: строковый формат
// dd-MM-yyyy сортируется неверно на границе суток.
func Less(a, b ID) bool {
	at, aseq, aok := ParseID(a)
	bt, bseq, bok := ParseID(b)
	switch {
	case aok && bok:
		if !at.Equal(bt) {
			return at.After(bt)
		}
		if aseq != bseq {
			return aseq > bseq
		}
		return a > b
	case aok:
		return true
	case bok:
		return false
	default:
		return a > b
	}
}

// Sort упорядочивает имена от новых к старым.
func Sort(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

// validateID проверяет литеральное имя снапшота перед обращением к хранилищу.
func validateID(id ID) error {
	if err := validateComponent(string(id), maxIDLength); err != nil {
		return &Error{Kind: KindSaveNotFound, Save: string(id), Err: err}
	}
	return nil
}
