package command

import (
	"fmt"
	"io"
	"regexp"
	"sync"
)

// PermissionLevel - уровень прав, необходимый для команд backinv (оператор)
const PermissionLevel = 2

// Sender - источник команды: консоль, игрок-оператор или REST.
type Sender interface {
	Name() string
	HasPermission(level int) bool
	SendFeedback(text string)
	SendError(text string)
}

// formatCodes - цветовые коды вида §a
var formatCodes = regexp.MustCompile("§[0-9a-fk-orA-FK-OR]")

// StripFormatting удаляет цветовые коды из текста
func StripFormatting(text string) string {
	return formatCodes.ReplaceAllString(text, "")
}

// ConsoleSender - консоль сервера: все права, вывод без цветовых кодов.
type ConsoleSender struct {
	mu  sync.Mutex
	Out io.Writer
	Err io.Writer
}

// NewConsoleSender создаёт консольного отправителя
func NewConsoleSender(out, errOut io.Writer) *ConsoleSender {
	return &ConsoleSender{Out: out, Err: errOut}
}

func (c *ConsoleSender) Name() string { return "Server" }

func (c *ConsoleSender) HasPermission(int) bool { return true }

func (c *ConsoleSender) SendFeedback(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, StripFormatting(text))
}

func (c *ConsoleSender) SendError(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Err, StripFormatting(text))
}

// BufferSender собирает ответы в память (REST API, тесты).
type BufferSender struct {
	mu       sync.Mutex
	name     string
	level    int
	feedback []string
	errors   []string
}

// NewBufferSender создаёт отправителя с указанным уровнем прав
func NewBufferSender(name string, level int) *BufferSender {
	return &BufferSender{name: name, level: level}
}

func (b *BufferSender) Name() string { return b.name }

func (b *BufferSender) HasPermission(level int) bool { return b.level >= level }

func (b *BufferSender) SendFeedback(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feedback = append(b.feedback, text)
}

func (b *BufferSender) SendError(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, text)
}

// Feedback возвращает копию обычных ответов
func (b *BufferSender) Feedback() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.feedback...)
}

// Errors возвращает копию сообщений об ошибках
func (b *BufferSender) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}
