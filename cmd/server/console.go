package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/annel0/backinv/internal/app"
	"github.com/annel0/backinv/internal/command"
)

// runConsole читает команды из in до EOF, "stop" или отмены ctx.
// Команды хоста (join, give, kill, players) управляют игроками в памяти,
// остальное уходит диспетчеру backinv.
func runConsole(ctx context.Context, a *app.App, in io.Reader, out, errOut io.Writer) {
	sender := command.NewConsoleSender(out, errOut)
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "stop" || line == "exit" {
			return
		}
		if !hostCommand(a, sender, line) {
			a.Execute(ctx, sender, line)
		}
	}
}

// hostCommand выполняет команду хоста. false - строка не является командой хоста.
func hostCommand(a *app.App, sender command.Sender, line string) bool {
	args := strings.Fields(line)
	switch args[0] {
	case "join":
		if len(args) != 2 {
			sender.SendError("Usage: join <player>")
			return true
		}
		a.Players.Join(args[1])
		sender.SendFeedback(args[1] + " joined")

	case "give":
		if len(args) < 3 {
			sender.SendError("Usage: give <player> <item> [count]")
			return true
		}
		p, ok := a.Players.Get(args[1])
		if !ok {
			sender.SendError("Player " + args[1] + " is not online")
			return true
		}
		count := 1
		if len(args) > 3 {
			n, err := strconv.Atoi(args[3])
			if err != nil || n <= 0 {
				sender.SendError("Invalid count- " + args[3])
				return true
			}
			count = n
		}
		if err := p.AddItem(args[2], count); err != nil {
			sender.SendError(err.Error())
			return true
		}
		sender.SendFeedback(fmt.Sprintf("Gave %d %s to %s", count, args[2], args[1]))

	case "kill":
		if len(args) != 2 {
			sender.SendError("Usage: kill <player>")
			return true
		}
		p, ok := a.Players.Get(args[1])
		if !ok {
			sender.SendError("Player " + args[1] + " is not online")
			return true
		}
		a.Players.Damage(p, p.MaxHealth())
		p.Respawn(p.State().Pos)
		sender.SendFeedback(args[1] + " died")

	case "players":
		sender.SendFeedback("Online: " + strings.Join(a.Players.Online(), ", "))

	default:
		return false
	}
	return true
}
