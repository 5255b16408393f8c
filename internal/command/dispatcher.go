// Package command реализует команды оператора `backinv list` и `backinv load`.
package command

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/lifecycle"
	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/messages"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/spf13/cobra"
)

// Коды возврата команды
const (
	StatusFailure = 0
	StatusSuccess = 1
)

// RootName - имя корневой команды
const RootName = "backinv"

// Lifecycle - операции, которые вызывают команды
type Lifecycle interface {
	List(ctx context.Context, player string) (snapshot.List, error)
	Restore(ctx context.Context, player, token string) (*lifecycle.Restored, error)
	Config() *config.Config
}

// errHandled - ответ отправителю уже отправлен, cobra ничего не печатает
var errHandled = errors.New("handled")

// Dispatcher разбирает строку команды и выполняет её от имени отправителя.
// Дерево cobra строится на каждый вызов, поэтому Execute безопасен для конкурентного использования.
type Dispatcher struct {
	svc Lifecycle
	log *logging.Logger
}

// NewDispatcher создаёт диспетчер команд
func NewDispatcher(svc Lifecycle) *Dispatcher {
	return &Dispatcher{svc: svc, log: logging.GetCommandLogger()}
}

// Execute выполняет строку вида "backinv list Alice" (ведущий "/" допускается).
// Возвращает StatusSuccess или StatusFailure.
func (d *Dispatcher) Execute(ctx context.Context, sender Sender, line string) int {
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(args) == 0 || args[0] != RootName {
		sender.SendError("Unknown command. Usage: " + RootName + " <list|load>")
		return StatusFailure
	}

	status := StatusFailure
	root := d.build(ctx, sender, &status)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args[1:])

	cmd, err := root.ExecuteC()
	switch {
	case err == nil:
		if out.Len() > 0 {
			// help и usage, запрошенные явно
			sender.SendFeedback(strings.TrimRight(out.String(), "\n"))
		}
	case errors.Is(err, errHandled):
	default:
		sender.SendError(err.Error() + ". Usage: " + cmd.UseLine())
		status = StatusFailure
	}

	d.log.Debug("%s: %q -> %d", sender.Name(), line, status)
	return status
}

func (d *Dispatcher) build(ctx context.Context, sender Sender, status *int) *cobra.Command {
	root := &cobra.Command{
		Use:           RootName,
		Short:         "List and restore inventories saved on death",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !sender.HasPermission(PermissionLevel) {
				sender.SendError(d.svc.Config().NoPermission)
				return errHandled
			}
			return nil
		},
		// Без подкоманды: проверка прав в PersistentPreRunE выполняется раньше
		RunE: func(cmd *cobra.Command, args []string) error {
			sender.SendError("Usage: " + RootName + " <list|load>")
			return errHandled
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	help := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !sender.HasPermission(PermissionLevel) {
			sender.SendError(d.svc.Config().NoPermission)
			return
		}
		help(cmd, args)
	})

	root.AddCommand(&cobra.Command{
		Use:                "list <player>",
		Short:              "List saved inventories of a player, newest first",
		Args:               cobra.ExactArgs(1),
		DisableFlagParsing: true, // "-1" - индекс, а не флаг
		RunE: func(cmd *cobra.Command, args []string) error {
			*status = d.list(ctx, sender, args[0])
			return errHandled
		},
	})

	root.AddCommand(&cobra.Command{
		Use:                "load <player> <save>",
		Short:              "Restore an online player's inventory by index or save name",
		Args:               cobra.MinimumNArgs(2),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Имя сохранения содержит пробел: "14.03.22 05-06-2024"
			*status = d.load(ctx, sender, args[0], strings.Join(args[1:], " "))
			return errHandled
		},
	})

	return root
}

func (d *Dispatcher) list(ctx context.Context, sender Sender, player string) int {
	msgs := d.svc.Config().Messages

	saves, err := d.svc.List(ctx, player)
	if err != nil {
		d.log.Error("Error listing inventories for %s: %v", player, err)
		sender.SendError(messages.ForError(msgs, err, "listing inventories"))
		return StatusFailure
	}

	if len(saves) == 0 {
		sender.SendFeedback(messages.NoSaves(msgs, player))
		return StatusFailure
	}

	sender.SendFeedback(messages.ListHeader(msgs, player))
	for i, id := range saves {
		sender.SendFeedback(messages.ListItem(msgs, i+1, id))
	}
	return StatusSuccess
}

func (d *Dispatcher) load(ctx context.Context, sender Sender, player, token string) int {
	msgs := d.svc.Config().Messages

	_, err := d.svc.Restore(ctx, player, token)
	if err == nil {
		return StatusSuccess
	}

	if snapshot.IsTargetFacing(err) {
		// Игрок уже получил errorLoadPlayer
		return StatusFailure
	}

	d.log.Warn("⚠️ %s: backinv load %s %s: %v", sender.Name(), player, token, err)
	sender.SendError(messages.ForError(msgs, err, "loading inventory"))
	return StatusFailure
}
