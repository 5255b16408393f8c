// snapshot-cli - офлайн-инструмент оператора: просмотр снапшотов прямо в хранилище
// и подготовка учётных записей REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/annel0/backinv/internal/app"
	"github.com/annel0/backinv/internal/auth"
	"github.com/annel0/backinv/internal/config"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/annel0/backinv/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, backend string

	root := &cobra.Command{
		Use:          "snapshot-cli",
		Short:        "Inspect backinv snapshots and prepare API operators",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to backinv.yml")
	root.PersistentFlags().StringVar(&backend, "backend", "", "override storage backend (file|badger|redis)")

	openStore := func() (*snapshot.Store, func(), error) {
		cfg, err := config.Load(configPath)
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
		if err != nil {
			return nil, nil, err
		}
		if backend != "" {
			cfg.Storage.Backend = backend
		}
		repo, err := storage.Open(app.StorageOptions(cfg.Storage))
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewStore(repo, snapshot.NewNamer(nil)), func() { _ = repo.Close() }, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "list <player>",
			Short: "List snapshots of a player, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, closeFn, err := openStore()
				if err != nil {
					return err
				}
				defer closeFn()
				return listSnapshots(cmd.Context(), cmd.OutOrStdout(), store, args[0])
			},
		},
		&cobra.Command{
			Use:   "show <player> <save>",
			Short: "Print a snapshot payload by index or name",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, closeFn, err := openStore()
				if err != nil {
					return err
				}
				defer closeFn()
				return showSnapshot(cmd.Context(), cmd.OutOrStdout(), store, args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "hash-password <password>",
			Short: "Print a bcrypt hash for api.operators[].password_hash",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := auth.HashPassword(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
		&cobra.Command{
			Use:   "gen-secret",
			Short: "Print a random base64 secret for api.jwt_secret",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				secret, err := auth.GenerateSecureSecret()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			},
		},
	)
	return root
}

func listSnapshots(ctx context.Context, out io.Writer, store *snapshot.Store, name string) error {
	player, err := snapshot.ParsePlayerID(name)
	if err != nil {
		return err
	}
	list := store.List(ctx, player)
	if len(list) == 0 {
		fmt.Fprintf(out, "No saved inventories found for player %s\n", name)
		return nil
	}
	for i, id := range list {
		fmt.Fprintf(out, "%d. %s\n", i+1, id)
	}
	return nil
}

func showSnapshot(ctx context.Context, out io.Writer, store *snapshot.Store, name, token string) error {
	player, err := snapshot.ParsePlayerID(name)
	if err != nil {
		return err
	}
	id, err := snapshot.Resolve(token, store.List(ctx, player))
	if err != nil {
		return err
	}
	payload, err := store.Load(ctx, player, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# %s/%s\n%s\n", name, id, payload)
	return nil
}
