// Package cli implements notifyctl, which inspects and edits a local notification store file.
package cli

import (
	"context"
	"fmt"

	"github.com/go-market-notify/internal/application/notification"
	"github.com/go-market-notify/internal/infrastructure/sqlite"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	Owner    string // empty addresses every inbox
	Format   string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for notifyctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "notifyctl",
		Short: "Inspect the local notification log",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "./notifications.db", "path to the notification store")
	cmd.PersistentFlags().StringVar(&opts.Owner, "owner", "", "limit commands to one user's inbox")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewUnreadCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewReadAllCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withService opens the store for one command and closes it afterwards.
func withService(ctx context.Context, opts *RootOptions, fn func(notification.Service) error) error {
	store := sqlite.NewStore(opts.Database, nil)
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return fn(notification.NewService(store))
}
