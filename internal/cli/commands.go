package cli

import (
	"fmt"
	"strconv"

	"github.com/go-market-notify/internal/application/notification"
	"github.com/go-market-notify/internal/domain"
	"github.com/spf13/cobra"
)

func NewListCommand(opts *RootOptions) *cobra.Command {
	var recordType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Example: `  notifyctl list --type received --limit 20
  notifyctl list --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				recs, err := svc.List(cmd.Context(), opts.Owner, recordType, limit)
				if err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.records(recs)
			})
		},
	}
	cmd.Flags().StringVar(&recordType, "type", domain.TypeAll, "sent|received|all")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows, 0 for all")
	return cmd
}

func NewUnreadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the number of unread notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				n, err := svc.UnreadCount(cmd.Context(), opts.Owner)
				if err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.message(map[string]int{"unread": n}, strconv.Itoa(n))
			})
		},
	}
}

func NewReadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				if err := svc.MarkRead(cmd.Context(), opts.Owner, id); err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.message(map[string]int64{"id": id}, fmt.Sprintf("marked %d as read", id))
			})
		},
	}
}

func NewReadAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				n, err := svc.MarkAllRead(cmd.Context(), opts.Owner)
				if err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.message(map[string]int64{"updated": n}, fmt.Sprintf("marked %d as read", n))
			})
		},
	}
}

func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				if err := svc.Delete(cmd.Context(), opts.Owner, id); err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.message(map[string]int64{"id": id}, fmt.Sprintf("deleted %d", id))
			})
		},
	}
}

func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc notification.Service) error {
				if err := svc.Clear(cmd.Context(), opts.Owner); err != nil {
					return err
				}
				return formatter{opts.Format, cmd.OutOrStdout()}.message(nil, "cleared")
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s), err)
	}
	return id, nil
}
