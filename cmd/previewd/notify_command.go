package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"previewd/internal/ipc"
)

func newNotifyCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		source    string
		eventType string
		title     string
	)
	notifyCmd := &cobra.Command{
		Use:   "notify <library>",
		Short: "Deliver an import notification to the debouncer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				req := ipc.NotifyRequest{
					Source:    source,
					Library:   args[0],
					EventType: eventType,
					Title:     title,
				}
				if _, err := client.Notify(req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notification for %q accepted.\n", args[0])
				return nil
			})
		},
	}
	notifyCmd.Flags().StringVar(&source, "source", "plex", "Notification source name")
	notifyCmd.Flags().StringVar(&eventType, "event", "", "Webhook event type (defaults to an import event)")
	notifyCmd.Flags().StringVar(&title, "title", "", "Imported item title")
	return notifyCmd
}
