package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"previewd/internal/ipc"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished jobs and received notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No finished jobs.")
				} else {
					rows := make([][]string, 0, len(resp.Jobs))
					for _, record := range resp.Jobs {
						rows = append(rows, []string{
							record.JobID,
							record.Status,
							record.Library,
							formatProgress(record.Completed, record.Failed, record.Skipped, record.Total),
							formatTimestamp(record.EndedAt),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Job", "Status", "Library", "Result", "Ended"}, rows))
				}

				if len(resp.Notifications) > 0 {
					rows := make([][]string, 0, len(resp.Notifications))
					for _, record := range resp.Notifications {
						resolved := record.Resolved
						if resolved == "" {
							resolved = "all"
						}
						rows = append(rows, []string{
							record.Source,
							record.EventType,
							record.Title,
							record.Library,
							resolved,
							record.Status,
							formatTimestamp(record.ReceivedAt),
						})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"Source", "Event", "Title", "Library", "Resolved", "Status", "Received"}, rows))
				}
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows per table")
	return historyCmd
}
