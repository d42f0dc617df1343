package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"previewd/internal/ipc"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status := resp.Status

				fmt.Fprintf(cmd.OutOrStdout(), "Running:  %s\n", yesNo(status.Running))
				fmt.Fprintf(cmd.OutOrStdout(), "PID:      %d\n", status.PID)
				fmt.Fprintf(cmd.OutOrStdout(), "Started:  %s\n", formatTimestamp(status.StartedAt))
				fmt.Fprintf(cmd.OutOrStdout(), "Socket:   %s\n", status.SocketPath)
				fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", status.DatabasePath)

				if len(status.Workers) > 0 {
					rows := make([][]string, 0, len(status.Workers))
					for _, w := range status.Workers {
						rows = append(rows, []string{w.ID, w.Kind, w.Status, w.CurrentItem})
					}
					fmt.Fprintln(cmd.OutOrStdout())
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Worker", "Kind", "Status", "Current Item"}, rows))
				}

				if len(status.Jobs) > 0 {
					rows := make([][]string, 0, len(status.Jobs))
					for _, job := range status.Jobs {
						rows = append(rows, []string{
							job.ID,
							string(job.Status),
							job.LibraryName,
							formatProgress(job.CompletedItems, job.FailedItems, job.SkippedItems, job.TotalItems),
							formatETA(job.ETASeconds, job.ETAKnown),
						})
					}
					fmt.Fprintln(cmd.OutOrStdout())
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Job", "Status", "Library", "Progress", "ETA"}, rows))
				}
				return nil
			})
		},
	}
}
