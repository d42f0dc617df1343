package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"previewd/internal/ipc"
	"previewd/internal/jobs"
)

func newJobsCommand(cmdCtx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect preview generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList()
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						job.ID,
						string(job.Status),
						job.LibraryName,
						formatProgress(job.CompletedItems, job.FailedItems, job.SkippedItems, job.TotalItems),
						formatETA(job.ETASeconds, job.ETAKnown),
						formatTimestamp(job.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Library", "Progress", "ETA", "Created"}, rows))
				return nil
			})
		},
	}

	jobsCmd.AddCommand(newJobShowCommand(cmdCtx))
	jobsCmd.AddCommand(newJobDeleteCommand(cmdCtx))
	return jobsCmd
}

func newJobShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(args[0])
				if err != nil {
					return err
				}
				job := resp.Job
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", job.ID)
				fmt.Fprintf(out, "Status:    %s\n", job.Status)
				fmt.Fprintf(out, "Library:   %s\n", job.LibraryName)
				fmt.Fprintf(out, "Progress:  %s (%.1f%%)\n",
					formatProgress(job.CompletedItems, job.FailedItems, job.SkippedItems, job.TotalItems),
					job.ProgressPercent)
				fmt.Fprintf(out, "ETA:       %s\n", formatETA(job.ETASeconds, job.ETAKnown))
				fmt.Fprintf(out, "Created:   %s\n", formatTimestamp(job.CreatedAt))
				fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(job.StartedAt))
				fmt.Fprintf(out, "Ended:     %s\n", formatTimestamp(job.EndedAt))
				if job.Error != "" {
					fmt.Fprintf(out, "Error:     %s\n", job.Error)
				}
				for _, w := range job.Workers {
					fmt.Fprintf(out, "Worker:    %s (%s) %s %s\n", w.ID, w.Kind, w.Status, w.CurrentItem)
				}
				return nil
			})
		},
	}
}

func newJobDeleteCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Remove a finished job from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				if _, err := client.DeleteJob(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s deleted.\n", args[0])
				return nil
			})
		},
	}
}

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		libraries  []string
		all        bool
		sortOrder  string
		regenerate bool
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start a preview generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(libraries) == 0 {
				return fmt.Errorf("select libraries with --library or use --all")
			}
			if _, ok := jobs.ParseSortOrder(sortOrder); !ok {
				return fmt.Errorf("unknown sort order %q (newest or oldest)", sortOrder)
			}
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.CreateJob(ipc.CreateJobRequest{
					Libraries:    libraries,
					AllLibraries: all,
					Sort:         sortOrder,
					Regenerate:   regenerate,
				})
				if err != nil {
					return err
				}
				job := resp.Job
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s created: %d items (%d already current).\n",
					job.ID, job.TotalItems, job.SkippedItems)
				return nil
			})
		},
	}
	runCmd.Flags().StringSliceVarP(&libraries, "library", "l", nil, "Library id to process (repeatable)")
	runCmd.Flags().BoolVar(&all, "all", false, "Process every library")
	runCmd.Flags().StringVar(&sortOrder, "sort", "newest", "Item order: newest or oldest first")
	runCmd.Flags().BoolVar(&regenerate, "regenerate", false, "Rebuild previews that already exist")
	return runCmd
}

func newCancelCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running or pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				if _, err := client.CancelJob(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancellation requested.\n", args[0])
				return nil
			})
		},
	}
}
