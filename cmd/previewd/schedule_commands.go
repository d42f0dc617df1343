package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"previewd/internal/ipc"
	"previewd/internal/store"
)

func newSchedulesCommand(cmdCtx *commandContext) *cobra.Command {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage recurring preview jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleList()
				if err != nil {
					return err
				}
				if len(resp.Schedules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No schedules.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Schedules))
				for _, sched := range resp.Schedules {
					cadence := sched.CronExpr
					if cadence == "" {
						cadence = fmt.Sprintf("every %dm", sched.IntervalMinutes)
					}
					target := "all libraries"
					if !sched.AllLibraries {
						target = fmt.Sprintf("%v", sched.Libraries)
					}
					rows = append(rows, []string{
						sched.Name,
						cadence,
						target,
						yesNo(sched.Regenerate),
						yesNo(sched.Enabled),
						formatTimestamp(sched.LastRunAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Name", "Cadence", "Libraries", "Regenerate", "Enabled", "Last Run"}, rows))
				return nil
			})
		},
	}

	schedulesCmd.AddCommand(newScheduleAddCommand(cmdCtx))
	schedulesCmd.AddCommand(newScheduleRemoveCommand(cmdCtx))
	schedulesCmd.AddCommand(newScheduleEnableCommand(cmdCtx, true))
	schedulesCmd.AddCommand(newScheduleEnableCommand(cmdCtx, false))
	schedulesCmd.AddCommand(newScheduleRunCommand(cmdCtx))
	return schedulesCmd
}

func newScheduleAddCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		cronExpr   string
		interval   int
		libraries  []string
		all        bool
		regenerate bool
	)
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a recurring preview job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				_, err := client.ScheduleAdd(store.Schedule{
					Name:            args[0],
					CronExpr:        cronExpr,
					IntervalMinutes: interval,
					Libraries:       libraries,
					AllLibraries:    all,
					Regenerate:      regenerate,
					Enabled:         true,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q added.\n", args[0])
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. \"0 3 * * *\")")
	addCmd.Flags().IntVar(&interval, "interval", 0, "Fixed interval in minutes")
	addCmd.Flags().StringSliceVarP(&libraries, "library", "l", nil, "Library id to process (repeatable)")
	addCmd.Flags().BoolVar(&all, "all", false, "Process every library")
	addCmd.Flags().BoolVar(&regenerate, "regenerate", false, "Rebuild previews that already exist")
	return addCmd
}

func newScheduleRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				if _, err := client.ScheduleRemove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q removed.\n", args[0])
				return nil
			})
		},
	}
}

func newScheduleEnableCommand(cmdCtx *commandContext, enable bool) *cobra.Command {
	verb, short := "enable", "Enable a schedule"
	if !enable {
		verb, short = "disable", "Disable a schedule without removing it"
	}
	return &cobra.Command{
		Use:   verb + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				if _, err := client.ScheduleEnable(args[0], enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q %sd.\n", args[0], verb)
				return nil
			})
		},
	}
}

func newScheduleRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Fire a schedule immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withClient(func(client *ipc.Client) error {
				if _, err := client.ScheduleRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q fired.\n", args[0])
				return nil
			})
		},
	}
}
