package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newScheduleCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring sync schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newScheduleSetCommand(configPath))
	cmd.AddCommand(newScheduleListCommand(configPath))
	cmd.AddCommand(newScheduleRemoveCommand(configPath))
	return cmd
}

func newScheduleSetCommand(configPath *string) *cobra.Command {
	var interval time.Duration
	var disabled bool

	cmd := &cobra.Command{
		Use:   "set <collection-id>",
		Short: "Create or update the schedule for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			sch, err := app.sched.SetSchedule(cmd.Context(), args[0], interval, !disabled)
			if err != nil {
				return err
			}
			cmd.Printf("schedule for %s: every %s, next run %s\n",
				sch.CollectionID, sch.Interval, sch.NextRunAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "Sync interval (minimum 1m)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	return cmd
}

func newScheduleListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List all schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			schedules, err := app.sched.ListSchedules(cmd.Context())
			if err != nil {
				return err
			}
			if len(schedules) == 0 {
				cmd.Println("no schedules")
				return nil
			}
			for _, sch := range schedules {
				state := "enabled"
				if !sch.Enabled {
					state = "disabled"
				}
				cmd.Printf("%s  every %s  next %s  %s\n",
					sch.CollectionID, sch.Interval,
					sch.NextRunAt.Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

func newScheduleRemoveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <collection-id>",
		Short: "Delete the schedule for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.sched.RemoveSchedule(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("schedule for %s removed\n", args[0])
			return nil
		},
	}
}
