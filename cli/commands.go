package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"playsync/storage"
)

func newSyncCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <collection-id>",
		Short: "Run one synchronization for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.engine.TriggerSync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecord(cmd, rec)
			return nil
		},
	}
}

func newImportCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <playlist-id>",
		Short: "Start tracking a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			col, err := app.engine.ImportCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("imported %q (%s), %d items\n", col.Title, col.ID, col.ItemCount)
			return nil
		},
	}
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <collection-id>",
		Short: "Show the sync status of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			st, err := app.engine.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("collection: %s\nstatus:     %s\n", st.CollectionID, st.Status)
			if !st.LastSyncedAt.IsZero() {
				cmd.Printf("last sync:  %s\n", st.LastSyncedAt.Format(time.RFC3339))
			}
			if st.IsRunning {
				cmd.Println("a sync is currently running")
			}
			return nil
		},
	}
}

func newQuotaCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's API quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			u := app.engine.QuotaUsage()
			cmd.Printf("used:      %d / %d units\nremaining: %d\nresets at: %s\n",
				u.Used, u.Limit, u.Remaining, u.ResetAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newHistoryCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <collection-id>",
		Short: "Show recent sync runs for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.close()

			recs, err := app.engine.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				cmd.Println("no runs recorded")
				return nil
			}
			for i := range recs {
				printRecord(cmd, &recs[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")
	return cmd
}

func printRecord(cmd *cobra.Command, rec *storage.SyncHistory) {
	line := fmt.Sprintf("%s  %-9s  +%d -%d ~%d  %d units",
		rec.StartedAt.Format(time.RFC3339), rec.Status,
		rec.ItemsAdded, rec.ItemsRemoved, rec.ItemsReordered, rec.QuotaUnits)
	if rec.Error != "" {
		line += "  " + rec.Error
	}
	cmd.Println(line)
}
