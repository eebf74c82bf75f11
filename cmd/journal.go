package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the dispatch journal",
	Long:  "Commands for listing recorded assignments, unassignments and alerts.",
}

// -- journal list --

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("journal"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initJournal(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		action, _ := cmd.Flags().GetString("action")
		team, _ := cmd.Flags().GetString("team")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		since, _ := cmd.Flags().GetDuration("since")

		filter := store.JournalFilter{
			Action: model.JournalAction(action),
			TeamID: team,
			Limit:  limit,
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		entries, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "journal list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No journal entries found.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		formatJournalList(cmd.OutOrStdout(), entries)
		return nil
	},
}

func formatJournalList(out io.Writer, entries []model.JournalEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tACTION\tTARGET\tOUTCOME\tCREATED\tDETAIL")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t-------\t------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.Action,
			journalTarget(e),
			e.Outcome,
			e.CreatedAt.Format("2006-01-02 15:04"),
			truncate(e.Detail, 40),
		)
	}
	_ = w.Flush()
}

// journalTarget summarizes what an entry acted on.
func journalTarget(e model.JournalEntry) string {
	switch e.Action {
	case model.JournalAlert:
		return fmt.Sprintf("%s (%d recipients)", e.Area, e.Recipients)
	default:
		if e.Latitude != nil && e.Longitude != nil {
			return fmt.Sprintf("%s @ %.5f,%.5f", e.TeamID, *e.Latitude, *e.Longitude)
		}
		return e.TeamID
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func init() {
	journalListCmd.Flags().String("action", "", "filter by action (assign, unassign, alert)")
	journalListCmd.Flags().String("team", "", "filter by team ID")
	journalListCmd.Flags().Int("limit", store.DefaultListLimit, "max entries to show")
	journalListCmd.Flags().Duration("since", 0, "only entries newer than this (e.g. 2h)")
	journalListCmd.Flags().Bool("json", false, "print entries as JSON")

	journalCmd.AddCommand(journalListCmd)
	rootCmd.AddCommand(journalCmd)
}
