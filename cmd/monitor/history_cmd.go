package main

import (
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rental_expiry_monitor/internal/domain/run"
)

var (
	historyLimit int
	historyDate  string
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled reconciliation runs",
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Show the last successful run of this day (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show one run with its expiry and reset events")
}

func showHistory(cmd *cobra.Command, args []string) error {
	a, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case historyRunID != "":
		details, err := a.history.Details(ctx, historyRunID)
		if err != nil {
			return err
		}
		if err := printRuns(out, []*run.Run{details.Run}); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return printEvents(out, details.Events)
	case historyDate != "":
		d, err := time.Parse("2006-01-02", historyDate)
		if err != nil {
			return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
		}
		r, err := a.history.LatestSuccessful(ctx, d)
		if err != nil {
			return err
		}
		return printRuns(out, []*run.Run{r})
	default:
		runs, err := a.history.ListRecent(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs journaled yet.")
			return nil
		}
		return printRuns(out, runs)
	}
}

func printRuns(w io.Writer, runs []*run.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTRATEGY\tSTATUS\tSTARTED\tEXPIRED\tRESET\tISSUES\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.RunDate.Format("2006-01-02"), r.Strategy, r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.ExpiredCount, r.ResetCount, r.IssueCount, r.Error.String)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []*run.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tROW\tLABEL\tOLD START\tNEW START\tTOTAL DAYS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\n",
			e.Kind, e.RowIndex+1, e.Label, nullDate(e.OldStart), nullDate(e.NewStart), e.TotalDays)
	}
	return tw.Flush()
}

func nullDate(t sql.NullTime) string {
	if !t.Valid {
		return "-"
	}
	return t.Time.Format("2006-01-02")
}
