package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"rental_expiry_monitor/internal/app"
)

var (
	runForce  bool
	runDryRun bool
	runDate   string
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass now",
	Long: `Backs up the table, updates remaining days, resets expired slots, saves the table and
sends notifications. Exits non-zero when the pass could not complete.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Run even if a decrement pass already succeeded today")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Compute the outcome without saving or notifying")
	runCmd.Flags().StringVar(&runDate, "date", "", "Run date (YYYY-MM-DD), defaults to today")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
}

func runOnce(cmd *cobra.Command, args []string) error {
	opts := app.RunOptions{Force: runForce, DryRun: runDryRun}
	if runDate != "" {
		d, err := time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
		}
		opts.Today = d
	}

	a, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.monitor.RunOnce(cmd.Context(), opts)
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report, runJSON); perr != nil {
			return perr
		}
	}
	return err
}

func printReport(w io.Writer, r *app.RunReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "Run %s (%s, %s): %s\n", r.RunID, r.RunDate.Format("2006-01-02"), r.Strategy, r.Status)
	if r.DryRun {
		fmt.Fprintln(w, "Dry run: table not saved, no notifications sent")
	}
	if r.BackupPath != "" {
		fmt.Fprintf(w, "Backup: %s\n", r.BackupPath)
	}
	if o := r.Outcome; o != nil {
		fmt.Fprintf(w, "Processed %d, updated %d, expired %d, reset %d\n",
			o.Processed, len(o.Updates), len(o.Expired), len(o.Resets))
		for _, e := range o.Expired {
			fmt.Fprintf(w, "  expired  row %d: %s (%d days)\n", e.RowIndex+1, e.Label, e.TotalDays)
		}
		for _, rs := range o.Resets {
			fmt.Fprintf(w, "  reset    row %d: %s -> %s\n", rs.RowIndex+1,
				rs.OldStart.Format("2006-01-02"), rs.NewStart.Format("2006-01-02"))
		}
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  issue    %s\n", issue)
	}
	for _, d := range r.Deliveries {
		status := "ok"
		if !d.OK() {
			status = "failed: " + d.Error
		}
		fmt.Fprintf(w, "  notify   %s %s\n", d.Channel, status)
	}
	return nil
}
