package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rental_expiry_monitor/internal/domain/record"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Show how the table headers resolve to tracked fields",
	Long:  `Loads the table and resolves its columns without backing up, modifying or saving anything.`,
	RunE:  showColumns,
}

func showColumns(cmd *cobra.Command, args []string) error {
	a, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	mapping, headers, err := a.monitor.Columns(cmd.Context())
	out := cmd.OutOrStdout()
	if headers != nil {
		fmt.Fprintf(out, "Headers: %v\n", headers)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tCOLUMN\tHEADER")
	for _, f := range append(append([]record.Field{}, record.RequiredFields...), record.OptionalFields...) {
		col, ok := mapping.Lookup(f)
		if !ok {
			fmt.Fprintf(tw, "%s\t-\t(not found)\n", f)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", f, col.Index+1, col.Header)
	}
	return tw.Flush()
}
