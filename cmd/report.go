package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdock/internal/calloff"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/report"
)

var actualsCmd = &cobra.Command{
	Use:   "actuals <deal-id>",
	Short: "Show what each person earned from a framework contract's call-offs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		win, err := windowFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := st.Get(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "actuals %s", args[0])
		}
		if d.ProjectType != model.ProjectFramework {
			return eris.Errorf("actuals: deal %s is not a framework contract", d.ID)
		}

		a := calloff.AggregateActuals(*d, win)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, a)
		}
		formatActuals(os.Stdout, a)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Per-person and per-team earnings over a date range",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		win, err := windowFlags(cmd)
		if err != nil {
			return err
		}
		dir, err := initPeople()
		if err != nil {
			return err
		}

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deals, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		rep := report.Build(deals, dir, win)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatReport(os.Stdout, rep)
		return nil
	},
}

func windowFlags(cmd *cobra.Command) (calloff.Window, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return calloff.ParseWindow(from, to)
}

func init() {
	for _, c := range []*cobra.Command{actualsCmd, reportCmd} {
		c.Flags().String("from", "", "first day included (YYYY-MM-DD or RFC 3339)")
		c.Flags().String("to", "", "last day included (YYYY-MM-DD or RFC 3339)")
		c.Flags().Bool("json", false, "print JSON instead of tables")
	}
	rootCmd.AddCommand(actualsCmd, reportCmd)
}
