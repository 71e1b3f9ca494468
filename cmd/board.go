package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Run and inspect the review board",
}

var boardPassCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run board passes once and print what changed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		env, err := newBoard(ctx, st, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		passes, _ := cmd.Flags().GetInt("passes")
		if passes < 1 {
			passes = 1
		}
		for i := 0; i < passes; i++ {
			rep, err := env.Board.Pass(ctx)
			if err != nil {
				return eris.Wrap(err, "board pass")
			}
			formatPassReport(os.Stdout, rep)
		}
		return nil
	},
}

var boardConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Check every approved deal for shared reference codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deals, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "board conflicts")
		}

		var hints []model.ConflictHint
		for _, d := range deals {
			if d.IsTerminal() || d.DockPhase != model.PhaseApproved {
				continue
			}
			if h := conflictHint(d, deals); h.HasConflicts() {
				hints = append(hints, h)
			}
		}
		if len(hints) == 0 {
			fmt.Fprintln(os.Stderr, "No conflicts found.")
			return nil
		}
		formatConflicts(os.Stdout, hints)
		return nil
	},
}

func conflictHint(d model.Deal, deals []model.Deal) model.ConflictHint {
	return dock.FindConflicts(d, deals, time.Now().UTC())
}

func formatConflicts(out io.Writer, hints []model.ConflictHint) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Deal", "KV", "Shared with"})
	for _, h := range hints {
		for _, c := range h.Conflicts {
			t.AppendRow(table.Row{truncateID(h.DealID), c.KVNumber, strings.Join(c.DealIDs, ", ")})
		}
	}
	t.Render()
}

func init() {
	boardPassCmd.Flags().Int("passes", 1, "number of passes to run back to back")
	boardCmd.AddCommand(boardPassCmd, boardConflictsCmd)
	rootCmd.AddCommand(boardCmd)
}
