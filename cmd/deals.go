package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/store"
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List, inspect and load deals",
}

// -- deals list --

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deals, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "deals list")
		}

		phase, _ := cmd.Flags().GetInt("phase")
		deals = filterPhase(deals, model.Phase(phase))

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, deals)
		}
		if len(deals) == 0 {
			fmt.Fprintln(os.Stderr, "No deals found.")
			return nil
		}
		formatDealsTable(os.Stdout, deals)
		return nil
	},
}

// filterPhase keeps deals in phase p. Zero keeps everything.
func filterPhase(deals []model.Deal, p model.Phase) []model.Deal {
	if p == 0 {
		return deals
	}
	out := make([]model.Deal, 0, len(deals))
	for _, d := range deals {
		if d.DockPhase == p {
			out = append(out, d)
		}
	}
	return out
}

// -- deals show --

var dealsShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Show a deal with its readiness and shares",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := st.Get(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "deals show %s", args[0])
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, d)
		}

		// Conflict hints live in the board's memory, so a one-shot run
		// checks against the current list instead.
		deals, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "deals show")
		}
		hint := conflictHint(*d, deals)
		formatDealDetail(os.Stdout, d, &hint)
		return nil
	},
}

// -- deals import --

type seedFile struct {
	Deals []model.Deal `yaml:"deals"`
}

func loadSeedFile(path string) ([]model.Deal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return f.Deals, nil
}

// importDeals writes deals in bulk when the store supports it, and one at
// a time otherwise.
func importDeals(ctx context.Context, st store.Store, deals []model.Deal) (int64, error) {
	if imp, ok := st.(store.Importer); ok {
		return imp.Import(ctx, deals)
	}
	var n int64
	for _, d := range deals {
		if _, err := st.Create(ctx, d); err != nil {
			return n, eris.Wrapf(err, "create deal %q", d.Title)
		}
		n++
	}
	return n, nil
}

var dealsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load deals from a YAML seed file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		deals, err := loadSeedFile(path)
		if err != nil {
			return eris.Wrap(err, "deals import")
		}

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importDeals(ctx, st, deals)
		if err != nil {
			return eris.Wrap(err, "deals import")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", n),
			zap.String("file", path),
		)
		return nil
	},
}

// -- deals allocate --

var dealsAllocateCmd = &cobra.Command{
	Use:   "allocate <deal-id>",
	Short: "Recompute and save a deal's split from its stored points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := st.Get(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "deals allocate %s", args[0])
		}
		res, patch := allocation.Plan(*d)
		if _, err := st.Update(ctx, d.ID, patch); err != nil {
			return eris.Wrapf(err, "deals allocate %s", args[0])
		}

		formatResult(os.Stdout, res)
		formatViolations(os.Stdout, allocation.Validate(d.Rows, d.Weights))
		return nil
	},
}

// -- deals delete --

var dealsDeleteCmd = &cobra.Command{
	Use:   "delete <deal-id>",
	Short: "Delete a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Delete(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "deals delete %s", args[0])
		}
		zap.L().Info("deal deleted", zap.String("deal_id", args[0]))
		return nil
	},
}

func init() {
	dealsListCmd.Flags().Int("phase", 0, "only deals in this board phase (1-4)")
	dealsListCmd.Flags().Bool("json", false, "print JSON instead of a table")
	dealsShowCmd.Flags().Bool("json", false, "print the stored document")
	dealsImportCmd.Flags().String("file", "", "path to YAML seed file (required)")
	_ = dealsImportCmd.MarkFlagRequired("file")

	dealsCmd.AddCommand(dealsListCmd, dealsShowCmd, dealsImportCmd, dealsAllocateCmd, dealsDeleteCmd)
	rootCmd.AddCommand(dealsCmd)
}
