package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/model"
)

var approveCmd = &cobra.Command{
	Use:   "approve <deal-id>",
	Short: "Approve a pending deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		d, err := env.Board.Engine().Approve(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "approve")
		}
		formatDealDetail(os.Stdout, d, nil)
		return nil
	},
}

var (
	finalizeAssignment string
	finalizeFactor     float64
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize <deal-id>",
	Short: "Archive an approved deal with its final assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		d, err := env.Board.Engine().Finalize(ctx, args[0], model.Assignment(finalizeAssignment), finalizeFactor)
		if err != nil {
			return eris.Wrap(err, "finalize")
		}
		zap.L().Info("deal archived",
			zap.String("deal_id", d.ID),
			zap.String("assignment", string(d.DockFinalAssignment)),
		)
		formatDealDetail(os.Stdout, d, nil)
		return nil
	},
}

func init() {
	finalizeCmd.Flags().StringVar(&finalizeAssignment, "assignment", "", "final assignment: fixed, framework or call-off (required)")
	finalizeCmd.Flags().Float64Var(&finalizeFactor, "reward-factor", 1.0, "reporting multiplier (0.5, 1.0, 1.5 or 2.0)")
	_ = finalizeCmd.MarkFlagRequired("assignment")
	rootCmd.AddCommand(approveCmd, finalizeCmd)
}
