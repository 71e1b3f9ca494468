package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/model"
)

// computeInput is the YAML form of a calculator request.
type computeInput struct {
	Rows    []model.Row    `yaml:"rows"`
	Weights []model.Weight `yaml:"weights"`
	Amount  float64        `yaml:"amount"`
}

func loadComputeInput(path string) (computeInput, error) {
	var in computeInput
	data, err := os.ReadFile(path)
	if err != nil {
		return in, eris.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, eris.Wrapf(err, "parse %s", path)
	}
	return in, nil
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run the allocation calculator on a YAML file of points",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		in, err := loadComputeInput(path)
		if err != nil {
			return eris.Wrap(err, "compute")
		}
		if cmd.Flags().Changed("amount") {
			in.Amount, _ = cmd.Flags().GetFloat64("amount")
		}
		preview, _ := cmd.Flags().GetBool("preview")

		res := allocation.Compute(in.Rows, in.Weights, in.Amount, preview)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, res)
		}
		formatResult(os.Stdout, res)
		if !preview {
			formatViolations(os.Stdout, allocation.Validate(in.Rows, in.Weights))
		}
		return nil
	},
}

func init() {
	computeCmd.Flags().String("file", "", "YAML file with rows, weights and amount (required)")
	computeCmd.Flags().Float64("amount", 0, "deal value, overrides the file")
	computeCmd.Flags().Bool("preview", false, "preview mode: points count as raw percentages")
	computeCmd.Flags().Bool("json", false, "print JSON instead of tables")
	_ = computeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(computeCmd)
}
