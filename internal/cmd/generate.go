package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/service"
)

var generateFlags struct {
	count int
	seed  int64
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic experiences for pipeline validation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if generateFlags.count < 1 {
			return fmt.Errorf("count must be at least 1")
		}

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		gen := service.NewGeneratorService(e.collector, e.log)
		out, err := gen.Generate(ctx, generateFlags.count, generateFlags.seed)
		if err != nil {
			return err
		}

		fmt.Printf("Generated %d synthetic experiences (seed %d)\n", len(out), generateFlags.seed)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateFlags.count, "count", 1000, "number of experiences to generate")
	generateCmd.Flags().Int64Var(&generateFlags.seed, "seed", 42, "random seed for reproducibility")
	rootCmd.AddCommand(generateCmd)
}
