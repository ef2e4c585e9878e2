package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/service"
)

var compareCmd = &cobra.Command{
	Use:   "compare <checkpoint-a> <checkpoint-b>",
	Short: "Compare two checkpoints on the same experience set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		evaluator := service.NewEvaluatorService(e.store, e.features, e.log)
		cmp, err := evaluator.Compare(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("A: %s  accuracy %.1f%%  MAE %.2f  %s (%d/4)\n",
			cmp.A.Checkpoint, cmp.A.ActionAccuracy*100, cmp.A.ValueMAE, cmp.A.Verdict, cmp.A.Passed)
		fmt.Printf("B: %s  accuracy %.1f%%  MAE %.2f  %s (%d/4)\n",
			cmp.B.Checkpoint, cmp.B.ActionAccuracy*100, cmp.B.ValueMAE, cmp.B.Verdict, cmp.B.Passed)
		fmt.Printf("Accuracy delta (B-A): %+.3f\n", cmp.AccuracyDelta)
		fmt.Printf("Winner: %s\n", cmp.Winner)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
