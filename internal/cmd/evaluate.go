package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/service"
)

var evaluateJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [checkpoint]",
	Short: "Evaluate a trained checkpoint against stored experiences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		path := filepath.Join(e.cfg.Training.OutputDir, service.BestCheckpointFile)
		if len(args) == 1 {
			path = args[0]
		}

		evaluator := service.NewEvaluatorService(e.store, e.features, e.log)
		report, err := evaluator.Evaluate(ctx, path)
		if err != nil {
			return err
		}

		if evaluateJSON {
			return json.NewEncoder(os.Stdout).Encode(report)
		}

		fmt.Printf("Checkpoint: %s (epoch %d)\n", report.Checkpoint, report.Epoch)
		fmt.Printf("Experiences evaluated: %d\n", report.Experiences)
		fmt.Printf("Action accuracy: %.1f%% (random baseline %.1f%%)\n",
			report.ActionAccuracy*100, report.RandomAccuracy*100)
		fmt.Printf("Mean confidence: %.2f (low-confidence ratio %.1f%%)\n",
			report.MeanConfidence, report.LowConfidenceRatio*100)
		fmt.Printf("Reward: mean %.2f, range [%.2f, %.2f], success rate %.1f%%\n",
			report.MeanReward, report.MinReward, report.MaxReward, report.SuccessRate*100)
		fmt.Printf("Value MAE: %.2f\n", report.ValueMAE)
		fmt.Printf("Reward correlation: %.3f\n", report.RewardCorrelation)
		fmt.Println("Criteria:")
		for name, ok := range report.Criteria {
			mark := "FAIL"
			if ok {
				mark = "PASS"
			}
			fmt.Printf("  %-22s %s\n", name, mark)
		}
		fmt.Printf("Verdict: %s (%d/4)\n", report.Verdict, report.Passed)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "emit the full report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}
