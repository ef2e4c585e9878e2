package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/service"
)

var trainFlags struct {
	epochs    int
	batchSize int
	outputDir string
	seed      int64
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the actor-critic policy on stored experiences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		cfg := e.cfg.Training
		if cmd.Flags().Changed("epochs") {
			cfg.Epochs = trainFlags.epochs
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.BatchSize = trainFlags.batchSize
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.OutputDir = trainFlags.outputDir
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = trainFlags.seed
		}

		trainer := service.NewTrainerService(e.store, e.features, e.queue, e.log, cfg)
		result, err := trainer.Train(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Trained on %d experiences for %d epochs\n", result.Experiences, result.Epochs)
		fmt.Printf("Best epoch: %d (validation reward %.2f)\n", result.BestEpoch, result.BestValReward)
		fmt.Printf("Checkpoint: %s\n", result.CheckpointPath)
		return nil
	},
}

func init() {
	trainCmd.Flags().IntVar(&trainFlags.epochs, "epochs", 0, "number of training epochs (overrides config)")
	trainCmd.Flags().IntVar(&trainFlags.batchSize, "batch-size", 0, "training batch size (overrides config)")
	trainCmd.Flags().StringVar(&trainFlags.outputDir, "output-dir", "", "checkpoint output directory (overrides config)")
	trainCmd.Flags().Int64Var(&trainFlags.seed, "seed", 0, "random seed (overrides config)")
	rootCmd.AddCommand(trainCmd)
}
