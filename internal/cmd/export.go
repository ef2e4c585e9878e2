package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
)

var exportFlags struct {
	format    string
	output    string
	taskType  string
	domain    string
	minReward float64
	limit     int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored experiences to a file or stdout",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		f := experience.Filter{
			TaskType: exportFlags.taskType,
			Domain:   exportFlags.domain,
			Limit:    exportFlags.limit,
		}
		if cmd.Flags().Changed("min-reward") {
			f.MinReward = &exportFlags.minReward
		}

		out := os.Stdout
		if exportFlags.output != "" {
			file, err := os.Create(exportFlags.output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer file.Close()
			out = file
		}

		n, err := e.collector.Export(ctx, out, exportFlags.format, f)
		if err != nil {
			return err
		}
		if exportFlags.output != "" {
			fmt.Fprintf(os.Stderr, "Exported %d experiences to %s\n", n, exportFlags.output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "jsonl", "export format: jsonl, json or csv")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFlags.taskType, "task-type", "", "filter by task type")
	exportCmd.Flags().StringVar(&exportFlags.domain, "domain", "", "filter by domain")
	exportCmd.Flags().Float64Var(&exportFlags.minReward, "min-reward", 0, "filter by minimum reward")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "maximum records to export")
	rootCmd.AddCommand(exportCmd)
}
