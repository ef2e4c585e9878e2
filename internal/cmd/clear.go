package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearConfirmed bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored experience",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearConfirmed {
			return fmt.Errorf("refusing to clear without --yes")
		}

		ctx := cmd.Context()
		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		if err := e.collector.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Experience store cleared")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "confirm deletion")
	rootCmd.AddCommand(clearCmd)
}
