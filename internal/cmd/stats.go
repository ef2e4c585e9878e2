package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics over the stored experience set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		st, err := e.collector.Statistics(ctx)
		if err != nil {
			return err
		}

		if statsJSON {
			return json.NewEncoder(os.Stdout).Encode(st)
		}

		if st.Message != "" {
			fmt.Println(st.Message)
			return nil
		}

		fmt.Printf("Experiences: %d\n", st.TotalExperiences)
		fmt.Printf("Success rate: %.1f%%\n", st.SuccessRate*100)
		fmt.Printf("Reward: mean %.2f, std %.2f, median %.2f, range [%.2f, %.2f]\n",
			st.AvgReward, st.RewardStdDev, st.MedianReward, st.MinReward, st.MaxReward)
		fmt.Printf("Buffer size: %.2f MB\n", st.BufferSizeMB)
		fmt.Printf("Date range: %s .. %s\n", st.OldestTimestamp, st.NewestTimestamp)
		fmt.Println("By task type:")
		for tt, n := range st.TaskTypes {
			fmt.Printf("  %-15s %d\n", tt, n)
		}
		fmt.Println("By domain:")
		for d, n := range st.Domains {
			fmt.Printf("  %-15s %d\n", d, n)
		}
		fmt.Println("By complexity:")
		for c, n := range st.Complexities {
			fmt.Printf("  %-15s %d\n", c, n)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}
