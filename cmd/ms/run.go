package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/display"
	"github.com/phleudt/mailscheduler/internal/types"
)

var (
	runPasses int
	runOnce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run synchronization passes until nothing changes",
	Long: `Run the full pipeline in a loop: reconcile templates with Gmail drafts,
reconcile contacts from the spreadsheet, schedule due initial and follow-up
emails, send them, and check for replies.

The loop sleeps between passes and exits after the configured number of
consecutive passes with zero changes.

Examples:
  ms run            # Loop until the idle cap
  ms run --once     # Exactly one pass
  ms run --passes 3 # At most three passes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, _, err := loadRunner(cmd.Context())
		if err != nil {
			return err
		}

		var summaries []*types.PassSummary
		onPass := func(n int, s *types.PassSummary) {
			summaries = append(summaries, s)
			if !quietFlag && !jsonOutput {
				fmt.Println(display.PassSummaryLine(n, s))
			}
		}

		if runOnce {
			s, err := runner.Pass()
			if err != nil {
				return err
			}
			onPass(1, s)
		} else {
			if err := runner.Loop(runPasses, onPass); err != nil {
				return err
			}
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}
		if !quietFlag {
			display.SuccessMsg("Done after %d pass(es).", len(summaries))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runPasses, "passes", 0, "Maximum passes (0 = until idle cap)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run exactly one pass")
	rootCmd.AddCommand(runCmd)
}
