package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/display"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show and validate the configured follow-up plan",
	Long: `Materialize the configured plan into the store and print its steps.
Fails if the step sequence is broken or a step's template does not exist
locally yet (run 'ms templates' first to adopt drafts).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, _, err := loadRunner(cmd.Context())
		if err != nil {
			return err
		}

		engine, err := runner.SyncPlan()
		if err != nil {
			return err
		}

		if jsonOutput {
			out := struct {
				Name  string `json:"name"`
				Steps []any  `json:"steps"`
			}{Name: engine.Plan().Name}
			for _, s := range engine.Steps() {
				out.Steps = append(out.Steps, s)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		display.Header(fmt.Sprintf("Plan %q: %d follow-up step(s)", engine.Plan().Name, engine.FollowUpCount()))
		for _, s := range engine.Steps() {
			tmpl, err := store.TemplateByID(s.TemplateID)
			subject := s.TemplateID
			if err == nil && tmpl != nil {
				subject = tmpl.Subject
			}
			fmt.Printf("  %d. wait %dd → %s\n", s.StepNumber, s.WaitDays, subject)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
