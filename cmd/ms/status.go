package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/display"
	"github.com/phleudt/mailscheduler/internal/types"
)

type statusOutput struct {
	Contacts   int            `json:"contacts"`
	Recipients int            `json:"recipients"`
	Templates  int            `json:"templates"`
	Emails     map[string]int `json:"emails"`
	TotalEmail int            `json:"total_emails"`
	LastPassAt string         `json:"last_pass_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show store overview: contacts, recipients, and email pipeline state",
	RunE: func(cmd *cobra.Command, args []string) error {
		emailCounts, err := store.EmailCountByStatus()
		if err != nil {
			return fmt.Errorf("email counts: %w", err)
		}

		out := statusOutput{
			Contacts:   store.ContactCount(),
			Recipients: store.RecipientCount(),
			Templates:  store.TemplateCount(),
			Emails:     emailCounts,
			TotalEmail: store.EmailCount(),
			LastPassAt: store.GetSetting("last_pass_at"),
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		display.Header("Mailscheduler status")
		fmt.Printf("  Contacts:   %d\n", out.Contacts)
		fmt.Printf("  Recipients: %d\n", out.Recipients)
		fmt.Printf("  Templates:  %d\n", out.Templates)
		fmt.Println()
		display.SubHeader("Emails")
		for _, status := range types.ValidStatuses {
			fmt.Printf("  %s %s %d\n", display.StatusDot(status), display.StatusLabel(status), out.Emails[status])
		}
		if out.LastPassAt != "" {
			fmt.Println()
			fmt.Printf("  Last pass: %s\n", display.TimeAgo(out.LastPassAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
