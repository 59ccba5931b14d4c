package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/display"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile contacts and recipients from the spreadsheet",
	Long: `Run one contact/recipient reconciliation pass against the configured
sheet. Rows are diffed against the local store: new rows create contacts and
recipients, changed rows update them, identical rows write nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, _, err := loadRunner(cmd.Context())
		if err != nil {
			return err
		}

		stats, err := runner.ReconcileContacts()
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		if !quietFlag {
			fmt.Printf("  Contacts:   %d created, %d updated, %d unchanged\n",
				stats.ContactsCreated, stats.ContactsUpdated, stats.ContactsUnchanged)
			fmt.Printf("  Recipients: %d created, %d updated, %d unchanged, %d skipped\n",
				stats.RecipientsCreated, stats.RecipientsUpdated, stats.RecipientsUnchanged, stats.RecipientsSkipped)
			display.SuccessMsg("Reconciliation complete.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
