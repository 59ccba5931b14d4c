package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/display"
	"github.com/phleudt/mailscheduler/internal/reconcile"
)

var templatesPolicy string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Reconcile local templates with Gmail drafts",
	Long: `Run one template reconciliation pass. Drafts are authoritative for
templates already linked to them: drift overwrites local content, a deleted
draft disconnects its template. Unclaimed drafts become new templates;
subject collisions are resolved by the conflict policy.

Policies: PREFER_EXISTING, PREFER_DRAFT, CREATE_NEW.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cfg, err := loadRunner(cmd.Context())
		if err != nil {
			return err
		}

		policyStr := templatesPolicy
		if policyStr == "" {
			policyStr = cfg.ConflictPolicy
		}
		policy, err := reconcile.ParseConflictPolicy(policyStr)
		if err != nil {
			return err
		}

		stats, err := runner.ReconcileTemplates(policy)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		if !quietFlag {
			fmt.Printf("  %d updated, %d added, %d disconnected, %d conflicts\n",
				stats.Updated, stats.Added, stats.Disconnected, stats.Conflicts)
			display.SuccessMsg("Templates in sync. %d total in store.", store.TemplateCount())
		}
		return nil
	},
}

func init() {
	templatesCmd.Flags().StringVar(&templatesPolicy, "policy", "", "Conflict policy override")
	rootCmd.AddCommand(templatesCmd)
}
