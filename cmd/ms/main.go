package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/internal/auth"
	"github.com/phleudt/mailscheduler/internal/config"
	"github.com/phleudt/mailscheduler/internal/db"
	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/run"
	"github.com/phleudt/mailscheduler/internal/sheets"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	dbPath     string
	jsonOutput bool
	quietFlag  bool
	store      *db.DB
)

var rootCmd = &cobra.Command{
	Use:   "ms",
	Short: "ms - Automated email outreach with follow-up scheduling",
	Long: "Mailscheduler: reconcile contacts from a spreadsheet, schedule initial and\n" +
		"follow-up emails from templates, and keep templates in sync with Gmail drafts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "help", "version":
			return nil
		}

		path := dbPath
		if path == "" {
			path = db.DiscoverDB()
		}
		if path == "" {
			return fmt.Errorf("no mailscheduler database found, run 'ms init' first")
		}

		var err error
		store, err = db.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ms version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .mailscheduler/ in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir := filepath.Join(cwd, ".mailscheduler")

		s, err := db.Open(filepath.Join(dir, "scheduler.db"))
		if err != nil {
			return err
		}
		s.Close()

		cfgPath := filepath.Join(dir, config.DefaultConfigFile)
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := config.Save(config.Default(), cfgPath); err != nil {
				return err
			}
		}

		if !quietFlag {
			fmt.Printf("Initialized mailscheduler at %s\n", dir)
			fmt.Printf("Edit %s before running 'ms run'.\n", cfgPath)
		}
		return nil
	},
}

// loadConfig reads the config file stored next to the open database.
func loadConfig() (*config.Config, error) {
	cfgPath := filepath.Join(filepath.Dir(store.Path()), config.DefaultConfigFile)
	return config.Load(cfgPath)
}

// loadRunner builds the authenticated gateways and a pass runner from the
// config next to the database.
func loadRunner(ctx context.Context) (*run.Runner, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	credDir := cfg.CredentialsDir
	if credDir == "" {
		credDir = filepath.Dir(store.Path())
	}
	svcs, err := auth.LoadServices(ctx, filepath.Join(credDir, "credentials.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}

	mail := gmail.NewClient(svcs.Gmail)
	source := sheets.NewClient(svcs.Sheets, cfg.SpreadsheetID)
	return run.New(store, cfg, mail, source, quietFlag), cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .mailscheduler/scheduler.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
