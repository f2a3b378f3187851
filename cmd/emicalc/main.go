// emicalc is the command line front end of the EMI tracker. It computes
// schedules on the fly and manages the loans stored in the local database.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mcclellann/emiTracker/pkg/config"
	"github.com/mcclellann/emiTracker/pkg/registry"
	"github.com/mcclellann/emiTracker/pkg/store"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what the commands share once the root command has run.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	dbPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "emicalc",
		Short:         "EMI loan calculator and tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger()
			a.logger.SetOutput(cmd.ErrOrStderr())

			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				parsed, err := logrus.ParseLevel(level)
				if err != nil {
					return err
				}
				a.logger.SetLevel(parsed)
			}
			if a.dbPath == "" {
				a.dbPath = cfg.DBPath
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "loan database path (default: EMI_DB_PATH or emitracker.db)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newEMICmd(),
		newScheduleCmd(),
		newLoansCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "emicalc %s (commit %s)\n", version, commit)
		},
	}
}

// withRegistry opens the database, runs fn against the restored registry and
// closes the database again.
func (a *app) withRegistry(fn func(*registry.Registry) error) error {
	s, err := store.NewSQLiteStore(a.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.dbPath, err)
	}
	defer s.Close()

	reg, err := registry.New(s, a.logger)
	if err != nil {
		return err
	}
	return fn(reg)
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
