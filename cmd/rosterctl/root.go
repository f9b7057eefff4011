package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/unit-roster/internal/config"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/rongwang/unit-roster/internal/service"
	"github.com/rongwang/unit-roster/internal/utils"
	"github.com/spf13/cobra"
)

// operator authors the history entries written by the tools
const operator = "rosterctl"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rosterctl",
		Short:        "Unit roster maintenance and reporting tools",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newReportCmd(),
		newPlannedCmd(),
		newStaffCmd(),
		newReconcileCmd(),
		newTokenCmd(),
	)
	return cmd
}

// env bundles what every database-backed command needs
type env struct {
	db  *sqlx.DB
	svc *service.DefaultService
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
}

func openEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Tools log to stderr so stdout stays valid JSON
	log := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.SetOutput(os.Stderr)

	db, err := config.SetupDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	svc := service.NewDefaultService(repository.NewPostgresRepository(db),
		service.WithLogger(log),
		service.WithReportUnits(cfg.Report.Units),
	)
	return &env{db: db, svc: svc}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return service.WithOperator(ctx, operator)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	return nil
}
