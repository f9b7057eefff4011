package main

import (
	"fmt"
	"time"

	"github.com/rongwang/unit-roster/internal/api"
	"github.com/rongwang/unit-roster/internal/config"
	"github.com/rongwang/unit-roster/internal/readiness"
	"github.com/spf13/cobra"
)

type reportOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newReportCmd() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the readiness report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			rows, err := e.svc.ReadinessReport(commandContext(cmd))
			if err != nil {
				return err
			}
			if unit != "" {
				rows = selectUnit(rows, unit)
				if len(rows) == 0 {
					return fmt.Errorf("unit %q is not in the report", unit)
				}
			}

			return writeJSON(reportOutput{
				Command:    "report",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     rows,
			})
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "Only print the row of this unit")
	return cmd
}

func selectUnit(rows []readiness.UnitReport, unit string) []readiness.UnitReport {
	for _, r := range rows {
		if r.Unit == unit {
			return []readiness.UnitReport{r}
		}
	}
	return nil
}

func newPlannedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "planned",
		Short: "Print the planned headcount per unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			planned, err := e.svc.PlannedTotals(commandContext(cmd))
			if err != nil {
				return err
			}
			return writeJSON(planned)
		},
	}
}

func newStaffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "staff",
		Short: "Print the staff table",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			rows, err := e.svc.StaffTable(commandContext(cmd))
			if err != nil {
				return err
			}
			return writeJSON(rows)
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rewrite stale assignment fields from their slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			n, err := e.svc.Reconcile(commandContext(cmd))
			if err != nil {
				return err
			}
			return writeJSON(reportOutput{
				Command:    "reconcile",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]int{"repaired": n},
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			token, err := api.IssueToken([]byte(cfg.Auth.JWTSecret), subject, ttl)
			if err != nil {
				return fmt.Errorf("error signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "operator", "", "Operator name recorded as history author (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
