package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// exitViolations is the exit code of an audit that found violations.
const exitViolations = 2

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan once for entitled subscribers that lost their customer id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		d, err := buildDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		report, err := d.auditor(cfg, logger).Scan(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for status, n := range report.ByStatus {
			fmt.Fprintf(out, "%-10s %d\n", status, n)
		}
		if len(report.Violations) == 0 {
			fmt.Fprintln(out, "no violations")
			return nil
		}
		for _, s := range report.Violations {
			fmt.Fprintf(out, "violation user_id=%s status=%s\n", s.UserID, s.Status)
		}
		return &exitError{
			code: exitViolations,
			msg:  fmt.Sprintf("%d violations, incident %s", len(report.Violations), report.IncidentID),
		}
	},
}
