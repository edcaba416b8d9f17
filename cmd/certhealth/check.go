package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sensiblebit/certhealth/internal/expiry"
	"github.com/sensiblebit/certhealth/internal/healthcheck"
	"github.com/sensiblebit/certhealth/internal/report"
	"github.com/sensiblebit/certhealth/internal/tracking"
	"github.com/sensiblebit/certhealth/internal/trust"
)

var (
	checkOutput string
	checkAll    bool
	checkOnly   []string
	checkDays   int
)

var checkNames = []string{expiry.CheckName, tracking.CheckName, trust.CheckName}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the certificate checks",
	Long: "Run the expiration, tracking and trust checks and print their findings.\n\n" +
		"Exits 1 when any ERROR is reported and 2 when a check could not run.",
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "Output format: text, json, yaml (default from config)")
	checkCmd.Flags().BoolVarP(&checkAll, "all", "a", false, "Include SUCCESS findings in text output")
	checkCmd.Flags().StringSliceVar(&checkOnly, "check", nil, "Run only the named checks")
	checkCmd.Flags().IntVar(&checkDays, "expiration-days", 0, "Warn about certificates expiring within this many days (default from config)")

	registerCompletion(checkCmd, completionInput{"output", fixedCompletion("text", "json", "yaml")})
	registerCompletion(checkCmd, completionInput{"check", listCompletion(checkNames...)})
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("output") {
		cfg.Output = checkOutput
	}
	if cmd.Flags().Changed("expiration-days") {
		cfg.CertExpirationDays = checkDays
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, name := range checkOnly {
		if !slices.Contains(checkNames, name) {
			return fmt.Errorf("unknown check %q", name)
		}
	}

	ctx := cmd.Context()
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.close()

	var checks []healthcheck.Check
	for _, c := range env.checks() {
		if len(checkOnly) == 0 || slices.Contains(checkOnly, c.Name()) {
			checks = append(checks, c)
		}
	}

	rep, err := (&healthcheck.Runner{Checks: checks, MaxConcurrent: cfg.MaxConcurrentChecks}).Run(ctx)
	if err != nil {
		return fmt.Errorf("running checks: %w", err)
	}

	opts := report.Options{Format: cfg.Output, All: checkAll, Color: report.UseColor(os.Stdout)}
	if err := report.Write(cmd.OutOrStdout(), rep, opts); err != nil {
		return err
	}
	if code := report.ExitCode(rep); code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}
