package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sensiblebit/certhealth/internal/config"
	"github.com/sensiblebit/certhealth/internal/logging"
)

var (
	configPath   string
	logLevel     string
	logFormat    string
	snapshotPath string
	passwordList []string
	passwordFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "certhealth",
	Short: "Certificate lifecycle consistency checks",
	Long: "Compare the certificates a host is expected to track with what the tracking daemon " +
		"and the certificate databases actually hold, and report expiring certificates.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "Read observed state from a snapshot database instead of the host")
	rootCmd.PersistentFlags().StringSliceVarP(&passwordList, "passwords", "p", nil, "Comma-separated passwords for PKCS#12 and JKS files")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")

	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"log-format", fixedCompletion("text", "json")})
	registerCompletion(rootCmd, completionInput{"config", fileCompletion})
	registerCompletion(rootCmd, completionInput{"snapshot", fileCompletion})
	registerCompletion(rootCmd, completionInput{"password-file", fileCompletion})

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(inventoryCmd)
}

// loadConfig reads the configuration file and applies flag overrides. The
// default file may be absent; an explicitly named one may not.
func loadConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("config") {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOptional(configPath)
	}
	if err != nil {
		return err
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		case "snapshot":
			cfg.Snapshot.Path = snapshotPath
		case "password-file":
			cfg.PasswordFile = passwordFile
		}
	})
	cfg.Passwords = append(cfg.Passwords, passwordList...)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}
