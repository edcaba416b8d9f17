package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sensiblebit/certhealth/internal/inventory"
)

var inventoryOutput string

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Print the certificates expected to be tracked",
	Args:  cobra.NoArgs,
	RunE:  runInventory,
}

func init() {
	inventoryCmd.Flags().StringVarP(&inventoryOutput, "output", "o", "text", "Output format: text, json, yaml")
	registerCompletion(inventoryCmd, completionInput{"output", fixedCompletion("text", "json", "yaml")})
}

// inventoryRow is the machine-readable form of an expected entry.
type inventoryRow struct {
	CertFile        string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile         string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	Database        string `json:"database,omitempty" yaml:"database,omitempty"`
	Nickname        string `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	CAName          string `json:"ca_name" yaml:"ca_name"`
	PreSaveCommand  string `json:"pre_save_command,omitempty" yaml:"pre_save_command,omitempty"`
	PostSaveCommand string `json:"post_save_command,omitempty" yaml:"post_save_command,omitempty"`
	TemplateProfile string `json:"template_profile,omitempty" yaml:"template_profile,omitempty"`
	NoProfile       bool   `json:"no_profile,omitempty" yaml:"no_profile,omitempty"`
}

func runInventory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.close()

	b, err := env.builder()
	if err != nil {
		return err
	}
	var chain []string
	if env.caConfigured {
		entries, err := env.trust.ListEntries(ctx, cfg.Layout.PKIAliasDir)
		if err != nil {
			return fmt.Errorf("listing CA certificate database: %w", err)
		}
		for _, e := range entries {
			chain = append(chain, e.Nickname)
		}
	}
	expected, err := b.Build(ctx, env.caConfigured, chain)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch inventoryOutput {
	case "text":
		var sb strings.Builder
		for _, e := range expected {
			sb.WriteString(e.String())
			sb.WriteByte('\n')
		}
		_, err = fmt.Fprint(w, sb.String())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(inventoryRows(expected))
	case "yaml":
		return yaml.NewEncoder(w).Encode(inventoryRows(expected))
	default:
		return fmt.Errorf("unsupported output format %q", inventoryOutput)
	}
}

func inventoryRows(entries []inventory.Entry) []inventoryRow {
	rows := make([]inventoryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, inventoryRow{
			CertFile:        e.Identity.CertFile,
			KeyFile:         e.Identity.KeyFile,
			Database:        e.Identity.Database,
			Nickname:        e.Identity.Nickname,
			CAName:          e.CAName,
			PreSaveCommand:  e.PreSaveCommand,
			PostSaveCommand: e.PostSaveCommand,
			TemplateProfile: e.TemplateProfile,
			NoProfile:       e.NoProfile,
		})
	}
	return rows
}
