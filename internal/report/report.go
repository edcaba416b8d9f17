// Package report renders check findings for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/sensiblebit/certhealth/internal/healthcheck"
	"github.com/sensiblebit/certhealth/internal/result"
)

// Exit statuses of the check command.
const (
	ExitOK      = 0
	ExitErrors  = 1
	ExitAborted = 2
)

// Options control rendering.
type Options struct {
	// Format is one of: text | json | yaml.
	Format string
	// All includes SUCCESS findings in text output.
	All bool
	// Color enables ANSI severity labels in text output.
	Color bool
}

// entry is the machine-readable form of one finding.
type entry struct {
	Source   string `json:"source" yaml:"source"`
	Check    string `json:"check" yaml:"check"`
	Result   string `json:"result" yaml:"result"`
	Duration string `json:"duration" yaml:"duration"`
	KW       kw     `json:"kw" yaml:"kw"`
}

type kw struct {
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	Msg string `json:"msg" yaml:"msg"`
}

func toEntries(fs []result.Finding) []entry {
	out := make([]entry, 0, len(fs))
	for _, f := range fs {
		out = append(out, entry{
			Source:   f.Source,
			Check:    f.Check,
			Result:   f.Severity.String(),
			Duration: fmt.Sprintf("%.6f", f.Duration.Seconds()),
			KW:       kw{Key: f.Key, Msg: f.Message},
		})
	}
	return out
}

// Write renders rep to w.
func Write(w io.Writer, rep healthcheck.Report, opts Options) error {
	switch opts.Format {
	case "", "text":
		_, err := io.WriteString(w, FormatText(rep, opts))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toEntries(rep.Findings)); err != nil {
			return fmt.Errorf("encoding JSON report: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toEntries(rep.Findings)); err != nil {
			return fmt.Errorf("encoding YAML report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

var colors = map[result.Severity]string{
	result.Success: "\x1b[32m",
	result.Warning: "\x1b[33m",
	result.Error:   "\x1b[31m",
}

// FormatText renders one line per finding followed by a summary line.
// SUCCESS findings are omitted unless opts.All is set.
func FormatText(rep healthcheck.Report, opts Options) string {
	var sb strings.Builder
	for _, f := range rep.Findings {
		if f.Severity == result.Success && !opts.All {
			continue
		}
		label := f.Severity.String()
		if opts.Color {
			label = colors[f.Severity] + label + "\x1b[0m"
		}
		name := f.Source + "." + f.Check
		if f.Key != "" {
			name += "." + f.Key
		}
		fmt.Fprintf(&sb, "%s: %s: %s\n", label, name, f.Message)
	}

	errs := result.Count(rep.Findings, result.Error)
	warns := result.Count(rep.Findings, result.Warning)
	if errs == 0 && warns == 0 {
		sb.WriteString("No issues found.\n")
	} else {
		fmt.Fprintf(&sb, "%d error(s), %d warning(s)\n", errs, warns)
	}
	if len(rep.Aborted) > 0 {
		fmt.Fprintf(&sb, "Checks aborted: %s\n", strings.Join(rep.Aborted, ", "))
	}
	return sb.String()
}

// ExitCode maps a report to the check command's exit status.
func ExitCode(rep healthcheck.Report) int {
	switch {
	case len(rep.Aborted) > 0:
		return ExitAborted
	case result.Worst(rep.Findings) == result.Error:
		return ExitErrors
	default:
		return ExitOK
	}
}

// UseColor reports whether f is a terminal and NO_COLOR is unset.
func UseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
