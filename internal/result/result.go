// Package result defines the severity-tagged findings produced by the
// certificate health checks and the ordered accumulator they are collected in.
package result

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks a finding. The zero value is Success.
type Severity int

const (
	Success Severity = iota
	Warning
	Error
)

// String returns the upper-case label used in reports.
func (s Severity) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity converts a label (case-insensitive) back to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return Success, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "ERROR":
		return Error, nil
	default:
		return Success, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so JSON and YAML reports
// carry the label instead of the integer.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Finding is one reconciliation result.
type Finding struct {
	Severity Severity      `json:"severity" yaml:"severity"`
	Key      string        `json:"key,omitempty" yaml:"key,omitempty"`
	Message  string        `json:"msg" yaml:"msg"`
	Check    string        `json:"check" yaml:"check"`
	Source   string        `json:"source" yaml:"source"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Results collects findings in the order they are added. It never sorts,
// merges or drops entries.
type Results struct {
	source string
	check  string
	items  []Finding
}

// New returns an empty Results that stamps every added finding with the
// given source and check name.
func New(source, check string) *Results {
	return &Results{source: source, check: check}
}

// Build returns a stamped finding without adding it.
func (r *Results) Build(sev Severity, key, format string, args ...any) Finding {
	return Finding{
		Severity: sev,
		Key:      key,
		Message:  fmt.Sprintf(format, args...),
		Check:    r.check,
		Source:   r.source,
	}
}

// Add appends a finding with the given severity, key and formatted message.
func (r *Results) Add(sev Severity, key, format string, args ...any) {
	r.items = append(r.items, r.Build(sev, key, format, args...))
}

// Append adds already-built findings, keeping their order.
func (r *Results) Append(fs ...Finding) {
	r.items = append(r.items, fs...)
}

// Findings returns a copy of the collected findings.
func (r *Results) Findings() []Finding {
	out := make([]Finding, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many findings in fs carry severity sev.
func Count(fs []Finding, sev Severity) int {
	n := 0
	for _, f := range fs {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Worst returns the highest severity in fs, or Success when fs is empty.
func Worst(fs []Finding) Severity {
	worst := Success
	for _, f := range fs {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst
}

// Source is the source name stamped on every certificate check finding.
const Source = "certhealth.ipa.certs"
