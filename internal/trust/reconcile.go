package trust

import (
	"crypto/x509"
	"log/slog"

	"github.com/sensiblebit/certhealth"
	"github.com/sensiblebit/certhealth/internal/result"
)

// CheckName identifies the trust reconciliation in findings.
const CheckName = "CertNSSTrustCheck"

// Skipped records a third-party certificate left out of reconciliation.
type Skipped struct {
	Nickname string
	// PublicRoot is set when the certificate is a well-known public root.
	PublicRoot bool
}

// Outcome is the result of one trust reconciliation.
type Outcome struct {
	Findings []result.Finding
	Skipped  []Skipped
}

// triage collects findings in two phases: immediate findings in the order
// they are raised, then held findings flushed after all immediate ones.
type triage struct {
	out  *result.Results
	held []result.Finding
}

func newTriage() *triage {
	return &triage{out: result.New(result.Source, CheckName)}
}

func (t *triage) emit(sev result.Severity, key, format string, args ...any) {
	t.out.Add(sev, key, format, args...)
}

func (t *triage) hold(sev result.Severity, key, format string, args ...any) {
	t.held = append(t.held, t.out.Build(sev, key, format, args...))
}

func (t *triage) flush() []result.Finding {
	t.out.Append(t.held...)
	t.held = nil
	return t.out.Findings()
}

// Reconcile compares actual database entries against the policy.
//
// Entries covered by the policy are reported in the order observed: ERROR
// when their flags differ from the expectation, SUCCESS otherwise. Fixed
// policy nicknames absent from actual are reported as ERRORs after all of
// those, in policy declaration order. Third-party entries produce no
// finding and are listed in Outcome.Skipped.
func Reconcile(p Policy, actual []Entry) Outcome {
	t := newTriage()

	present := make(map[string]bool, len(actual))
	for _, e := range actual {
		present[e.Nickname] = true
	}
	for _, r := range p.Fixed {
		if !present[r.Nickname] {
			t.hold(result.Error, r.Nickname, "Certificate %s missing while verifying trust", r.Nickname)
		}
	}

	var skipped []Skipped
	for _, e := range actual {
		class, want := p.Classify(e.Nickname)
		if class == ClassThirdParty {
			s := Skipped{Nickname: e.Nickname, PublicRoot: isPublicRoot(e.Certificate)}
			slog.Debug("skipping third-party certificate", "nickname", e.Nickname, "public_root", s.PublicRoot)
			skipped = append(skipped, s)
			continue
		}
		got := e.Flags.Canonical()
		if got != want {
			t.emit(result.Error, e.Nickname, "Incorrect NSS trust for %s. Got %s expected %s", e.Nickname, got, want)
			continue
		}
		t.emit(result.Success, e.Nickname, "Trust for %s is %s", e.Nickname, want)
	}

	return Outcome{Findings: t.flush(), Skipped: skipped}
}

func isPublicRoot(der []byte) bool {
	if len(der) == 0 {
		return false
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return false
	}
	return certhealth.IsMozillaRoot(cert)
}
