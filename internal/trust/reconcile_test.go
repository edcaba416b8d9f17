package trust

import (
	"encoding/pem"
	"reflect"
	"testing"

	"github.com/breml/rootcerts/embedded"

	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/result"
)

func defaultEntries() []Entry {
	return []Entry{
		{Nickname: inventory.OCSPSigningNickname, Flags: "u,u,u"},
		{Nickname: inventory.SubsystemNickname, Flags: "u,u,u"},
		{Nickname: inventory.AuditSigningNickname, Flags: "u,u,Pu"},
		{Nickname: inventory.ServerCertNickname, Flags: "u,u,u"},
	}
}

func TestReconcile_AllMatch(t *testing.T) {
	t.Parallel()

	out := Reconcile(DefaultPolicy(), defaultEntries())
	if len(out.Findings) != 4 {
		t.Fatalf("got %d findings, want 4", len(out.Findings))
	}
	for _, f := range out.Findings {
		if f.Severity != result.Success {
			t.Errorf("unexpected %v finding: %s", f.Severity, f.Message)
		}
		if f.Check != CheckName || f.Source != result.Source {
			t.Errorf("finding not stamped: %+v", f)
		}
	}
}

func TestReconcile_MissingReportedLast(t *testing.T) {
	// WHY: A missing certificate is reported after every present one, with
	// the exact message operators grep for.
	t.Parallel()

	entries := defaultEntries()[1:] // drop OCSP signing
	out := Reconcile(DefaultPolicy(), entries)

	if len(out.Findings) != 4 {
		t.Fatalf("got %d findings, want 4", len(out.Findings))
	}
	for _, f := range out.Findings[:3] {
		if f.Severity != result.Success {
			t.Errorf("expected SUCCESS before the missing finding, got %+v", f)
		}
	}
	last := out.Findings[3]
	if last.Severity != result.Error || last.Key != inventory.OCSPSigningNickname {
		t.Errorf("last finding = %+v", last)
	}
	if want := "Certificate ocspSigningCert cert-pki-ca missing while verifying trust"; last.Message != want {
		t.Errorf("message = %q, want %q", last.Message, want)
	}
}

func TestReconcile_MismatchesInterleaved(t *testing.T) {
	// WHY: Mismatches are emitted in observed order, interleaved with
	// successes, and carry both the observed and the expected flags.
	t.Parallel()

	entries := defaultEntries()
	entries[1].Flags = "X,u,u"
	entries[3].Flags = "X,u,u"
	out := Reconcile(DefaultPolicy(), entries)

	var sevs []result.Severity
	for _, f := range out.Findings {
		sevs = append(sevs, f.Severity)
	}
	want := []result.Severity{result.Success, result.Error, result.Success, result.Error}
	if !reflect.DeepEqual(sevs, want) {
		t.Fatalf("severities = %v, want %v", sevs, want)
	}
	if got, want := out.Findings[1].Message, "Incorrect NSS trust for subsystemCert cert-pki-ca. Got X,u,u expected u,u,u"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if got := out.Findings[3].Key; got != inventory.ServerCertNickname {
		t.Errorf("key = %q", got)
	}
}

func TestReconcile_CASigningVariants(t *testing.T) {
	// WHY: Every nickname with the CA signing prefix expects the elevated
	// trust, whatever its suffix, and is reported in observed order.
	t.Parallel()

	entries := append([]Entry{
		{Nickname: inventory.CASigningNickname, Flags: "CTu,Cu,Cu"},
		{Nickname: inventory.CASigningNickname + " 2", Flags: "C,C,C"},
	}, defaultEntries()...)
	out := Reconcile(DefaultPolicy(), entries)

	if len(out.Findings) != 6 {
		t.Fatalf("got %d findings, want 6", len(out.Findings))
	}
	if out.Findings[0].Severity != result.Success {
		t.Errorf("base CA signing finding = %+v", out.Findings[0])
	}
	if f := out.Findings[1]; f.Severity != result.Error || f.Message != "Incorrect NSS trust for caSigningCert cert-pki-ca 2. Got C,C,C expected CTu,Cu,Cu" {
		t.Errorf("variant finding = %+v", f)
	}
}

func TestReconcile_ThirdPartySkipped(t *testing.T) {
	// WHY: Certificates outside the policy are not reconciled but remain
	// visible as skipped, flagged when they are well-known public roots.
	t.Parallel()

	block, _ := pem.Decode([]byte(embedded.MozillaCACertificatesPEM()))
	if block == nil {
		t.Fatal("embedded Mozilla bundle is empty")
	}

	entries := append(defaultEntries(),
		Entry{Nickname: "Public Root", Flags: "C,,", Certificate: block.Bytes},
		Entry{Nickname: "Partner CA", Flags: "CT,C,C"},
	)
	out := Reconcile(DefaultPolicy(), entries)

	if len(out.Findings) != 4 {
		t.Errorf("third-party entries must not produce findings, got %d", len(out.Findings))
	}
	want := []Skipped{{Nickname: "Public Root", PublicRoot: true}, {Nickname: "Partner CA"}}
	if !reflect.DeepEqual(out.Skipped, want) {
		t.Errorf("Skipped = %+v, want %+v", out.Skipped, want)
	}
}

func TestReconcile_EmptyStore(t *testing.T) {
	t.Parallel()

	out := Reconcile(DefaultPolicy(), nil)
	var keys []string
	for _, f := range out.Findings {
		if f.Severity != result.Error {
			t.Errorf("unexpected %v", f.Severity)
		}
		keys = append(keys, f.Key)
	}
	want := []string{
		inventory.OCSPSigningNickname,
		inventory.SubsystemNickname,
		inventory.AuditSigningNickname,
		inventory.ServerCertNickname,
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("missing order = %v, want %v", keys, want)
	}
}

func TestReconcile_OrderingLaw(t *testing.T) {
	// WHY: For any subset and order of entries, every missing finding comes
	// after every present one and missing findings follow policy order.
	t.Parallel()

	all := defaultEntries()
	p := DefaultPolicy()
	for mask := range 1 << len(all) {
		var subset []Entry
		for i := len(all) - 1; i >= 0; i-- { // reversed observation order
			if mask&(1<<i) != 0 {
				subset = append(subset, all[i])
			}
		}
		out := Reconcile(p, subset)
		if len(out.Findings) != len(all) {
			t.Fatalf("mask %b: got %d findings", mask, len(out.Findings))
		}
		for i, e := range subset {
			if out.Findings[i].Key != e.Nickname {
				t.Fatalf("mask %b: finding %d key %q, want observed %q", mask, i, out.Findings[i].Key, e.Nickname)
			}
		}
		rank := map[string]int{}
		for i, r := range p.Fixed {
			rank[r.Nickname] = i
		}
		missing := out.Findings[len(subset):]
		for i := 1; i < len(missing); i++ {
			if rank[missing[i-1].Key] > rank[missing[i].Key] {
				t.Fatalf("mask %b: missing findings out of policy order: %v", mask, missing)
			}
		}
		if again := Reconcile(p, subset); !reflect.DeepEqual(out, again) {
			t.Fatalf("mask %b: not idempotent", mask)
		}
	}
}
