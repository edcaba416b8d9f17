package expiry

import (
	"reflect"
	"testing"
	"time"

	"github.com/sensiblebit/certhealth/internal/result"
	"github.com/sensiblebit/certhealth/internal/tracking"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func TestAnalyze_Boundaries(t *testing.T) {
	// WHY: Pins the three outcomes around the horizon: one second past
	// NotAfter is expired, horizon-1 days warns, horizon+1 days is silent.
	t.Parallel()

	const horizon = 30
	tests := []struct {
		name     string
		notAfter time.Time
		wantSev  *result.Severity
		wantMsg  string
	}{
		{
			name:     "expired by one second",
			notAfter: now.Add(-time.Second),
			wantSev:  ptr(result.Error),
			wantMsg:  "Request id r1 is expired: not valid after 2026-03-01T11:59:59Z",
		},
		{
			name:     "inside horizon",
			notAfter: now.Add((horizon - 1) * day),
			wantSev:  ptr(result.Warning),
			wantMsg:  "Request id r1 expires in 29 days",
		},
		{
			name:     "partial day rounds down",
			notAfter: now.Add((horizon-1)*day + 23*time.Hour),
			wantSev:  ptr(result.Warning),
			wantMsg:  "Request id r1 expires in 29 days",
		},
		{
			name:     "exactly at horizon",
			notAfter: now.Add(horizon * day),
		},
		{
			name:     "beyond horizon",
			notAfter: now.Add((horizon + 1) * day),
		},
		{
			name:     "expires this instant",
			notAfter: now,
			wantSev:  ptr(result.Warning),
			wantMsg:  "Request id r1 expires in 0 days",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Analyze([]tracking.Request{{ID: "r1", NotAfter: tt.notAfter}}, horizon, now)
			if tt.wantSev == nil {
				if len(got) != 0 {
					t.Fatalf("expected no findings, got %v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d findings, want 1", len(got))
			}
			f := got[0]
			if f.Severity != *tt.wantSev || f.Message != tt.wantMsg || f.Key != "r1" {
				t.Errorf("got %+v, want severity %v message %q", f, *tt.wantSev, tt.wantMsg)
			}
			if f.Check != CheckName || f.Source != result.Source {
				t.Errorf("finding not stamped: %+v", f)
			}
		})
	}
}

func TestAnalyze_NeverEmitsSuccess(t *testing.T) {
	// WHY: Consumers count findings as anomalies, so healthy requests must
	// be silent rather than reported as SUCCESS.
	t.Parallel()

	tracked := []tracking.Request{
		{ID: "healthy", NotAfter: now.Add(365 * day)},
		{ID: "soon", NotAfter: now.Add(3 * day)},
		{ID: "dead", NotAfter: now.Add(-day)},
	}
	got := Analyze(tracked, DefaultWarnDays, now)
	if n := result.Count(got, result.Success); n != 0 {
		t.Errorf("got %d SUCCESS findings", n)
	}
	var keys []string
	for _, f := range got {
		keys = append(keys, f.Key)
	}
	if want := []string{"soon", "dead"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if again := Analyze(tracked, DefaultWarnDays, now); !reflect.DeepEqual(got, again) {
		t.Error("Analyze is not idempotent")
	}
}

func ptr[T any](v T) *T { return &v }
