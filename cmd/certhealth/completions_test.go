package main

import (
	"slices"
	"testing"
)

func TestListCompletion(t *testing.T) {
	// WHY: --check takes a comma-separated list; completion must extend the
	// last item and never offer a check that is already listed.
	t.Parallel()

	complete := listCompletion("CertExpirationCheck", "CertTrackingCheck", "CertNSSTrustCheck")
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{"CertExpirationCheck", "CertTrackingCheck", "CertNSSTrustCheck"}},
		{"prefix", "CertT", []string{"CertTrackingCheck"}},
		{"after comma", "CertTrackingCheck,", []string{"CertTrackingCheck,CertExpirationCheck", "CertTrackingCheck,CertNSSTrustCheck"}},
		{"after comma with prefix", "CertTrackingCheck,CertN", []string{"CertTrackingCheck,CertNSSTrustCheck"}},
		{"no match", "Bogus", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := complete(nil, nil, tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("complete(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
