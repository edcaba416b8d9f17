// Package nssdb observes NSS certificate databases through certutil.
package nssdb

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/certhealth/internal/trust"
)

// ParseListing parses the output of "certutil -L". Each certificate line is
// a nickname (which may contain spaces) followed by its trust triple. The
// header and blank lines are ignored.
func ParseListing(data []byte) ([]trust.Entry, error) {
	var entries []trust.Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" || isHeader(line) {
			continue
		}
		i := strings.LastIndexAny(line, " \t")
		if i < 0 {
			return nil, fmt.Errorf("malformed listing line %q", line)
		}
		flags, err := trust.ParseFlags(line[i+1:])
		if err != nil {
			return nil, fmt.Errorf("listing line %q: %w", line, err)
		}
		entries = append(entries, trust.Entry{
			Nickname: strings.TrimSpace(line[:i]),
			Flags:    flags,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	return entries, nil
}

func isHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "Certificate Nickname") || trimmed == "SSL,S/MIME,JAR/XPI"
}

// ListingFile serves a captured "certutil -L" listing, for offline analysis
// of a host's trust store. The location argument is ignored.
type ListingFile struct {
	Path string
}

// ListEntries parses the listing file.
func (f ListingFile) ListEntries(_ context.Context, _ string) ([]trust.Entry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	entries, err := ParseListing(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.Path, err)
	}
	return entries, nil
}
