// Package certmonger reads the tracking requests certmonger persists in its
// request directory.
package certmonger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sensiblebit/certhealth"
	"github.com/sensiblebit/certhealth/internal/tracking"
)

// DefaultRequestDir is where certmonger keeps one file per tracking request.
const DefaultRequestDir = "/var/lib/certmonger/requests"

// notAfterLayout is certmonger's timestamp format (UTC).
const notAfterLayout = "20060102150405"

// DirObserver lists tracking requests from a certmonger request directory.
type DirObserver struct {
	Dir string
}

// ListTracked parses every request file in the directory, in file name
// order. Files that are not valid requests are skipped with a warning.
func (o DirObserver) ListTracked(ctx context.Context) ([]tracking.Request, error) {
	dir := o.Dir
	if dir == "" {
		dir = DefaultRequestDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading request directory %s: %w", dir, err)
	}

	var reqs []tracking.Request
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening request %s: %w", path, err)
		}
		req, err := ParseRequest(f)
		_ = f.Close()
		if err != nil {
			slog.Warn("skipping certmonger request", "path", path, "error", err)
			continue
		}
		if req.ID == "" {
			req.ID = e.Name()
		}
		reqs = append(reqs, req)
	}
	slog.Debug("loaded certmonger requests", "dir", dir, "count", len(reqs))
	return reqs, nil
}

// ParseRequest decodes one request file. Values continue onto following
// lines that start with a space (the stored PEM certificate uses this).
// The expiry comes from cert_not_after, or from the stored certificate when
// that key is absent.
func ParseRequest(r io.Reader) (tracking.Request, error) {
	fields, err := readFields(r)
	if err != nil {
		return tracking.Request{}, err
	}

	req := tracking.Request{
		ID:              fields["id"],
		CertStorage:     tracking.StorageType(fields["cert_storage_type"]),
		CertLocation:    fields["cert_storage_location"],
		CertNickname:    fields["cert_nickname"],
		KeyStorage:      tracking.StorageType(fields["key_storage_type"]),
		KeyLocation:     fields["key_storage_location"],
		KeyNickname:     fields["key_nickname"],
		CAName:          fields["ca_name"],
		PreSaveCommand:  fields["pre_certsave_command"],
		PostSaveCommand: fields["post_certsave_command"],
		TemplateProfile: fields["template_profile"],
	}

	switch {
	case fields["cert_not_after"] != "":
		t, err := time.Parse(notAfterLayout, fields["cert_not_after"])
		if err != nil {
			return tracking.Request{}, fmt.Errorf("parsing cert_not_after: %w", err)
		}
		req.NotAfter = t.UTC()
	case fields["cert"] != "":
		cert, err := certhealth.ParsePEMCertificate([]byte(fields["cert"]))
		if err != nil {
			return tracking.Request{}, fmt.Errorf("parsing stored certificate: %w", err)
		}
		req.NotAfter = cert.NotAfter.UTC()
	default:
		return tracking.Request{}, errors.New("request has no certificate expiry")
	}
	return req, nil
}

func readFields(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	var last string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if line[0] == ' ' {
			if last == "" {
				return nil, errors.New("continuation line without a key")
			}
			fields[last] += "\n" + line[1:]
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		fields[key] = value
		last = key
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.New("empty request")
	}
	return fields, nil
}
