// Package snapshot captures the tracking and trust store views of a host
// into a SQLite database, so the checks can run later against the copy.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sensiblebit/certhealth/internal/tracking"
	"github.com/sensiblebit/certhealth/internal/trust"
)

// ErrNotFound is returned by Certificate when the snapshot holds no
// certificate for the requested slot.
var ErrNotFound = errors.New("certificate not in snapshot")

// requestRow maps a row in the tracked_requests table.
type requestRow struct {
	Seq             int64     `db:"seq"`
	ID              string    `db:"id"`
	NotAfter        time.Time `db:"not_after"`
	CertStorage     string    `db:"cert_storage"`
	CertLocation    string    `db:"cert_location"`
	CertNickname    string    `db:"cert_nickname"`
	KeyStorage      string    `db:"key_storage"`
	KeyLocation     string    `db:"key_location"`
	KeyNickname     string    `db:"key_nickname"`
	CAName          string    `db:"ca_name"`
	PreSaveCommand  string    `db:"pre_save_command"`
	PostSaveCommand string    `db:"post_save_command"`
	TemplateProfile string    `db:"template_profile"`
}

// entryRow maps a row in the trust_entries table.
type entryRow struct {
	Seq         int64  `db:"seq"`
	Location    string `db:"location"`
	Nickname    string `db:"nickname"`
	Flags       string `db:"flags"`
	Certificate []byte `db:"certificate"`
}

// fileRow maps a row in the files table.
type fileRow struct {
	Path string `db:"path"`
	Data []byte `db:"data"`
}

// Info describes the host a snapshot was captured on.
type Info struct {
	CapturedAt   time.Time `db:"captured_at"`
	Hostname     string    `db:"hostname"`
	CAConfigured bool      `db:"ca_configured"`
}

// Store is an in-memory snapshot. It serves both observer interfaces and
// the inventory's certificate store lookups.
type Store struct {
	db *sqlx.DB
}

// New returns an empty snapshot.
func New() (*Store, error) {
	db, err := openMemDB()
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// openMemDB creates an in-memory SQLite database with the snapshot schema.
func openMemDB() (*sqlx.DB, error) {
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// initSchema creates the snapshot tables.
func initSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tracked_requests (
			seq               INTEGER PRIMARY KEY,
			id                text NOT NULL,
			not_after         timestamp NOT NULL,
			cert_storage      text NOT NULL,
			cert_location     text NOT NULL,
			cert_nickname     text NOT NULL,
			key_storage       text NOT NULL,
			key_location      text NOT NULL,
			key_nickname      text NOT NULL,
			ca_name           text NOT NULL,
			pre_save_command  text NOT NULL,
			post_save_command text NOT NULL,
			template_profile  text NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tracked_requests table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trust_entries (
			seq         INTEGER PRIMARY KEY,
			location    text NOT NULL,
			nickname    text NOT NULL,
			flags       text NOT NULL,
			certificate blob
		);
	`)
	if err != nil {
		return fmt.Errorf("creating trust_entries table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_trust_entries_slot ON trust_entries (location, nickname);
	`)
	if err != nil {
		return fmt.Errorf("creating slot index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			path text PRIMARY KEY,
			data blob NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating files table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot_info (
			captured_at   timestamp NOT NULL,
			hostname      text NOT NULL,
			ca_configured integer NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating snapshot_info table: %w", err)
	}
	return nil
}

// Load opens a snapshot file and copies it into memory.
func Load(dbPath string) (*Store, error) {
	db, err := openMemDB()
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	if err := copyFrom(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("loaded snapshot", "path", dbPath)
	return &Store{db: db}, nil
}

func copyFrom(db *sqlx.DB, dbPath string) error {
	// ATTACH the on-disk database and copy data into memory
	if _, err := db.Exec("ATTACH DATABASE ? AS diskdb", dbPath); err != nil {
		return fmt.Errorf("attaching database %s: %w", dbPath, err)
	}
	defer func() {
		if _, detachErr := db.Exec("DETACH DATABASE diskdb"); detachErr != nil {
			slog.Warn("detaching database", "path", dbPath, "error", detachErr)
		}
	}()

	for _, table := range []string{"tracked_requests", "trust_entries", "files", "snapshot_info"} {
		if _, err := db.Exec("INSERT INTO " + table + " SELECT * FROM diskdb." + table); err != nil {
			return fmt.Errorf("loading %s from %s: %w", table, dbPath, err)
		}
	}
	return nil
}

// Save writes the snapshot to dbPath.
func (s *Store) Save(dbPath string) error {
	// VACUUM INTO produces a clean, compact copy
	if _, err := s.db.Exec("VACUUM INTO ?", dbPath); err != nil {
		return fmt.Errorf("saving database to %s: %w", dbPath, err)
	}
	slog.Info("snapshot saved", "path", dbPath)
	return nil
}

// SetInfo records where and when the snapshot was captured.
func (s *Store) SetInfo(ctx context.Context, info Info) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_info"); err != nil {
		return fmt.Errorf("clearing snapshot info: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO snapshot_info (captured_at, hostname, ca_configured)
		VALUES (:captured_at, :hostname, :ca_configured)
	`, info); err != nil {
		return fmt.Errorf("saving snapshot info: %w", err)
	}
	return tx.Commit()
}

// Info returns the capture details, or false when none were recorded.
func (s *Store) Info(ctx context.Context) (Info, bool, error) {
	var infos []Info
	if err := s.db.SelectContext(ctx, &infos, "SELECT captured_at, hostname, ca_configured FROM snapshot_info"); err != nil {
		return Info{}, false, fmt.Errorf("reading snapshot info: %w", err)
	}
	if len(infos) == 0 {
		return Info{}, false, nil
	}
	return infos[0], true, nil
}

// PutRequests appends tracking requests, preserving their order.
func (s *Store) PutRequests(ctx context.Context, reqs []tracking.Request) error {
	for _, r := range reqs {
		row := requestRow{
			ID:              r.ID,
			NotAfter:        r.NotAfter.UTC(),
			CertStorage:     string(r.CertStorage),
			CertLocation:    r.CertLocation,
			CertNickname:    r.CertNickname,
			KeyStorage:      string(r.KeyStorage),
			KeyLocation:     r.KeyLocation,
			KeyNickname:     r.KeyNickname,
			CAName:          r.CAName,
			PreSaveCommand:  r.PreSaveCommand,
			PostSaveCommand: r.PostSaveCommand,
			TemplateProfile: r.TemplateProfile,
		}
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO tracked_requests (id, not_after, cert_storage, cert_location, cert_nickname, key_storage, key_location, key_nickname, ca_name, pre_save_command, post_save_command, template_profile)
			VALUES (:id, :not_after, :cert_storage, :cert_location, :cert_nickname, :key_storage, :key_location, :key_nickname, :ca_name, :pre_save_command, :post_save_command, :template_profile)
		`, row)
		if err != nil {
			return fmt.Errorf("saving request %s: %w", r.ID, err)
		}
	}
	return nil
}

// PutEntries appends the entries of the database at location.
func (s *Store) PutEntries(ctx context.Context, location string, entries []trust.Entry) error {
	for _, e := range entries {
		row := entryRow{
			Location:    location,
			Nickname:    e.Nickname,
			Flags:       string(e.Flags),
			Certificate: e.Certificate,
		}
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO trust_entries (location, nickname, flags, certificate)
			VALUES (:location, :nickname, :flags, :certificate)
		`, row)
		if err != nil {
			return fmt.Errorf("saving entry %q: %w", e.Nickname, err)
		}
	}
	return nil
}

// ListTracked returns the captured requests in capture order.
func (s *Store) ListTracked(ctx context.Context) ([]tracking.Request, error) {
	var rows []requestRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM tracked_requests ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("reading tracked requests: %w", err)
	}
	reqs := make([]tracking.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, tracking.Request{
			ID:              r.ID,
			NotAfter:        r.NotAfter.UTC(),
			CertStorage:     tracking.StorageType(r.CertStorage),
			CertLocation:    r.CertLocation,
			CertNickname:    r.CertNickname,
			KeyStorage:      tracking.StorageType(r.KeyStorage),
			KeyLocation:     r.KeyLocation,
			KeyNickname:     r.KeyNickname,
			CAName:          r.CAName,
			PreSaveCommand:  r.PreSaveCommand,
			PostSaveCommand: r.PostSaveCommand,
			TemplateProfile: r.TemplateProfile,
		})
	}
	return reqs, nil
}

// ListEntries returns the captured entries of the database at location.
func (s *Store) ListEntries(ctx context.Context, location string) ([]trust.Entry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM trust_entries WHERE location = ? ORDER BY seq", location); err != nil {
		return nil, fmt.Errorf("reading trust entries for %s: %w", location, err)
	}
	entries := make([]trust.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, trust.Entry{
			Nickname:    r.Nickname,
			Flags:       trust.Flags(r.Flags),
			Certificate: r.Certificate,
		})
	}
	return entries, nil
}

// Certificate returns the captured DER for nickname in database.
func (s *Store) Certificate(ctx context.Context, database, nickname string) ([]byte, error) {
	var der []byte
	err := s.db.GetContext(ctx, &der, `
		SELECT certificate FROM trust_entries
		WHERE location = ? AND nickname = ? AND certificate IS NOT NULL
		ORDER BY seq LIMIT 1
	`, database, nickname)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s in %s: %w", nickname, database, ErrNotFound)
		}
		return nil, fmt.Errorf("reading certificate %s: %w", nickname, err)
	}
	return der, nil
}

// PutFile stores the raw contents of a certificate file, replacing any
// earlier copy of the same path.
func (s *Store) PutFile(ctx context.Context, path string, data []byte) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO files (path, data) VALUES (:path, :data)
	`, fileRow{Path: path, Data: data})
	if err != nil {
		return fmt.Errorf("saving file %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the captured contents of path. A path that was not
// captured yields an error wrapping fs.ErrNotExist.
func (s *Store) ReadFile(path string) ([]byte, error) {
	var data []byte
	err := s.db.Get(&data, "SELECT data FROM files WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s not in snapshot: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
