// Package storage persists user key records and encrypted files.
//
// Two database/sql drivers are supported: "sqlite" (modernc.org/sqlite, the
// default, pure Go) and "pgx" (PostgreSQL via jackc/pgx). Queries are written
// with ? placeholders and rebound to $n for PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// UserKeyRecord is a user's registered public key and wrapped symmetric key.
// There is at most one per user; a new sync overwrites it.
type UserKeyRecord struct {
	UserID              string
	PublicKey           string
	WrappedSymmetricKey string
	Algorithm           string
	UpdatedAt           time.Time
}

// FileRecord is one stored file. Envelope and IV are the base64 transport
// form; plaintext is never stored.
type FileRecord struct {
	ID          string
	OwnerID     string
	Name        string
	Path        string
	Envelope    string
	IV          string
	Digest      string
	Signature   string
	Algorithm   string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Signed reports whether the file carries a detached signature.
func (f *FileRecord) Signed() bool {
	return f.Signature != ""
}

// Storage is a SQL-backed repository. It is safe for concurrent use.
type Storage struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_keys (
		user_id     TEXT PRIMARY KEY,
		public_key  TEXT NOT NULL,
		wrapped_key TEXT NOT NULL,
		algorithm   TEXT NOT NULL,
		updated_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		name         TEXT NOT NULL,
		path         TEXT NOT NULL,
		envelope     TEXT NOT NULL,
		iv           TEXT NOT NULL,
		digest       TEXT NOT NULL DEFAULT '',
		signature    TEXT NOT NULL DEFAULT '',
		algorithm    TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		size         BIGINT NOT NULL,
		created_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id)`,
}

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Storage, error) {
	switch driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", kerrors.ErrInvalidRequest, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *Storage) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetUserKey returns the user's key record or ErrNoKey.
func (s *Storage) GetUserKey(ctx context.Context, userID string) (*UserKeyRecord, error) {
	query := s.rebind(`SELECT user_id, public_key, wrapped_key, algorithm, updated_at
		FROM user_keys WHERE user_id = ?`)

	var rec UserKeyRecord
	var updatedUnix int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.PublicKey, &rec.WrappedSymmetricKey, &rec.Algorithm, &updatedUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.ErrNoKey
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserKey: %w", err)
	}
	rec.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
	return &rec, nil
}

// PutUserKey inserts or replaces the user's key record. Last write wins.
func (s *Storage) PutUserKey(ctx context.Context, rec UserKeyRecord) error {
	query := s.rebind(`INSERT INTO user_keys (user_id, public_key, wrapped_key, algorithm, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			public_key = excluded.public_key,
			wrapped_key = excluded.wrapped_key,
			algorithm = excluded.algorithm,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.PublicKey, rec.WrappedSymmetricKey, rec.Algorithm, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("PutUserKey: %w", err)
	}
	return nil
}

// CreateFile stores a new file and returns it with its ID and timestamp set.
func (s *Storage) CreateFile(ctx context.Context, f FileRecord) (*FileRecord, error) {
	f.ID = uuid.New().String()
	f.CreatedAt = s.now().UTC().Truncate(time.Second)
	if f.Path == "" {
		f.Path = "/" + f.Name
	}

	query := s.rebind(`INSERT INTO files
		(id, owner_id, name, path, envelope, iv, digest, signature, algorithm, content_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.Name, f.Path, f.Envelope, f.IV, f.Digest, f.Signature,
		f.Algorithm, f.ContentType, f.Size, f.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("CreateFile: %w", err)
	}
	return &f, nil
}

const fileColumns = `id, owner_id, name, path, envelope, iv, digest, signature, algorithm, content_type, size, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*FileRecord, error) {
	var f FileRecord
	var createdUnix int64
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Path, &f.Envelope, &f.IV, &f.Digest,
		&f.Signature, &f.Algorithm, &f.ContentType, &f.Size, &createdUnix)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return &f, nil
}

// GetFile returns a file by ID or ErrFileNotFound. Ownership is the caller's
// concern.
func (s *Storage) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, kerrors.ErrFileNotFound
	}

	query := s.rebind(`SELECT ` + fileColumns + ` FROM files WHERE id = ?`)
	f, err := scanFile(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetFile: %w", err)
	}
	return f, nil
}

// ListFiles returns the owner's files, newest first.
func (s *Storage) ListFiles(ctx context.Context, ownerID string) ([]FileRecord, error) {
	query := s.rebind(`SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = ? ORDER BY created_at DESC, name ASC`)

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ListFiles: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}
