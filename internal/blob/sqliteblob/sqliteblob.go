// Package sqliteblob keeps dashboard objects in a single SQLite file, for self-hosted runs
// without a hosted blob service.
package sqliteblob

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"

	_ "modernc.org/sqlite"
)

const urlScheme = "sqlite:"

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	pathname     TEXT PRIMARY KEY,
	access       TEXT NOT NULL,
	content_type TEXT NOT NULL,
	body         BLOB NOT NULL,
	size         INTEGER NOT NULL,
	uploaded_at  INTEGER NOT NULL
);`

// Store implements blob.Store on a SQLite database.
type Store struct {
	db     *sql.DB
	access blob.Access
	now    func() time.Time
}

// Open opens (creating if needed) the database at path. When access is non-empty the store
// only accepts writes of that access class.
func Open(path string, access blob.Access) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite blob store")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite blob store")
	}

	// single writer; avoids SQLITE_BUSY between the two writes of a save
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create blobs table")
	}

	return &Store{db: db, access: access, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pathname, size, uploaded_at FROM blobs WHERE substr(pathname, 1, length(?1)) = ?1 ORDER BY pathname`,
		prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list blobs")
	}
	defer rows.Close()

	var out []blob.Object
	for rows.Next() {
		var (
			o  blob.Object
			ts int64
		)
		if err := rows.Scan(&o.Pathname, &o.Size, &ts); err != nil {
			return nil, errors.Wrap(err, "scan blob row")
		}
		o.URL = urlScheme + o.Pathname
		o.UploadedAt = time.Unix(0, ts).UTC()
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate blob rows")
}

func (s *Store) Get(ctx context.Context, url string) ([]byte, error) {
	pathname := strings.TrimPrefix(url, urlScheme)

	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE pathname = ?`, pathname).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(blob.ErrNotFound, pathname)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get blob %s", pathname)
	}
	return body, nil
}

func (s *Store) Put(ctx context.Context, pathname string, body []byte, opts blob.PutOptions) (blob.Object, error) {
	if s.access != "" && opts.Access != s.access {
		return blob.Object{}, errors.Wrapf(blob.ErrAccessMismatch, "store is %s, write requested %s", s.access, opts.Access)
	}
	if opts.AddRandomSuffix {
		pathname = blob.Suffixed(pathname, uuid.NewString()[:8])
	}
	if body == nil {
		body = []byte{}
	}

	uploaded := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (pathname, access, content_type, body, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pathname) DO UPDATE SET
			access = excluded.access,
			content_type = excluded.content_type,
			body = excluded.body,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at`,
		pathname, string(opts.Access), opts.ContentType, body, len(body), uploaded.UnixNano())
	if err != nil {
		return blob.Object{}, errors.Wrapf(err, "put blob %s", pathname)
	}

	return blob.Object{
		Pathname:   pathname,
		URL:        urlScheme + pathname,
		Size:       int64(len(body)),
		UploadedAt: uploaded,
	}, nil
}

func (s *Store) Delete(ctx context.Context, urls ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete")
	}
	defer tx.Rollback()

	for _, u := range urls {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE pathname = ?`, strings.TrimPrefix(u, urlScheme)); err != nil {
			return errors.Wrap(err, "delete blob")
		}
	}
	return errors.Wrap(tx.Commit(), "commit delete")
}
