package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DefaultCatalogTTL is the catalog lifetime used when configuration leaves
// the TTL unset. Published catalogs for a vintage are effectively immutable,
// so the TTL exists to pick up the Bureau's occasional corrections.
const DefaultCatalogTTL = 30 * 24 * time.Hour

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, path: dsn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS catalog_cache (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	dataset    TEXT NOT NULL,
	payload    BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL,
	UNIQUE (year, dataset)
);

CREATE TABLE IF NOT EXISTS boundary_sets (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	geography  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	srid       INTEGER NOT NULL DEFAULT 4326,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (year, geography, scope)
);

CREATE TABLE IF NOT EXISTS boundaries (
	set_id TEXT NOT NULL REFERENCES boundary_sets(id),
	geoid  TEXT NOT NULL,
	geom   BLOB NOT NULL,
	PRIMARY KEY (set_id, geoid)
);

CREATE INDEX IF NOT EXISTS idx_catalog_cache_expires_at ON catalog_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_boundary_sets_key ON boundary_sets(year, geography, scope);
CREATE INDEX IF NOT EXISTS idx_boundaries_set_id ON boundaries(set_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCatalog returns the cached variables.json payload for a (year, dataset)
// pair, or ok=false when absent or expired.
func (s *SQLiteStore) GetCatalog(ctx context.Context, year int, dataset string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM catalog_cache
		 WHERE year = ? AND dataset = ? AND expires_at > datetime('now')`,
		year, dataset,
	)

	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get catalog")
	}
	return payload, true, nil
}

// PutCatalog stores a variables.json payload, replacing any previous entry
// for the same (year, dataset) pair.
func (s *SQLiteStore) PutCatalog(ctx context.Context, year int, dataset string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_cache (id, year, dataset, payload, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (year, dataset) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), year, dataset, payload, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put catalog")
}

// GetBoundaries returns the EWKB geometries cached for one boundary set,
// keyed by GEOID, or ok=false when the set has not been cached.
func (s *SQLiteStore) GetBoundaries(ctx context.Context, year int, geography, scope string) (map[string][]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM boundary_sets WHERE year = ? AND geography = ? AND scope = ?`,
		year, geography, scope,
	)

	var setID string
	err := row.Scan(&setID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get boundary set")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid, geom FROM boundaries WHERE set_id = ?`, setID,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get boundaries")
	}
	defer rows.Close()

	encoded := make(map[string][]byte)
	for rows.Next() {
		var geoid string
		var geom []byte
		if err := rows.Scan(&geoid, &geom); err != nil {
			return nil, false, eris.Wrap(err, "sqlite: scan boundary")
		}
		encoded[geoid] = geom
	}
	if err := rows.Err(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: iterate boundaries")
	}
	return encoded, true, nil
}

// PutBoundaries replaces the cached geometries for one boundary set.
func (s *SQLiteStore) PutBoundaries(ctx context.Context, year int, geography, scope string, encoded map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put boundaries")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`DELETE FROM boundaries WHERE set_id IN
		 (SELECT id FROM boundary_sets WHERE year = ? AND geography = ? AND scope = ?)`,
		year, geography, scope,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: clear old boundaries")
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM boundary_sets WHERE year = ? AND geography = ? AND scope = ?`,
		year, geography, scope,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: clear old boundary set")
	}

	setID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO boundary_sets (id, year, geography, scope, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		setID, year, geography, scope, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert boundary set")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO boundaries (set_id, geoid, geom) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare boundary insert")
	}
	defer stmt.Close() //nolint:errcheck

	for geoid, geom := range encoded {
		if _, err := stmt.ExecContext(ctx, setID, geoid, geom); err != nil {
			return eris.Wrapf(err, "sqlite: insert boundary %s", geoid)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit boundaries")
}

// DeleteExpired removes catalog entries past their TTL. Boundary sets are
// vintage-keyed and never expire.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM catalog_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired catalogs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Stats reports cache contents.
func (s *SQLiteStore) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{Path: s.path}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0) FROM catalog_cache
		 WHERE expires_at > datetime('now')`,
	)
	if err := row.Scan(&stats.Catalogs, &stats.CatalogBytes); err != nil {
		return nil, eris.Wrap(err, "sqlite: catalog stats")
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boundary_sets`)
	if err := row.Scan(&stats.BoundarySets); err != nil {
		return nil, eris.Wrap(err, "sqlite: boundary set stats")
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boundaries`)
	if err := row.Scan(&stats.Boundaries); err != nil {
		return nil, eris.Wrap(err, "sqlite: boundary stats")
	}

	return stats, nil
}

// Clear empties both caches.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM boundaries`,
		`DELETE FROM boundary_sets`,
		`DELETE FROM catalog_cache`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: clear (%s)", stmt)
		}
	}
	return nil
}
