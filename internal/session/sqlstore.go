package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// dialect captures the few places where SQLite and PostgreSQL differ.
type dialect struct {
	name          string
	migrationsDir string
	getQuery      string
	putQuery      string
	deleteQuery   string
	countQuery    string
	purgeQuery    string
	recordQuery   string
	appliedQuery  string
}

var sqliteDialect = dialect{
	name:          "sqlite",
	migrationsDir: "migrations/sqlite",
	getQuery:      `SELECT data, expires_at FROM sessions WHERE id = ?`,
	putQuery: `INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
	deleteQuery:  `DELETE FROM sessions WHERE id = ?`,
	countQuery:   `SELECT COUNT(*) FROM sessions WHERE expires_at > ?`,
	purgeQuery:   `DELETE FROM sessions WHERE expires_at <= ?`,
	recordQuery:  `INSERT INTO schema_migrations (version) VALUES (?)`,
	appliedQuery: `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`,
}

var postgresDialect = dialect{
	name:          "postgres",
	migrationsDir: "migrations/postgres",
	getQuery:      `SELECT data, expires_at FROM sessions WHERE id = $1`,
	putQuery: `INSERT INTO sessions (id, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
	deleteQuery:  `DELETE FROM sessions WHERE id = $1`,
	countQuery:   `SELECT COUNT(*) FROM sessions WHERE expires_at > $1`,
	purgeQuery:   `DELETE FROM sessions WHERE expires_at <= $1`,
	recordQuery:  `INSERT INTO schema_migrations (version) VALUES ($1)`,
	appliedQuery: `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`,
}

// SQLStore keeps records as JSON rows in SQLite or PostgreSQL. Expiry is
// stored as unix seconds so both drivers agree on its type.
type SQLStore struct {
	db  *sql.DB
	d   dialect
	ttl time.Duration
}

// OpenSQLite creates or opens <dataDir>/sessions.db with WAL mode enabled and
// runs any pending migrations.
func OpenSQLite(dataDir string, ttl time.Duration) (*SQLStore, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sessions.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, sqliteDialect, ttl)
	if err != nil {
		return nil, err
	}

	slog.Info("session store opened", "backend", "sqlite", "path", dbPath)
	return s, nil
}

// OpenPostgres opens a PostgreSQL connection pool and runs pending migrations.
func OpenPostgres(dsn string, ttl time.Duration) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := newSQLStore(db, postgresDialect, ttl)
	if err != nil {
		return nil, err
	}

	slog.Info("session store opened", "backend", "postgres")
	return s, nil
}

func newSQLStore(db *sql.DB, d dialect, ttl time.Duration) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", d.name, err)
	}

	s := &SQLStore{db: db, d: d, ttl: ttl}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	var (
		data      string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, s.d.getQuery, id).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		if err := s.Delete(ctx, id); err != nil {
			slog.Warn("session store: failed to drop expired session", "error", err)
		}
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &rec, nil
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, id string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	expiresAt := time.Now().Add(s.ttl).Unix()
	if _, err := s.db.ExecContext(ctx, s.d.putQuery, id, string(data), expiresAt); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.d.deleteQuery, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Count returns the number of unexpired sessions.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, s.d.countQuery, time.Now().Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// CleanExpired deletes expired rows and returns how many were removed.
func (s *SQLStore) CleanExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.purgeQuery, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupTicker periodically purges expired rows until ctx is cancelled.
func (s *SQLStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.CleanExpired(ctx)
				if err != nil {
					slog.Error("session store: failed to purge expired sessions", "error", err)
					continue
				}
				if removed > 0 {
					slog.Debug("cleaned expired sessions", "removed", removed)
				}
			}
		}
	}()
}

// migrate runs all pending SQL migration files for the dialect in order.
func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, s.d.migrationsDir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		if err := s.db.QueryRow(s.d.appliedQuery, version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(path.Join(s.d.migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := tx.Exec(s.d.recordQuery, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied migration", "backend", s.d.name, "version", version)
	}

	return nil
}
