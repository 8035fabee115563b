package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/cliniclink/pkg/crypto"
	"github.com/NicolasHaas/cliniclink/pkg/model"
)

// SQLStore persists the session as key/value rows in a SQLite database.
// The session is loaded lazily on the first Get and cached afterwards;
// every write goes through a single transaction before the cache is swapped.
type SQLStore struct {
	db     *sql.DB
	sealer *crypto.Sealer

	mu     sync.RWMutex
	cached *model.Session
}

// OpenSQL opens (or creates) the session database at dbPath and runs
// migrations. When sealer is non-nil the token is encrypted at rest.
func OpenSQL(dbPath string, sealer *crypto.Sealer) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open DB: %w", err)
	}

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" when a second process peeks at the session
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: set busy_timeout: %w", err)
	}

	s := &SQLStore{db: db, sealer: sealer}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version: 1,
			statements: []string{`
			CREATE TABLE IF NOT EXISTS session_kv (
				key        TEXT NOT NULL PRIMARY KEY,
				value      TEXT NOT NULL DEFAULT '',
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("session: migrate v%d: %w", m.version, err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("session: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("session: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("session: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("session: read schema version: %w", err)
	}
	return version, nil
}

func (s *SQLStore) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("session: update schema version: %w", err)
	}
	return nil
}

// Get returns the cached session, loading it on first use.
func (s *SQLStore) Get() model.Session {
	s.mu.RLock()
	if s.cached != nil {
		sess := *s.cached
		s.mu.RUnlock()
		return sess
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached
	}
	sess, err := s.load(context.Background())
	if err != nil {
		// Not cached: a transient read failure must not pin an empty session.
		slog.Warn("session: load failed, treating as signed out", "err", err)
		return model.Session{}
	}
	s.cached = &sess
	return sess
}

func (s *SQLStore) load(ctx context.Context) (model.Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM session_kv")
	if err != nil {
		return model.Session{}, fmt.Errorf("session: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make(map[string]string, len(Keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return model.Session{}, fmt.Errorf("session: scan: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, fmt.Errorf("session: rows: %w", err)
	}

	if tok := values[KeyToken]; tok != "" && s.sealer != nil {
		opened, err := s.sealer.Open(KeyToken, tok)
		if err != nil {
			slog.Warn("session: stored token could not be opened, dropping it", "err", err)
			opened = ""
		}
		values[KeyToken] = opened
	}
	return fromValues(values), nil
}

// Save replaces every persisted key in one transaction.
func (s *SQLStore) Save(sess model.Session) error {
	values := toValues(sess)
	if values[KeyToken] != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(KeyToken, values[KeyToken])
		if err != nil {
			return fmt.Errorf("session: seal token: %w", err)
		}
		values[KeyToken] = sealed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replace(context.Background(), values); err != nil {
		return err
	}
	s.cached = &sess
	return nil
}

// Clear removes every key; subsequent Gets return the zero Session.
func (s *SQLStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replace(context.Background(), nil); err != nil {
		return err
	}
	s.cached = &model.Session{}
	return nil
}

func (s *SQLStore) replace(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_kv"); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	for _, k := range Keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, datetime('now'))", k, v); err != nil {
			return fmt.Errorf("session: write %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	return nil
}
