package sqlite

import (
	"context"
	"database/sql"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"
	"github.com/pkg/errors"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database using the SQLite driver.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Connect with busy_timeout and foreign keys enabled. WAL keeps
	// readers unblocked while the single writer commits.
	dsn := profile.DSN + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	driver := &DB{db: db, profile: profile}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS user (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS system_prompt (
	id TEXT PRIMARY KEY,
	creator_id TEXT NOT NULL,
	name TEXT NOT NULL,
	content TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_system_prompt_creator_id ON system_prompt (creator_id);

CREATE TABLE IF NOT EXISTS chat (
	id TEXT PRIMARY KEY,
	creator_id TEXT NOT NULL,
	messages TEXT NOT NULL,
	system_prompt_id TEXT,
	created_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_creator_id ON chat (creator_id);

CREATE TABLE IF NOT EXISTS user_setting (
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (user_id, key)
);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	return nil
}
