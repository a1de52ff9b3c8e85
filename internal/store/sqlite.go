package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/extraneous/internal/core"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
  key TEXT NOT NULL PRIMARY KEY,
  value TEXT NOT NULL
);`

// ConfigKey is the reserved key holding the persisted extension config blob.
const ConfigKey = "config"

// Durable is the persistent key-value store owned by the background daemon.
// Keys are namespaced per entity (video_<id>, config); values are JSON.
type Durable struct {
	db *sql.DB
}

func OpenDurable(path string) (*Durable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	ApplyPragmas(context.Background(), db)
	return &Durable{db: db}, nil
}

func (d *Durable) Close() error { return d.db.Close() }

func (d *Durable) Ping() error { return d.db.Ping() }

func (d *Durable) String() string { return fmt.Sprintf("Durable{%p}", d.db) }

// Get reads the raw JSON value for a key. Missing keys return (nil, nil).
func (d *Durable) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get record")
	}
	return []byte(value), nil
}

// Set upserts the raw JSON value for a key.
func (d *Durable) Set(ctx context.Context, key string, value []byte) error {
	const q = `INSERT INTO records (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`
	_, err := d.db.ExecContext(ctx, q, key, string(value))
	return errors.Wrap(err, "set record")
}

// GetRecord loads the watch-state record for a video. Missing records return
// (nil, nil); callers treat that as "not watched".
func (d *Durable) GetRecord(ctx context.Context, videoID string) (*core.VideoRecord, error) {
	raw, err := d.Get(ctx, core.VideoKey(videoID))
	if err != nil || raw == nil {
		return nil, err
	}
	var rec core.VideoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return &rec, nil
}

// IsWatched reports the persisted watch state, defaulting to false.
func (d *Durable) IsWatched(ctx context.Context, videoID string) (bool, error) {
	rec, err := d.GetRecord(ctx, videoID)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.IsWatched, nil
}

// SetWatched upserts the watch state for a video. Read-modify-write is not
// atomic across concurrent calls for one key; writes are user-click-driven
// and last write wins.
func (d *Durable) SetWatched(ctx context.Context, videoID string, watched bool) error {
	rec, err := d.GetRecord(ctx, videoID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &core.VideoRecord{}
	}
	rec.IsWatched = watched
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return d.Set(ctx, core.VideoKey(videoID), raw)
}
