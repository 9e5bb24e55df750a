package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Cache persists one snapshot row per room: the granted-access flag,
// the room metadata, the last known video url and the last roster. It
// is read once at room entry to paint the screen before the network
// snapshot arrives; network state always supersedes it. There is no
// eviction, a row lives until a newer snapshot overwrites it.
type Cache struct {
	db *sql.DB
}

// Snapshot is a room's cached state. RoomJSON and RosterJSON hold the
// encoded metadata/roster; the cache does not interpret them.
type Snapshot struct {
	RoomID        string
	AccessGranted bool
	RoomJSON      []byte
	VideoURL      string
	RosterJSON    []byte
	UpdatedAt     time.Time
}

// NewCache opens the SQLite file at the provided path. Call Close when
// done.
func NewCache(path string) (*Cache, error) {
	if path == "" {
		path = "watchroom.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying DB connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS room_cache (
		room_id TEXT PRIMARY KEY,
		access_granted INTEGER NOT NULL DEFAULT 0,
		room_json TEXT,
		video_url TEXT NOT NULL DEFAULT '',
		roster_json TEXT,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// Get returns the snapshot for a room, or nil when none is cached.
func (c *Cache) Get(ctx context.Context, roomID string) (*Snapshot, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT room_id, access_granted, room_json, video_url, roster_json, updated_at
		FROM room_cache WHERE room_id = ?`, roomID)
	var snap Snapshot
	var granted int
	var roomJSON, rosterJSON sql.NullString
	if err := row.Scan(&snap.RoomID, &granted, &roomJSON, &snap.VideoURL, &rosterJSON, &snap.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	snap.AccessGranted = granted != 0
	if roomJSON.Valid {
		snap.RoomJSON = []byte(roomJSON.String)
	}
	if rosterJSON.Valid {
		snap.RosterJSON = []byte(rosterJSON.String)
	}
	return &snap, nil
}

// PutRoom stores the room metadata for a room.
func (c *Cache) PutRoom(ctx context.Context, roomID string, roomJSON []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO room_cache(room_id, room_json, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET room_json=excluded.room_json, updated_at=CURRENT_TIMESTAMP`,
		roomID, string(roomJSON))
	return err
}

// PutAccess stores the granted-access flag for a room.
func (c *Cache) PutAccess(ctx context.Context, roomID string, granted bool) error {
	val := 0
	if granted {
		val = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO room_cache(room_id, access_granted, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET access_granted=excluded.access_granted, updated_at=CURRENT_TIMESTAMP`,
		roomID, val)
	return err
}

// PutVideoURL stores the last known video url for a room.
func (c *Cache) PutVideoURL(ctx context.Context, roomID, videoURL string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO room_cache(room_id, video_url, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET video_url=excluded.video_url, updated_at=CURRENT_TIMESTAMP`,
		roomID, videoURL)
	return err
}

// PutRoster stores the last known roster for a room.
func (c *Cache) PutRoster(ctx context.Context, roomID string, rosterJSON []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO room_cache(room_id, roster_json, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET roster_json=excluded.roster_json, updated_at=CURRENT_TIMESTAMP`,
		roomID, string(rosterJSON))
	return err
}

// Delete drops a room's snapshot, used when the room is deleted
// remotely.
func (c *Cache) Delete(ctx context.Context, roomID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM room_cache WHERE room_id = ?`, roomID)
	return err
}
