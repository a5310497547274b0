package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/schoolerbbh/bbh-server/internal/events"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS login_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	username   TEXT    NOT NULL,
	slot       INTEGER NOT NULL,
	logged_in  TIMESTAMP NOT NULL,
	logged_out TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_login_history_account ON login_history(account_id);

CREATE TABLE IF NOT EXISTS account_stats (
	account_id  INTEGER PRIMARY KEY,
	username    TEXT    NOT NULL,
	logins      INTEGER NOT NULL DEFAULT 0,
	rooms_made  INTEGER NOT NULL DEFAULT 0,
	last_seen   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL,
	settings   TEXT    NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// StatsStore records session and room history. It subscribes to the event
// bus and runs entirely on handler goroutines.
type StatsStore struct {
	db     *Database
	logger zerolog.Logger
}

// NewStatsStore creates the stats tables if missing.
func NewStatsStore(database *Database) (*StatsStore, error) {
	if _, err := database.Exec(statsSchema); err != nil {
		return nil, fmt.Errorf("creating stats schema: %w", err)
	}
	return &StatsStore{
		db:     database,
		logger: util.ComponentLogger("stats"),
	}, nil
}

// Register subscribes the store to the lifecycle events it persists.
func (s *StatsStore) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventPlayerLogin, "stats_store", s.onLogin)
	bus.Subscribe(events.EventPlayerLogout, "stats_store", s.onLogout)
	bus.Subscribe(events.EventRoomCreated, "stats_store", s.onRoomCreated)
}

func (s *StatsStore) onLogin(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.PlayerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event.Payload)
	}
	now := time.Now().UTC()

	if _, err := s.db.Exec(
		`INSERT INTO login_history (account_id, username, slot, logged_in) VALUES (?, ?, ?, ?)`,
		p.AccountID, p.Username, p.Slot, now,
	); err != nil {
		return fmt.Errorf("recording login: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO account_stats (account_id, username, logins, last_seen) VALUES (?, ?, 1, ?)
		ON CONFLICT(account_id) DO UPDATE SET logins = logins + 1, last_seen = excluded.last_seen, username = excluded.username`,
		p.AccountID, p.Username, now,
	)
	if err != nil {
		return fmt.Errorf("updating account stats: %w", err)
	}
	return nil
}

func (s *StatsStore) onLogout(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.PlayerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event.Payload)
	}
	now := time.Now().UTC()

	// Close the most recent open login row for the account.
	_, err := s.db.Exec(`
		UPDATE login_history SET logged_out = ?
		WHERE id = (SELECT id FROM login_history WHERE account_id = ? AND logged_out IS NULL ORDER BY id DESC LIMIT 1)`,
		now, p.AccountID,
	)
	if err != nil {
		return fmt.Errorf("recording logout: %w", err)
	}

	if _, err := s.db.Exec(
		`UPDATE account_stats SET last_seen = ? WHERE account_id = ?`, now, p.AccountID,
	); err != nil {
		return fmt.Errorf("updating account stats: %w", err)
	}
	return nil
}

func (s *StatsStore) onRoomCreated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.RoomPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event.Payload)
	}
	if _, err := s.db.Exec(
		`INSERT INTO room_history (name, settings, created_at) VALUES (?, ?, ?)`,
		p.Name, p.Settings, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("recording room creation: %w", err)
	}
	if p.CreatorID != 0 {
		if _, err := s.db.Exec(
			`UPDATE account_stats SET rooms_made = rooms_made + 1 WHERE account_id = ?`, p.CreatorID,
		); err != nil {
			return fmt.Errorf("updating creator stats: %w", err)
		}
	}
	return nil
}

// AccountStats is one row of per-account aggregates.
type AccountStats struct {
	AccountID int        `json:"account_id"`
	Username  string     `json:"username"`
	Logins    int        `json:"logins"`
	RoomsMade int        `json:"rooms_made"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// TopAccounts returns the most frequently seen accounts, most logins first.
func (s *StatsStore) TopAccounts(limit int) ([]AccountStats, error) {
	rows, err := s.db.Query(
		`SELECT account_id, username, logins, rooms_made, last_seen FROM account_stats ORDER BY logins DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying account stats: %w", err)
	}
	defer rows.Close()

	var out []AccountStats
	for rows.Next() {
		var a AccountStats
		if err := rows.Scan(&a.AccountID, &a.Username, &a.Logins, &a.RoomsMade, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning account stats: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LoginRecord is one row of login history.
type LoginRecord struct {
	AccountID int        `json:"account_id"`
	Username  string     `json:"username"`
	Slot      int        `json:"slot"`
	LoggedIn  time.Time  `json:"logged_in"`
	LoggedOut *time.Time `json:"logged_out,omitempty"`
}

// RecentLogins returns the latest login rows, newest first.
func (s *StatsStore) RecentLogins(limit int) ([]LoginRecord, error) {
	rows, err := s.db.Query(
		`SELECT account_id, username, slot, logged_in, logged_out FROM login_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying login history: %w", err)
	}
	defer rows.Close()

	var out []LoginRecord
	for rows.Next() {
		var r LoginRecord
		if err := rows.Scan(&r.AccountID, &r.Username, &r.Slot, &r.LoggedIn, &r.LoggedOut); err != nil {
			return nil, fmt.Errorf("scanning login history: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
