package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
	"mkobal/avtowatch/services/store/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	log *logger.Logger
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at dsn and applies pending
// migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStorage("store", "open database", err)
	}

	// The modernc driver gives every pooled connection its own view of
	// ":memory:", and concurrent writers trip SQLITE_BUSY on files.
	// One connection serves both cases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.NewStorage("store", "set WAL mode", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, errors.NewStorage("store", "apply migrations", err)
	}

	return &SQLite{db: db, log: logger.ForStore()}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertUser creates or replaces the record for u.UserID. The seeded
// flag and created_at survive ordinary updates; a filter change resets
// the user to an unseeded state with an empty seen set and forces the
// first-cycle notification so the new baseline gets announced.
func (s *SQLite) UpsertUser(ctx context.Context, u *model.User) (UpsertOutcome, error) {
	var out UpsertOutcome

	filters, err := u.Filters.Canonical()
	if err != nil {
		return out, errors.NewStorage("store", "encode filters", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, errors.NewStorage("store", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prevFilters string
	var prevActive int
	err = tx.QueryRowContext(ctx,
		`SELECT filters, is_active FROM users WHERE user_id = ?`, u.UserID,
	).Scan(&prevFilters, &prevActive)
	switch {
	case err == sql.ErrNoRows:
		out.Created = true
	case err != nil:
		return out, errors.NewStorage("store", "read existing user", err)
	default:
		out.Reactivated = prevActive == 0
		out.FiltersChanged = prevFilters != filters
	}

	notify := u.NotifyOnFirstCycle
	if out.FiltersChanged {
		notify = true
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (user_id, pushover_api_token, pushover_user_key, filters, is_active, notify_on_first_cycle, seeded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, 0, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     pushover_api_token = excluded.pushover_api_token,
		     pushover_user_key = excluded.pushover_user_key,
		     filters = excluded.filters,
		     is_active = 1,
		     notify_on_first_cycle = excluded.notify_on_first_cycle,
		     updated_at = excluded.updated_at`,
		u.UserID, u.Credentials.APIToken, u.Credentials.UserKey, filters, boolToInt(notify), now, now,
	)
	if err != nil {
		return out, errors.NewStorage("store", "upsert user", err)
	}

	if out.FiltersChanged {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seen_listings WHERE user_id = ?`, u.UserID); err != nil {
			return out, errors.NewStorage("store", "clear seen listings", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET seeded = 0 WHERE user_id = ?`, u.UserID); err != nil {
			return out, errors.NewStorage("store", "reset seeded flag", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return out, errors.NewStorage("store", "commit upsert", err)
	}

	s.log.Info().
		Str("user_id", u.UserID).
		Bool("created", out.Created).
		Bool("filters_changed", out.FiltersChanged).
		Msg("User upserted")
	return out, nil
}

// GetUser returns the active user with the given id.
func (s *SQLite) GetUser(ctx context.Context, userID string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, pushover_api_token, pushover_user_key, filters, is_active, notify_on_first_cycle, seeded, created_at, updated_at
		 FROM users WHERE user_id = ? AND is_active = 1`, userID,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewStorage("store", "read user", err)
	}
	return u, nil
}

// ActiveUsers returns all active users ordered by user id.
func (s *SQLite) ActiveUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, pushover_api_token, pushover_user_key, filters, is_active, notify_on_first_cycle, seeded, created_at, updated_at
		 FROM users WHERE is_active = 1 ORDER BY user_id`,
	)
	if err != nil {
		return nil, errors.NewStorage("store", "query active users", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.NewStorage("store", "scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("store", "iterate users", err)
	}
	return users, nil
}

// DeactivateUser soft-deletes the user. The record and its seen set
// stay behind so a later registration picks up where it left off.
func (s *SQLite) DeactivateUser(ctx context.Context, userID string) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = 0, updated_at = ? WHERE user_id = ?`, now, userID,
	)
	if err != nil {
		return errors.NewStorage("store", "deactivate user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorage("store", "deactivate user", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info().Str("user_id", userID).Msg("User deactivated")
	return nil
}

// SetNotifyOnFirstCycle flips the first-cycle notification flag.
func (s *SQLite) SetNotifyOnFirstCycle(ctx context.Context, userID string, v bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET notify_on_first_cycle = ? WHERE user_id = ?`, boolToInt(v), userID,
	)
	if err != nil {
		return errors.NewStorage("store", "set notify flag", err)
	}
	return nil
}

// MarkSeeded records that the user's first cycle completed.
func (s *SQLite) MarkSeeded(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET seeded = 1 WHERE user_id = ?`, userID,
	)
	if err != nil {
		return errors.NewStorage("store", "mark seeded", err)
	}
	return nil
}

// SeenHashes returns the user's seen set keyed by listing hash.
func (s *SQLite) SeenHashes(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_hash FROM seen_listings WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, errors.NewStorage("store", "query seen hashes", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.NewStorage("store", "scan seen hash", err)
		}
		seen[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("store", "iterate seen hashes", err)
	}
	return seen, nil
}

// RecordSeen adds listings to the user's seen set. INSERT OR IGNORE
// keeps the first recorded payload for a hash, so replays are harmless.
func (s *SQLite) RecordSeen(ctx context.Context, userID string, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage("store", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO seen_listings (user_id, listing_hash, payload, first_seen_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return errors.NewStorage("store", "prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, l := range listings {
		payload, err := json.Marshal(l)
		if err != nil {
			return errors.NewStorage("store", "encode listing", err)
		}
		if _, err := stmt.ExecContext(ctx, userID, l.Hash, string(payload), now); err != nil {
			return errors.NewStorage("store", "record seen listing", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("store", "commit seen listings", err)
	}
	return nil
}

// SeenCount returns the size of the user's seen set.
func (s *SQLite) SeenCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_listings WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, errors.NewStorage("store", "count seen listings", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var filters, created, updated string
	var isActive, notify, seeded int
	err := row.Scan(&u.UserID, &u.Credentials.APIToken, &u.Credentials.UserKey,
		&filters, &isActive, &notify, &seeded, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filters), &u.Filters); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	u.IsActive = isActive == 1
	u.NotifyOnFirstCycle = notify == 1
	u.Seeded = seeded == 1
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	u.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &u, nil
}
