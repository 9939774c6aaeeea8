package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session represents one recording trip. EndTime is nil while the trip is
// still being recorded.
type Session struct {
	ID        int64      `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// InsertSession creates a new session row with a null end_time and returns
// the storage-assigned id. The id is valid and queryable as soon as this
// returns.
func (db *DB) InsertSession(startTime time.Time) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO sessions (start_time) VALUES (?)`,
		formatTime(startTime),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session id: %w", err)
	}
	return id, nil
}

// CloseSession sets end_time on exactly one session row. Closing an unknown
// id returns ErrSessionNotFound. A second close overwrites end_time, which
// keeps retries safe.
func (db *DB) CloseSession(id int64, endTime time.Time) error {
	result, err := db.Exec(
		`UPDATE sessions SET end_time = ? WHERE id = ?`,
		formatTime(endTime), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check close of session %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("close session %d: %w", id, ErrSessionNotFound)
	}
	return nil
}

// Session fetches a single session by id.
func (db *DB) Session(id int64) (*Session, error) {
	row := db.QueryRow(
		`SELECT id, start_time, end_time FROM sessions WHERE id = ?`, id,
	)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	return s, err
}

// ActiveSession returns the session with a null end_time, or nil if no
// recording is in progress. The state machine guarantees at most one.
func (db *DB) ActiveSession() (*Session, error) {
	row := db.QueryRow(
		`SELECT id, start_time, end_time FROM sessions WHERE end_time IS NULL ORDER BY id DESC LIMIT 1`,
	)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT id, start_time, end_time FROM sessions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s       Session
		start   string
		end     sql.NullString
	)
	if err := r.Scan(&s.ID, &start, &end); err != nil {
		return nil, err
	}

	startTime, err := parseTime(start)
	if err != nil {
		return nil, err
	}
	s.StartTime = startTime

	if end.Valid {
		endTime, err := parseTime(end.String)
		if err != nil {
			return nil, err
		}
		s.EndTime = &endTime
	}
	return &s, nil
}
