package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// Message is a stored system message in a session's feed.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerStats holds the persistent per-player counters.
type PlayerStats struct {
	PlayerID string `json:"player_id"`
	Wins     int64  `json:"wins"`
	Losses   int64  `json:"losses"`
	Credits  int64  `json:"credits"`
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary database tables
func createTables(db *sql.DB) error {
	// Sessions are stored as a JSON document keyed by id; the phase and
	// timestamps are duplicated in columns for cheap filtering.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Create players table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			credits INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (player_id) REFERENCES players(id)
		)
	`)
	if err != nil {
		return err
	}

	// Create messages table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	return nil
}

// SaveSession serializes and upserts the session document.
func (db *DB) SaveSession(sess *bloker.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %v", sess.ID, err)
	}

	var finishedAt interface{}
	if sess.FinishedAt != nil {
		finishedAt = *sess.FinishedAt
	}

	_, err = db.Exec(`
		INSERT INTO sessions (id, phase, data, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			data = excluded.data,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at
	`, sess.ID, string(sess.Phase), string(data), sess.UpdatedAt, finishedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %v", sess.ID, err)
	}
	return nil
}

// LoadSession returns the stored session, or bloker.ErrSessionNotFound.
func (db *DB) LoadSession(id string) (*bloker.Session, error) {
	var data string
	err := db.QueryRow("SELECT data FROM sessions WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, bloker.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %v", id, err)
	}

	var sess bloker.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to deserialize session %s: %v", id, err)
	}
	return &sess, nil
}

// DeleteSession removes the session and its message feed.
func (db *DB) DeleteSession(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session %s: %v", id, err)
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages for session %s: %v", id, err)
	}
	return tx.Commit()
}

// ListSessionIDs returns every stored session id.
func (db *DB) ListSessionIDs() ([]string, error) {
	rows, err := db.Query("SELECT id FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreditPot moves a round pot's credit equivalent to a player without
// touching the win/loss counters.
func (db *DB) CreditPot(playerID string, amount int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO players (id, credits)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET credits = credits + ?
	`, playerID, amount, amount)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO transactions (player_id, amount, type, description)
		VALUES (?, ?, ?, ?)
	`, playerID, amount, "pot", "round pot")
	if err != nil {
		return err
	}

	return tx.Commit()
}

// RecordOutcome bumps a player's win/loss counters, moves credits and
// records the transaction.
func (db *DB) RecordOutcome(playerID string, won bool, creditDelta int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}

	_, err = tx.Exec(`
		INSERT INTO players (id, wins, losses, credits)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			wins = wins + ?,
			losses = losses + ?,
			credits = credits + ?
	`, playerID, wins, losses, creditDelta, wins, losses, creditDelta)
	if err != nil {
		return err
	}

	txType := "loss"
	if won {
		txType = "win"
	}
	_, err = tx.Exec(`
		INSERT INTO transactions (player_id, amount, type, description)
		VALUES (?, ?, ?, ?)
	`, playerID, creditDelta, txType, "match result")
	if err != nil {
		return err
	}

	return tx.Commit()
}

// PlayerStats returns the stored counters for a player. Unknown players
// get zeroed stats rather than an error.
func (db *DB) PlayerStats(playerID string) (*PlayerStats, error) {
	stats := &PlayerStats{PlayerID: playerID}
	err := db.QueryRow(
		"SELECT wins, losses, credits FROM players WHERE id = ?", playerID,
	).Scan(&stats.Wins, &stats.Losses, &stats.Credits)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %v", err)
	}
	return stats, nil
}

// PostSystemMessage appends a message to the session's feed.
func (db *DB) PostSystemMessage(sessionID, text string) error {
	_, err := db.Exec(`
		INSERT INTO messages (session_id, body)
		VALUES (?, ?)
	`, sessionID, text)
	if err != nil {
		return fmt.Errorf("failed to post message: %v", err)
	}
	return nil
}

// Messages returns the feed for a session with id greater than afterID,
// oldest first.
func (db *DB) Messages(sessionID string, afterID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, session_id, body, created_at
		FROM messages
		WHERE session_id = ? AND id > ?
		ORDER BY id ASC
	`, sessionID, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %v", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
