package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
	"github.com/Mr-Super09/Bloker/pkg/server/internal/db"
)

// Database defines the interface for session persistence. Saves are
// assumed atomic at the granularity of one session record.
type Database interface {
	// SaveSession persists the whole session document.
	SaveSession(sess *bloker.Session) error
	// LoadSession returns bloker.ErrSessionNotFound for unknown ids.
	LoadSession(id string) (*bloker.Session, error)
	DeleteSession(id string) error

	// ListSessionIDs returns every stored session id, for the
	// supervisor sweeps.
	ListSessionIDs() ([]string, error)

	// Close closes the database connection
	Close() error
}

// Ledger records credit movements and match results against a player's
// persistent stats. CreditPot moves credits only; RecordOutcome
// additionally settles a win or loss and is called once per player per
// match.
type Ledger interface {
	CreditPot(playerID string, amount int64) error
	RecordOutcome(playerID string, won bool, creditDelta int64) error
}

// Notifier posts system messages about a session. Posts are
// fire-and-forget; a failed post never rolls back a committed
// transition.
type Notifier interface {
	PostSystemMessage(sessionID, text string) error
}

// Store is the full persistence surface the sqlite backend provides.
type Store interface {
	Database
	Ledger
	Notifier

	// Messages returns the system messages for a session with id
	// greater than afterID, oldest first, for polling clients.
	Messages(sessionID string, afterID int64) ([]db.Message, error)

	// PlayerStats returns the stored win/loss/credit counters.
	PlayerStats(playerID string) (*db.PlayerStats, error)
}

// NewStore opens (creating if missing) the sqlite store at dbPath.
func NewStore(dbPath string) (Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	return db.NewDB(dbPath)
}
