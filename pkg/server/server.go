package server

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
)

// Config holds the tunables for the session server.
type Config struct {
	// Game carries the per-session rule settings and action windows.
	Game bloker.Config

	// SweepInterval is how often the supervisor scans sessions for
	// expired deadlines.
	SweepInterval time.Duration

	// FinishedRetention is how long a finished session stays loadable
	// before the supervisor deletes it.
	FinishedRetention time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Game:              bloker.DefaultConfig(),
		SweepInterval:     2 * time.Second,
		FinishedRetention: 2 * time.Minute,
	}
}

// Server coordinates session persistence, rule transitions and side
// effects. All game logic lives in the engine; the server owns locking,
// storage and fan-out of resulting messages and outcomes.
type Server struct {
	log      slog.Logger
	cfg      Config
	db       Database
	ledger   Ledger
	notifier Notifier
	engine   *bloker.Engine

	// Per-session mutexes serialize the load-mutate-save cycle so two
	// concurrent actions on the same session cannot interleave.
	sessionMutexes map[string]*sync.Mutex
	sessionMu      sync.RWMutex
}

// NewServer creates a session server. ledger and notifier may be the
// same value as db when backed by the sqlite store.
func NewServer(db Database, ledger Ledger, notifier Notifier, cfg Config, log slog.Logger) *Server {
	if log == nil {
		log = slog.Disabled
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Server{
		log:            log,
		cfg:            cfg,
		db:             db,
		ledger:         ledger,
		notifier:       notifier,
		engine:         bloker.NewEngine(cfg.Game, rng, log),
		sessionMutexes: make(map[string]*sync.Mutex),
	}
}

// sessionMutex returns the mutex for a session, creating it on first use.
func (s *Server) sessionMutex(id string) *sync.Mutex {
	s.sessionMu.RLock()
	mu, ok := s.sessionMutexes[id]
	s.sessionMu.RUnlock()
	if ok {
		return mu
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	mu, ok = s.sessionMutexes[id]
	if !ok {
		mu = &sync.Mutex{}
		s.sessionMutexes[id] = mu
	}
	return mu
}

func (s *Server) dropSessionMutex(id string) {
	s.sessionMu.Lock()
	delete(s.sessionMutexes, id)
	s.sessionMu.Unlock()
}

// CreateSession starts a new match between two players and persists it
// in the negotiating phase.
func (s *Server) CreateSession(playerA, playerB string) (*bloker.Session, error) {
	if playerA == "" || playerB == "" {
		return nil, fmt.Errorf("both player ids are required")
	}
	if playerA == playerB {
		return nil, fmt.Errorf("players must be distinct")
	}

	id := uuid.New().String()
	sess := bloker.NewSession(id, playerA, playerB, s.cfg.Game, time.Now())
	if err := s.db.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %v", err)
	}

	s.log.Infof("Created session %s: %s vs %s", id, playerA, playerB)
	s.postMessage(id, fmt.Sprintf("match created, settings vote open for %s", s.cfg.Game.VoteWindow))
	return sess, nil
}

// withSession runs fn against the session under its mutex, persists the
// result and applies the transition's side effects. fn must return the
// transition produced by the engine, or nil when nothing changed.
func (s *Server) withSession(id, callerID string, fn func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error)) (*bloker.Session, error) {
	mu := s.sessionMutex(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.db.LoadSession(id)
	if err != nil {
		return nil, err
	}

	side, ok := sess.SideOf(callerID)
	if !ok {
		return nil, bloker.ErrNotAParticipant
	}

	tr, err := fn(sess, side)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return sess, nil
	}

	if err := s.db.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %v", id, err)
	}

	s.applyTransition(sess, tr)
	return sess, nil
}

// applyTransition fans out the side effects of a committed transition.
// Failures here are logged and never undo the persisted state.
func (s *Server) applyTransition(sess *bloker.Session, tr *bloker.Transition) {
	for _, msg := range tr.Messages {
		s.postMessage(sess.ID, msg)
	}
	for _, c := range tr.Credits {
		if err := s.ledger.CreditPot(c.PlayerID, c.Amount); err != nil {
			s.log.Errorf("Failed to credit pot to %s in session %s: %v", c.PlayerID, sess.ID, err)
		}
	}
	for _, out := range tr.Outcomes {
		if err := s.ledger.RecordOutcome(out.PlayerID, out.Won, out.CreditDelta); err != nil {
			s.log.Errorf("Failed to record outcome for %s in session %s: %v", out.PlayerID, sess.ID, err)
		}
	}
	if tr.GameOver {
		s.log.Infof("Session %s finished after %d rounds", sess.ID, sess.CurrentRound)
	}
}

func (s *Server) postMessage(sessionID, text string) {
	if err := s.notifier.PostSystemMessage(sessionID, text); err != nil {
		s.log.Warnf("Failed to post message to session %s: %v", sessionID, err)
	}
}

// SubmitVote records a player's settings vote. When both votes are in
// the settings resolve and the first round is dealt.
func (s *Server) SubmitVote(sessionID, playerID string, vote bloker.SettingsVote) (*bloker.Session, error) {
	return s.withSession(sessionID, playerID, func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error) {
		return s.engine.SubmitVote(sess, side, vote, time.Now())
	})
}

// Bet applies a betting action for the player.
func (s *Server) Bet(sessionID, playerID string, kind bloker.BetKind, amount int) (*bloker.Session, error) {
	return s.withSession(sessionID, playerID, func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error) {
		return s.engine.Bet(sess, side, kind, amount, time.Now())
	})
}

// Hit draws a card into the player's hand and reports the private
// result to the caller.
func (s *Server) Hit(sessionID, playerID string) (*bloker.Session, *bloker.HitResult, error) {
	var res *bloker.HitResult
	sess, err := s.withSession(sessionID, playerID, func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error) {
		r, tr, err := s.engine.Hit(sess, side, time.Now())
		if err != nil {
			return nil, err
		}
		res = r
		return tr, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, res, nil
}

// Stay freezes the player's hand for the round.
func (s *Server) Stay(sessionID, playerID string) (*bloker.Session, error) {
	return s.withSession(sessionID, playerID, func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error) {
		return s.engine.Stay(sess, side, time.Now())
	})
}

// Leave forfeits the match for the caller.
func (s *Server) Leave(sessionID, playerID string) (*bloker.Session, error) {
	return s.withSession(sessionID, playerID, func(sess *bloker.Session, side bloker.Side) (*bloker.Transition, error) {
		return s.engine.Leave(sess, side, time.Now())
	})
}

// Snapshot returns the session for a participant. The caller is
// responsible for masking hidden cards before showing it to a viewer.
func (s *Server) Snapshot(sessionID, playerID string) (*bloker.Session, error) {
	sess, err := s.db.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := sess.SideOf(playerID); !ok {
		return nil, bloker.ErrNotAParticipant
	}
	return sess, nil
}
