package server

import (
	"context"
	"time"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
)

// Sweep scans every stored session once, forcing expired deadlines and
// deleting finished sessions past retention. Errors on individual
// sessions are logged and do not stop the sweep.
func (s *Server) Sweep(now time.Time) {
	ids, err := s.db.ListSessionIDs()
	if err != nil {
		s.log.Errorf("Failed to list sessions for sweep: %v", err)
		return
	}
	for _, id := range ids {
		if err := s.SweepSession(id, now); err != nil {
			s.log.Errorf("Failed to sweep session %s: %v", id, err)
		}
	}
}

// SweepSession applies any deadline that has expired for a single
// session. It is idempotent: a session with no expired deadline is left
// untouched and nothing is persisted or notified.
func (s *Server) SweepSession(id string, now time.Time) error {
	mu := s.sessionMutex(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.db.LoadSession(id)
	if err != nil {
		if err == bloker.ErrSessionNotFound {
			// Deleted between listing and locking.
			return nil
		}
		return err
	}

	if sess.Finished() {
		if sess.FinishedAt != nil && now.Sub(*sess.FinishedAt) >= s.cfg.FinishedRetention {
			s.log.Debugf("Deleting finished session %s past retention", id)
			if err := s.db.DeleteSession(id); err != nil {
				return err
			}
			s.dropSessionMutex(id)
		}
		return nil
	}

	var tr *bloker.Transition
	switch sess.Phase {
	case bloker.PhaseNegotiating:
		tr, err = s.engine.ForceVoteDeadline(sess, now)
	case bloker.PhaseBetting:
		tr, err = s.engine.ForceBetDeadline(sess, now)
	}
	if err != nil {
		return err
	}
	if tr == nil {
		return nil
	}

	if err := s.db.SaveSession(sess); err != nil {
		return err
	}
	s.applyTransition(sess, tr)
	return nil
}

// RunSupervisor sweeps sessions on the configured interval until ctx
// is cancelled. It is meant to run in its own goroutine.
func (s *Server) RunSupervisor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.log.Infof("Supervisor running, sweep interval %s", s.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("Supervisor stopped")
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
