package bloker

import (
	"time"
)

// Side identifies one of the two participants of a session.
type Side int

const (
	SideA Side = iota
	SideB
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// String returns "A" or "B".
func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Phase enumerates the session states. Revealing and tiebreak resolve
// within a single transition and are never stored.
type Phase string

const (
	PhaseNegotiating Phase = "negotiating_settings"
	PhaseBetting     Phase = "betting"
	PhaseRevealing   Phase = "revealing"
	PhaseHitOrStay   Phase = "hit_or_stay"
	PhaseTiebreak    Phase = "tiebreak"
	PhaseFinished    Phase = "finished"
)

// SettingsVote is one side's proposal for the match settings.
type SettingsVote struct {
	NumDecks  int  `json:"num_decks"`
	AllowPeek bool `json:"allow_peek"`
}

// PlayerSide holds one participant's cards, stake and per-round flags.
type PlayerSide struct {
	PlayerID string `json:"player_id"`

	// Reserve is the personal face-down pile the side draws from and
	// bets from. Depletion is a loss condition.
	Reserve []Card `json:"reserve"`

	// Hand is the cards in play for the current round.
	Hand []Card `json:"hand"`

	// Bet counts the cards committed to the pot this round. Cards
	// leave the reserve at bet time and exist only as this count until
	// the pot pays out.
	Bet int `json:"bet"`

	// Per-round transient flags, reset at the start of each round.
	Folded bool `json:"folded"`
	Busted bool `json:"busted"`
	Ready  bool `json:"ready"`

	// Vote is the side's settings vote, present only during
	// negotiation.
	Vote *SettingsVote `json:"vote,omitempty"`
}

// resetForRound clears the per-round transient state.
func (p *PlayerSide) resetForRound() {
	p.Hand = make([]Card, 0, 4)
	p.Bet = 0
	p.Folded = false
	p.Busted = false
	p.Ready = false
}

// Session is the aggregate root for one match between two sides. It is
// mutated exclusively through Engine transition functions and
// serialized as a whole at the persistence boundary.
type Session struct {
	ID    string        `json:"id"`
	Sides [2]PlayerSide `json:"sides"`

	Pot   int   `json:"pot"`
	Phase Phase `json:"phase"`

	NumDecks  int  `json:"num_decks"`
	AllowPeek bool `json:"allow_peek"`

	// PhaseDeadline is when the supervisor may force the current
	// phase's transition. Nil when the phase has no deadline.
	PhaseDeadline *time.Time `json:"phase_deadline,omitempty"`

	CurrentRound int   `json:"current_round"`
	Winner       *Side `json:"winner,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewSession creates a session in the settings negotiation phase. The
// vote deadline is set by the caller via cfg so the supervisor can
// force resolution.
func NewSession(id, playerA, playerB string, cfg Config, now time.Time) *Session {
	deadline := now.Add(cfg.VoteWindow)
	s := &Session{
		ID:            id,
		Phase:         PhaseNegotiating,
		PhaseDeadline: &deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Sides[SideA] = PlayerSide{PlayerID: playerA}
	s.Sides[SideB] = PlayerSide{PlayerID: playerB}
	return s
}

// Side returns the mutable state of the given side.
func (s *Session) Side(side Side) *PlayerSide {
	return &s.Sides[side]
}

// SideOf resolves a player id to a side.
func (s *Session) SideOf(playerID string) (Side, bool) {
	switch playerID {
	case s.Sides[SideA].PlayerID:
		return SideA, true
	case s.Sides[SideB].PlayerID:
		return SideB, true
	}
	return 0, false
}

// Finished reports whether the session has ended.
func (s *Session) Finished() bool {
	return s.Phase == PhaseFinished
}

// DeadlineExpired reports whether the current phase deadline has
// passed.
func (s *Session) DeadlineExpired(now time.Time) bool {
	return s.PhaseDeadline != nil && now.After(*s.PhaseDeadline)
}

// CardCount sums the physically tracked cards: both reserves and both
// hands. Bets and the pot are counts, not cards, so they do not appear
// here. The total is invariant across every transition that does not
// fabricate payout cards.
func (s *Session) CardCount() int {
	return len(s.Sides[SideA].Reserve) + len(s.Sides[SideA].Hand) +
		len(s.Sides[SideB].Reserve) + len(s.Sides[SideB].Hand)
}

// finish marks the session over with the given winner.
func (s *Session) finish(winner *Side, now time.Time) {
	s.Phase = PhaseFinished
	s.Winner = winner
	s.PhaseDeadline = nil
	s.FinishedAt = &now
}
