package bloker

import "errors"

// Validation errors leave the session untouched and are reported
// synchronously to the caller. Terminal game endings (a reserve
// exhausted with no bet to cover a hit) are not errors; they are state
// transitions reported through the transition result.
var (
	// ErrWrongPhase means the action is not legal in the session's
	// current phase.
	ErrWrongPhase = errors.New("action not legal in current phase")

	// ErrSideInactive means the acting side has folded, busted or
	// already stayed and may no longer act this round.
	ErrSideInactive = errors.New("side has folded, busted or stayed")

	// ErrInsufficientReserve means the side's reserve cannot cover the
	// cards the action requires.
	ErrInsufficientReserve = errors.New("reserve has too few cards")

	// ErrInvalidRaise means the raise amount is zero or negative.
	ErrInvalidRaise = errors.New("raise amount must be positive")

	// ErrVoteAlreadyCast means the side already submitted its settings
	// vote for this negotiation.
	ErrVoteAlreadyCast = errors.New("settings vote already cast")

	// ErrInvalidVote means the settings vote proposes values outside
	// the allowed bounds.
	ErrInvalidVote = errors.New("settings vote out of bounds")

	// ErrSessionFinished means the session has already ended.
	ErrSessionFinished = errors.New("session is finished")

	// ErrNotAParticipant means the caller is neither side of the
	// session.
	ErrNotAParticipant = errors.New("caller is not a participant")

	// ErrSessionNotFound means no session exists with the given id.
	ErrSessionNotFound = errors.New("session not found")
)
