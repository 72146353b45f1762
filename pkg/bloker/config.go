package bloker

import "time"

// Config holds the tunables for a game engine. All durations are wall
// clock; the engine itself never reads the clock, callers pass now.
type Config struct {
	// VoteWindow is how long the sides have to submit settings votes
	// before the supervisor fills in defaults and resolves.
	VoteWindow time.Duration

	// BetWindow is how long a betting phase lasts before the
	// supervisor forces the hit-or-stay transition.
	BetWindow time.Duration

	// DefaultNumDecks and DefaultAllowPeek stand in for a missing vote
	// when the vote deadline expires.
	DefaultNumDecks  int
	DefaultAllowPeek bool
}

// DefaultConfig returns the standard match settings.
func DefaultConfig() Config {
	return Config{
		VoteWindow:       60 * time.Second,
		BetWindow:        25 * time.Second,
		DefaultNumDecks:  1,
		DefaultAllowPeek: true,
	}
}
