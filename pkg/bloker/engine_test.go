package bloker

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(seed int64) *Engine {
	return NewEngine(DefaultConfig(), rand.New(rand.NewSource(seed)), nil)
}

// twos returns a reserve of n face-down deuces. Identity does not
// matter for betting and drawing mechanics, value predictability does.
func twos(n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = NewCard(Clubs, Two)
	}
	return cards
}

// bettingSession builds a mid-match session in the betting phase with
// crafted hands (A holds 19, B holds 15) and reserves of deuces.
func bettingSession(reserveA, reserveB int) *Session {
	s := &Session{
		ID:           "s1",
		Phase:        PhaseBetting,
		NumDecks:     1,
		AllowPeek:    true,
		CurrentRound: 1,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	deadline := t0.Add(25 * time.Second)
	s.PhaseDeadline = &deadline
	s.Sides[SideA] = PlayerSide{
		PlayerID: "alice",
		Reserve:  twos(reserveA),
		Hand:     []Card{NewCard(Spades, Ten).Reveal(), NewCard(Hearts, Nine)},
	}
	s.Sides[SideB] = PlayerSide{
		PlayerID: "bob",
		Reserve:  twos(reserveB),
		Hand:     []Card{NewCard(Clubs, Eight).Reveal(), NewCard(Diamonds, Seven)},
	}
	return s
}

// hitStaySession is bettingSession advanced past the reveal: phase
// hit_or_stay, all hand cards face-up, no deadline.
func hitStaySession(reserveA, reserveB int) *Session {
	s := bettingSession(reserveA, reserveB)
	s.Phase = PhaseHitOrStay
	s.PhaseDeadline = nil
	for i := range s.Sides {
		for j := range s.Sides[i].Hand {
			s.Sides[i].Hand[j] = s.Sides[i].Hand[j].Reveal()
		}
	}
	return s
}

// tracked is the conserved quantity: physical cards plus the card
// counts committed as bets and pot. Only fabrication against an empty
// reserve changes it.
func tracked(s *Session) int {
	return s.CardCount() + s.Side(SideA).Bet + s.Side(SideB).Bet + s.Pot
}

func TestSettingsVoteAgreement(t *testing.T) {
	e := newTestEngine(1)
	s := NewSession("s1", "alice", "bob", DefaultConfig(), t0)

	_, err := e.SubmitVote(s, SideA, SettingsVote{NumDecks: 2, AllowPeek: false}, t0)
	require.NoError(t, err)
	require.Equal(t, PhaseNegotiating, s.Phase)

	_, err = e.SubmitVote(s, SideB, SettingsVote{NumDecks: 2, AllowPeek: true}, t0)
	require.NoError(t, err)

	// Decks agreed; peeking disagreed, so the session holds one of the
	// two proposals, stable once chosen.
	require.Equal(t, 2, s.NumDecks)
	peek := s.AllowPeek
	require.Contains(t, []bool{true, false}, peek)
	require.Equal(t, peek, s.AllowPeek)

	require.Equal(t, PhaseBetting, s.Phase)
	require.Equal(t, 1, s.CurrentRound)
	require.NotNil(t, s.PhaseDeadline)
	require.Equal(t, 2*CardsPerDeck, s.CardCount())
	for i := range s.Sides {
		require.Len(t, s.Sides[i].Hand, 2)
		require.True(t, s.Sides[i].Hand[0].FaceUp())
		require.False(t, s.Sides[i].Hand[1].FaceUp())
		require.Len(t, s.Sides[i].Reserve, CardsPerDeck-2)
		require.Nil(t, s.Sides[i].Vote)
	}
}

func TestSettingsVoteDeadlineDefaults(t *testing.T) {
	e := newTestEngine(2)
	s := NewSession("s1", "alice", "bob", DefaultConfig(), t0)

	_, err := e.SubmitVote(s, SideA, SettingsVote{NumDecks: 3, AllowPeek: true}, t0)
	require.NoError(t, err)

	later := t0.Add(DefaultConfig().VoteWindow + time.Second)
	tr, err := e.ForceVoteDeadline(s, later)
	require.NoError(t, err)
	require.NotNil(t, tr)

	// B's missing vote defaulted to 1 deck with peeking; decks
	// disagreed so either proposal may win.
	require.Contains(t, []int{1, 3}, s.NumDecks)
	require.True(t, s.AllowPeek)
	require.Equal(t, PhaseBetting, s.Phase)

	// A second sweep of the already-transitioned session is a no-op.
	tr, err = e.ForceVoteDeadline(s, later)
	require.NoError(t, err)
	require.Nil(t, tr)
}

func TestSettingsVoteValidation(t *testing.T) {
	e := newTestEngine(3)
	s := NewSession("s1", "alice", "bob", DefaultConfig(), t0)

	_, err := e.SubmitVote(s, SideA, SettingsVote{NumDecks: 9, AllowPeek: true}, t0)
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = e.SubmitVote(s, SideA, SettingsVote{NumDecks: 1, AllowPeek: true}, t0)
	require.NoError(t, err)
	_, err = e.SubmitVote(s, SideA, SettingsVote{NumDecks: 2, AllowPeek: true}, t0)
	require.ErrorIs(t, err, ErrVoteAlreadyCast)

	_, err = e.SubmitVote(s, SideB, SettingsVote{NumDecks: 1, AllowPeek: true}, t0)
	require.NoError(t, err)
	require.Equal(t, PhaseBetting, s.Phase)

	_, err = e.SubmitVote(s, SideA, SettingsVote{NumDecks: 1, AllowPeek: true}, t0)
	require.ErrorIs(t, err, ErrWrongPhase)
}

func TestRaiseAndCheckFlow(t *testing.T) {
	e := newTestEngine(4)
	s := bettingSession(10, 10)
	before := tracked(s)

	_, err := e.Bet(s, SideA, BetRaise, 3, t0)
	require.NoError(t, err)
	require.Equal(t, 3, s.Side(SideA).Bet)
	require.Len(t, s.Side(SideA).Reserve, 7)
	require.Equal(t, PhaseBetting, s.Phase)
	require.Equal(t, before, tracked(s))

	_, err = e.Bet(s, SideB, BetCheck, 0, t0)
	require.NoError(t, err)
	require.Equal(t, 3, s.Side(SideB).Bet)
	require.Len(t, s.Side(SideB).Reserve, 7)
	require.Equal(t, PhaseHitOrStay, s.Phase)
	require.Nil(t, s.PhaseDeadline)
	require.Equal(t, before, tracked(s))

	// Peeking was agreed, so every hand card is now face-up.
	for i := range s.Sides {
		for _, c := range s.Sides[i].Hand {
			assert.True(t, c.FaceUp())
		}
	}
}

func TestCheckWithEqualBetsAdvances(t *testing.T) {
	e := newTestEngine(5)
	s := bettingSession(10, 10)

	_, err := e.Bet(s, SideB, BetCheck, 0, t0)
	require.NoError(t, err)
	require.Equal(t, PhaseHitOrStay, s.Phase)
}

func TestCheckInsufficientReserve(t *testing.T) {
	e := newTestEngine(6)
	s := bettingSession(10, 2)

	_, err := e.Bet(s, SideA, BetRaise, 5, t0)
	require.NoError(t, err)

	_, err = e.Bet(s, SideB, BetCheck, 0, t0)
	require.ErrorIs(t, err, ErrInsufficientReserve)

	// The failed call left the session untouched.
	require.Equal(t, 0, s.Side(SideB).Bet)
	require.Len(t, s.Side(SideB).Reserve, 2)
	require.Equal(t, PhaseBetting, s.Phase)
}

func TestRaiseValidation(t *testing.T) {
	e := newTestEngine(7)
	s := bettingSession(10, 10)

	_, err := e.Bet(s, SideA, BetRaise, 0, t0)
	require.ErrorIs(t, err, ErrInvalidRaise)

	_, err = e.Bet(s, SideA, BetRaise, 11, t0)
	require.ErrorIs(t, err, ErrInsufficientReserve)

	_, err = e.Bet(s, SideA, "wager", 1, t0)
	require.Error(t, err)
}

func TestFoldPaysOpponentAndAdvances(t *testing.T) {
	e := newTestEngine(8)
	s := bettingSession(10, 10)
	before := tracked(s)

	_, err := e.Bet(s, SideA, BetRaise, 2, t0)
	require.NoError(t, err)

	tr, err := e.Bet(s, SideB, BetFold, 0, t0)
	require.NoError(t, err)

	// Fold pays the pot to A: fabricated cards replace the committed
	// count, so the tracked total is unchanged. The pot moves as a
	// credit; win/loss stats wait for the match to end.
	require.Contains(t, tr.Credits, Credit{PlayerID: "alice", Amount: 2})
	require.Empty(t, tr.Outcomes)
	require.Equal(t, before, tracked(s))
	require.Equal(t, 0, s.Pot)
	require.Equal(t, 2, s.CurrentRound)
	require.Equal(t, PhaseBetting, s.Phase)
	for i := range s.Sides {
		require.Len(t, s.Sides[i].Hand, 2)
		require.Equal(t, 0, s.Sides[i].Bet)
		require.False(t, s.Sides[i].Folded)
	}
}

func TestForceBetDeadline(t *testing.T) {
	e := newTestEngine(9)
	s := bettingSession(10, 10)

	_, err := e.Bet(s, SideA, BetRaise, 2, t0)
	require.NoError(t, err)

	// Nothing happens before the deadline.
	tr, err := e.ForceBetDeadline(s, t0)
	require.NoError(t, err)
	require.Nil(t, tr)

	later := t0.Add(30 * time.Second)
	tr, err = e.ForceBetDeadline(s, later)
	require.NoError(t, err)
	require.NotNil(t, tr)

	// Forced transition, no forced matching: bets stay unequal.
	require.Equal(t, PhaseHitOrStay, s.Phase)
	require.Equal(t, 2, s.Side(SideA).Bet)
	require.Equal(t, 0, s.Side(SideB).Bet)

	tr, err = e.ForceBetDeadline(s, later)
	require.NoError(t, err)
	require.Nil(t, tr)
}

func TestHitDrawsFaceUpFromOwnReserve(t *testing.T) {
	e := newTestEngine(10)
	s := hitStaySession(10, 10)

	res, _, err := e.Hit(s, SideB, t0)
	require.NoError(t, err)
	require.Equal(t, Two, res.Card.Rank())
	require.True(t, res.Card.FaceUp())
	require.Equal(t, 17, res.Value)
	require.False(t, res.Busted)
	require.Len(t, s.Side(SideB).Hand, 3)
	require.Len(t, s.Side(SideB).Reserve, 9)
	require.Equal(t, PhaseHitOrStay, s.Phase)
}

func TestHitBustReportedOnlyToActor(t *testing.T) {
	e := newTestEngine(11)
	s := hitStaySession(10, 10)
	s.Side(SideA).Reserve = append([]Card{NewCard(Spades, Five)}, s.Side(SideA).Reserve...)

	res, tr, err := e.Hit(s, SideA, t0)
	require.NoError(t, err)
	require.True(t, res.Busted)
	require.Equal(t, 24, res.Value)
	require.True(t, s.Side(SideA).Busted)

	// The bust stays between the engine and the acting side.
	for _, m := range tr.Messages {
		assert.NotContains(t, strings.ToLower(m), "bust")
	}

	// Opponent still has moves, so the round is not resolved.
	require.Equal(t, PhaseHitOrStay, s.Phase)

	_, _, err = e.Hit(s, SideA, t0)
	require.ErrorIs(t, err, ErrSideInactive)
}

func TestHitEmptyReserveNoStakeEndsMatch(t *testing.T) {
	e := newTestEngine(12)
	s := hitStaySession(0, 10)

	res, tr, err := e.Hit(s, SideA, t0)
	require.NoError(t, err)
	require.True(t, res.LostGame)
	require.True(t, tr.GameOver)
	require.Equal(t, PhaseFinished, s.Phase)
	require.NotNil(t, s.Winner)
	require.Equal(t, SideB, *s.Winner)
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "bob", Won: true, CreditDelta: 0})
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "alice", Won: false, CreditDelta: 0})
}

func TestHitEmptyReserveWithBetFabricates(t *testing.T) {
	e := newTestEngine(13)
	s := hitStaySession(0, 10)
	s.Side(SideA).Bet = 2
	s.Side(SideA).Hand = []Card{NewCard(Spades, Two).Reveal(), NewCard(Hearts, Three).Reveal()}
	before := tracked(s)

	res, _, err := e.Hit(s, SideA, t0)
	require.NoError(t, err)
	require.False(t, res.LostGame)
	require.True(t, res.Card.FaceUp())
	require.Len(t, s.Side(SideA).Hand, 3)
	require.Empty(t, s.Side(SideA).Reserve)

	// Fabrication is the one transition that breaks conservation.
	require.Equal(t, before+1, tracked(s))
}

func TestStayHigherValueWins(t *testing.T) {
	e := newTestEngine(14)
	s := hitStaySession(10, 10)
	s.Side(SideA).Bet = 1
	s.Side(SideB).Bet = 1
	before := tracked(s)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)
	require.Equal(t, PhaseHitOrStay, s.Phase)

	tr, err := e.Stay(s, SideB, t0)
	require.NoError(t, err)

	// 19 beats 15: A collects the pot and the next round is dealt.
	require.Contains(t, tr.Credits, Credit{PlayerID: "alice", Amount: 2})
	require.Empty(t, tr.Outcomes)
	require.Equal(t, 0, s.Pot)
	require.Equal(t, 2, s.CurrentRound)
	require.Equal(t, PhaseBetting, s.Phase)
	require.Equal(t, before, tracked(s))
	// Loser kept only what was left of its reserve.
	require.Len(t, s.Side(SideB).Reserve, 8)
	require.Len(t, s.Side(SideB).Hand, 2)
}

func TestDoubleBustDrawsAndPotCarries(t *testing.T) {
	e := newTestEngine(15)
	s := hitStaySession(10, 10)
	s.Side(SideA).Hand = []Card{NewCard(Spades, Ten).Reveal(), NewCard(Hearts, Nine).Reveal(), NewCard(Clubs, Five).Reveal()}
	s.Side(SideA).Busted = true
	s.Side(SideA).Bet = 2
	s.Side(SideB).Bet = 2
	s.Side(SideB).Hand = []Card{NewCard(Clubs, Ten).Reveal(), NewCard(Diamonds, King).Reveal()}
	s.Side(SideB).Reserve = append([]Card{NewCard(Spades, Queen)}, twos(9)...)
	before := tracked(s)

	res, _, err := e.Hit(s, SideB, t0)
	require.NoError(t, err)
	require.True(t, res.Busted)

	// Both busted: the round resolved immediately as a draw, no cards
	// changed owner, the pot carries forward.
	require.Equal(t, 4, s.Pot)
	require.Equal(t, 2, s.CurrentRound)
	require.Equal(t, PhaseBetting, s.Phase)
	require.Equal(t, before, tracked(s))
	require.Len(t, s.Side(SideA).Reserve, 11)
	require.Len(t, s.Side(SideB).Reserve, 10)
}

func TestTiebreakWinnerTakesRound(t *testing.T) {
	e := newTestEngine(16)
	s := hitStaySession(10, 10)
	// Equal hand values, decisive tiebreaker cards on top.
	s.Side(SideB).Hand = []Card{NewCard(Clubs, Jack).Reveal(), NewCard(Diamonds, Nine).Reveal()}
	s.Side(SideA).Reserve = append([]Card{NewCard(Spades, King)}, twos(9)...)
	s.Side(SideB).Reserve = append([]Card{NewCard(Hearts, Queen)}, twos(9)...)
	before := tracked(s)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)
	tr, err := e.Stay(s, SideB, t0)
	require.NoError(t, err)

	// King beats queen: A takes both hands and both tiebreaker cards.
	require.Equal(t, 2, s.CurrentRound)
	require.Equal(t, PhaseBetting, s.Phase)
	require.Equal(t, before, tracked(s))
	// Loser's reserve shrank exactly by its tiebreaker card, then the
	// next round's deal.
	require.Len(t, s.Side(SideB).Reserve, 7)
	require.Len(t, s.Side(SideA).Reserve, 13)
	// No pot, no credit movement, no stats.
	require.Empty(t, tr.Credits)
	require.Empty(t, tr.Outcomes)
}

func TestTiebreakAceBeatsKing(t *testing.T) {
	e := newTestEngine(17)
	s := hitStaySession(10, 10)
	s.Side(SideB).Hand = []Card{NewCard(Clubs, Jack).Reveal(), NewCard(Diamonds, Nine).Reveal()}
	s.Side(SideA).Reserve = append([]Card{NewCard(Spades, King)}, twos(9)...)
	s.Side(SideB).Reserve = append([]Card{NewCard(Hearts, Ace)}, twos(9)...)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)
	_, err = e.Stay(s, SideB, t0)
	require.NoError(t, err)

	// B won the round, so B's reserve gained the spoils.
	require.Len(t, s.Side(SideB).Reserve, 13)
	require.Len(t, s.Side(SideA).Reserve, 7)
}

func TestTiebreakFurtherTieDrawsRound(t *testing.T) {
	e := newTestEngine(18)
	s := hitStaySession(10, 10)
	s.Side(SideB).Hand = []Card{NewCard(Clubs, Jack).Reveal(), NewCard(Diamonds, Nine).Reveal()}
	s.Side(SideA).Reserve = append([]Card{NewCard(Spades, Seven)}, twos(9)...)
	s.Side(SideB).Reserve = append([]Card{NewCard(Hearts, Seven)}, twos(9)...)
	s.Side(SideA).Bet = 1
	s.Side(SideB).Bet = 1
	before := tracked(s)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)
	_, err = e.Stay(s, SideB, t0)
	require.NoError(t, err)

	// Equal sevens: tiebreaker cards returned, round drawn, pot
	// carries. The returned card sits on top and leads the next deal.
	require.Equal(t, 2, s.Pot)
	require.Equal(t, 2, s.CurrentRound)
	require.Equal(t, before, tracked(s))
	require.Equal(t, Seven, s.Side(SideA).Hand[0].Rank())
	require.Equal(t, Seven, s.Side(SideB).Hand[0].Rank())
}

func TestMatchEndsWhenReserveExhausted(t *testing.T) {
	e := newTestEngine(19)
	s := hitStaySession(5, 0)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)
	tr, err := e.Stay(s, SideB, t0)
	require.NoError(t, err)

	// A won the round taking B's hand; B had nothing left.
	require.True(t, tr.GameOver)
	require.Equal(t, PhaseFinished, s.Phase)
	require.NotNil(t, s.Winner)
	require.Equal(t, SideA, *s.Winner)
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "alice", Won: true, CreditDelta: 0})
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "bob", Won: false, CreditDelta: 0})
	require.NotNil(t, s.FinishedAt)
}

func TestLeaveForfeit(t *testing.T) {
	e := newTestEngine(20)
	s := bettingSession(10, 10)
	s.Side(SideA).Bet = 2
	s.Side(SideB).Bet = 1
	s.Pot = 1

	tr, err := e.Leave(s, SideA, t0)
	require.NoError(t, err)
	require.True(t, tr.GameOver)
	require.Equal(t, PhaseFinished, s.Phase)
	require.Equal(t, SideB, *s.Winner)
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "bob", Won: true, CreditDelta: 4})
	require.Contains(t, tr.Outcomes, Outcome{PlayerID: "alice", Won: false, CreditDelta: -2})

	_, err = e.Leave(s, SideB, t0)
	require.ErrorIs(t, err, ErrSessionFinished)
}

func TestHitAfterStayRejected(t *testing.T) {
	e := newTestEngine(22)
	s := hitStaySession(10, 10)

	_, err := e.Stay(s, SideA, t0)
	require.NoError(t, err)

	_, _, err = e.Hit(s, SideA, t0)
	require.ErrorIs(t, err, ErrSideInactive)
}

func TestRoundPotsSettleStatsOnlyAtMatchEnd(t *testing.T) {
	e := newTestEngine(23)
	s := bettingSession(10, 10)

	var credits []Credit
	var outcomes []Outcome
	collect := func(tr *Transition) {
		credits = append(credits, tr.Credits...)
		outcomes = append(outcomes, tr.Outcomes...)
	}

	// Round 1: B folds against a raise, A collects the pot.
	tr, err := e.Bet(s, SideA, BetRaise, 2, t0)
	require.NoError(t, err)
	collect(tr)
	tr, err = e.Bet(s, SideB, BetFold, 0, t0)
	require.NoError(t, err)
	collect(tr)
	require.Equal(t, 2, s.CurrentRound)

	// Round 2: the same again.
	tr, err = e.Bet(s, SideA, BetRaise, 1, t0)
	require.NoError(t, err)
	collect(tr)
	tr, err = e.Bet(s, SideB, BetFold, 0, t0)
	require.NoError(t, err)
	collect(tr)
	require.Equal(t, 3, s.CurrentRound)

	// Two pots moved as credits, no win/loss yet.
	require.Equal(t, []Credit{{PlayerID: "alice", Amount: 2}, {PlayerID: "alice", Amount: 1}}, credits)
	require.Empty(t, outcomes)

	// The forfeit is the one and only win/loss settlement.
	tr, err = e.Leave(s, SideB, t0)
	require.NoError(t, err)
	collect(tr)
	require.Len(t, outcomes, 2)
	require.Contains(t, outcomes, Outcome{PlayerID: "alice", Won: true, CreditDelta: 0})
	require.Contains(t, outcomes, Outcome{PlayerID: "bob", Won: false, CreditDelta: 0})
}

func TestEngineSharedAcrossSessions(t *testing.T) {
	e := newTestEngine(24)
	vote := SettingsVote{NumDecks: 2, AllowPeek: true}

	// One engine serves many sessions at once; only the individual
	// sessions are serialized by the caller.
	errs := make(chan error, 128)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("s%d", n), "alice", "bob", DefaultConfig(), t0)
			if _, err := e.SubmitVote(s, SideA, vote, t0); err != nil {
				errs <- err
				return
			}
			if _, err := e.SubmitVote(s, SideB, vote, t0); err != nil {
				errs <- err
				return
			}
			if s.Phase != PhaseBetting {
				errs <- fmt.Errorf("session %s in phase %s", s.ID, s.Phase)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestActionsRejectedInWrongPhase(t *testing.T) {
	e := newTestEngine(21)
	s := NewSession("s1", "alice", "bob", DefaultConfig(), t0)

	_, err := e.Bet(s, SideA, BetCheck, 0, t0)
	require.ErrorIs(t, err, ErrWrongPhase)
	_, _, err = e.Hit(s, SideA, t0)
	require.ErrorIs(t, err, ErrWrongPhase)
	_, err = e.Stay(s, SideA, t0)
	require.ErrorIs(t, err, ErrWrongPhase)

	b := bettingSession(10, 10)
	_, err = e.Stay(b, SideA, t0)
	require.ErrorIs(t, err, ErrWrongPhase)

	h := hitStaySession(10, 10)
	_, err = e.Bet(h, SideA, BetRaise, 1, t0)
	require.ErrorIs(t, err, ErrWrongPhase)
}
