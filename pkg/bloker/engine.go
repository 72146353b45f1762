package bloker

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
)

// BetKind enumerates the betting-phase actions.
type BetKind string

const (
	BetFold  BetKind = "fold"
	BetCheck BetKind = "check"
	BetRaise BetKind = "raise"
)

// Outcome is one terminal win/loss entry for the external stats
// ledger, emitted only when a match ends.
type Outcome struct {
	PlayerID    string
	Won         bool
	CreditDelta int64
}

// Credit is a mid-match credit movement, a round pot paying out. It
// carries no win or loss.
type Credit struct {
	PlayerID string
	Amount   int64
}

// Transition carries the side effects of a state transition: system
// messages to announce, pot credits to move and terminal outcomes to
// record. Callers persist the session first, then apply these.
type Transition struct {
	Messages []string
	Credits  []Credit
	Outcomes []Outcome

	// GameOver is set when the transition ended the session.
	GameOver bool
}

func (t *Transition) sayf(format string, args ...interface{}) {
	t.Messages = append(t.Messages, fmt.Sprintf(format, args...))
}

func (t *Transition) credit(playerID string, amount int64) {
	t.Credits = append(t.Credits, Credit{PlayerID: playerID, Amount: amount})
}

func (t *Transition) record(playerID string, won bool, delta int64) {
	t.Outcomes = append(t.Outcomes, Outcome{PlayerID: playerID, Won: won, CreditDelta: delta})
}

// HitResult is returned to the acting side only. Bust and loss are
// deliberately not broadcast through Transition messages.
type HitResult struct {
	Card   Card
	Value  int
	Busted bool

	// LostGame is set when the hit ended the session because the
	// reserve was empty with no bet to draw against. This is an
	// informational result, not an error: the state change has been
	// committed.
	LostGame bool
}

// Engine owns the round state machine. It is stateless apart from its
// configuration and rng; all game state lives in the Session it is
// handed. The caller is responsible for per-session serialization of
// calls.
type Engine struct {
	cfg Config
	log slog.Logger

	// rng is shared by every session the engine serves. Callers only
	// serialize per session, so rng access must hold rngMu.
	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewEngine creates an engine with the given configuration and random
// number generator. A nil log disables logging.
func NewEngine(cfg Config, rng *rand.Rand, log slog.Logger) *Engine {
	if log == nil {
		log = slog.Disabled
	}
	return &Engine{cfg: cfg, rng: rng, log: log}
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) fabricateCard() Card {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return randomCard(e.rng)
}

func (e *Engine) buildDeck(numDecks int) (*Deck, error) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return NewDeck(numDecks, e.rng)
}

// SubmitVote records one side's settings vote. When the second vote
// lands the settings resolve immediately and the first round is dealt.
func (e *Engine) SubmitVote(s *Session, side Side, vote SettingsVote, now time.Time) (*Transition, error) {
	if s.Finished() {
		return nil, ErrSessionFinished
	}
	if s.Phase != PhaseNegotiating {
		return nil, ErrWrongPhase
	}
	if vote.NumDecks < MinDecks || vote.NumDecks > MaxDecks {
		return nil, fmt.Errorf("numDecks must be between %d and %d: %w", MinDecks, MaxDecks, ErrInvalidVote)
	}
	ps := s.Side(side)
	if ps.Vote != nil {
		return nil, ErrVoteAlreadyCast
	}

	ps.Vote = &vote
	tr := &Transition{}
	tr.sayf("Side %s voted on the match settings", side)

	if s.Side(side.Other()).Vote != nil {
		e.resolveSettings(s, tr, now)
	}
	s.UpdatedAt = now
	return tr, nil
}

// ForceVoteDeadline fills missing votes with defaults and resolves the
// settings. It is a no-op unless the session is still negotiating and
// the deadline has passed, so repeated sweeps are safe.
func (e *Engine) ForceVoteDeadline(s *Session, now time.Time) (*Transition, error) {
	if s.Phase != PhaseNegotiating {
		return nil, nil
	}
	if !s.DeadlineExpired(now) {
		return nil, nil
	}

	def := SettingsVote{NumDecks: e.cfg.DefaultNumDecks, AllowPeek: e.cfg.DefaultAllowPeek}
	for i := range s.Sides {
		if s.Sides[i].Vote == nil {
			v := def
			s.Sides[i].Vote = &v
		}
	}

	tr := &Transition{}
	tr.sayf("Settings vote timed out, missing votes defaulted")
	e.resolveSettings(s, tr, now)
	s.UpdatedAt = now
	return tr, nil
}

// resolveSettings computes the final settings from both votes. Each
// field independently takes the agreed value, or one side's value
// picked uniformly at random on disagreement.
func (e *Engine) resolveSettings(s *Session, tr *Transition, now time.Time) {
	va := *s.Side(SideA).Vote
	vb := *s.Side(SideB).Vote

	s.NumDecks = va.NumDecks
	if va.NumDecks != vb.NumDecks && e.intn(2) == 1 {
		s.NumDecks = vb.NumDecks
	}
	s.AllowPeek = va.AllowPeek
	if va.AllowPeek != vb.AllowPeek && e.intn(2) == 1 {
		s.AllowPeek = vb.AllowPeek
	}

	s.Side(SideA).Vote = nil
	s.Side(SideB).Vote = nil

	peek := "peeking allowed"
	if !s.AllowPeek {
		peek = "no peeking"
	}
	tr.sayf("Match settings: %d deck(s), %s", s.NumDecks, peek)
	e.log.Debugf("session %s settings resolved: decks=%d peek=%v", s.ID, s.NumDecks, s.AllowPeek)

	deck, err := e.buildDeck(s.NumDecks)
	if err != nil {
		// Votes are validated on submission and defaults are in range,
		// so this cannot happen with a consistent session.
		panic(fmt.Sprintf("bloker: building deck with agreed settings: %v", err))
	}
	s.Sides[SideA].Reserve, s.Sides[SideB].Reserve = deck.SplitReserves()

	e.startRound(s, tr, now)
}

// startRound deals a fresh round: two cards from each side's own
// reserve, the first face-up and the second face-down, transient flags
// cleared and a new betting deadline. A side whose reserve cannot cover
// the deal loses the match on the spot.
func (e *Engine) startRound(s *Session, tr *Transition, now time.Time) {
	s.CurrentRound++

	for _, side := range []Side{SideA, SideB} {
		ps := s.Side(side)
		ps.resetForRound()
		for i := 0; i < 2; i++ {
			card, rest, ok := popReserve(ps.Reserve)
			if !ok {
				tr.sayf("Side %s cannot cover the deal", side)
				e.finishSession(s, tr, side.Other(), 0, 0, now)
				return
			}
			ps.Reserve = rest
			if i == 0 {
				card = card.Reveal()
			}
			ps.Hand = append(ps.Hand, card)
		}
	}

	deadline := now.Add(e.cfg.BetWindow)
	s.Phase = PhaseBetting
	s.PhaseDeadline = &deadline
	tr.sayf("Round %d: place your bets", s.CurrentRound)
}

// Bet performs a betting-phase action for one side.
func (e *Engine) Bet(s *Session, side Side, kind BetKind, amount int, now time.Time) (*Transition, error) {
	if s.Finished() {
		return nil, ErrSessionFinished
	}
	if s.Phase != PhaseBetting {
		return nil, ErrWrongPhase
	}
	ps := s.Side(side)
	if ps.Folded {
		return nil, ErrSideInactive
	}

	tr := &Transition{}
	switch kind {
	case BetFold:
		ps.Folded = true
		tr.sayf("Side %s folds", side)
		e.awardRound(s, tr, side.Other(), now)

	case BetCheck:
		opp := s.Side(side.Other())
		if diff := opp.Bet - ps.Bet; diff > 0 {
			if len(ps.Reserve) < diff {
				return nil, fmt.Errorf("need %d cards to call: %w", diff, ErrInsufficientReserve)
			}
			ps.Reserve = ps.Reserve[diff:]
			ps.Bet += diff
			tr.sayf("Side %s calls %d", side, diff)
		} else {
			tr.sayf("Side %s checks", side)
		}
		if ps.Bet == opp.Bet {
			e.beginHitOrStay(s, tr)
		}

	case BetRaise:
		if amount <= 0 {
			return nil, ErrInvalidRaise
		}
		if len(ps.Reserve) < amount {
			return nil, fmt.Errorf("need %d cards to raise: %w", amount, ErrInsufficientReserve)
		}
		ps.Reserve = ps.Reserve[amount:]
		ps.Bet += amount
		tr.sayf("Side %s raises %d", side, amount)

	default:
		return nil, fmt.Errorf("unknown bet kind %q", kind)
	}

	s.UpdatedAt = now
	return tr, nil
}

// ForceBetDeadline ends an expired betting phase without forced
// matching, mirroring the check-success reveal path. It is a no-op
// unless the session is betting with a passed deadline, so repeated
// sweeps are safe.
func (e *Engine) ForceBetDeadline(s *Session, now time.Time) (*Transition, error) {
	if s.Phase != PhaseBetting {
		return nil, nil
	}
	if !s.DeadlineExpired(now) {
		return nil, nil
	}

	tr := &Transition{}
	tr.sayf("Betting time expired")
	e.beginHitOrStay(s, tr)
	s.UpdatedAt = now
	return tr, nil
}

// beginHitOrStay transitions betting to hit-or-stay, flipping every
// face-down card in both hands when peeking was agreed. The engine only
// tracks the absolute face-up bit; per-viewer visibility is the API
// layer's concern.
func (e *Engine) beginHitOrStay(s *Session, tr *Transition) {
	if s.AllowPeek {
		for i := range s.Sides {
			for j, c := range s.Sides[i].Hand {
				if !c.FaceUp() {
					s.Sides[i].Hand[j] = c.Reveal()
				}
			}
		}
		tr.sayf("All cards revealed")
	}
	s.Phase = PhaseHitOrStay
	s.PhaseDeadline = nil
	tr.sayf("Hit or stay")
}

// Hit draws one face-up card from the acting side's reserve into its
// hand. Against an empty reserve: with no bet the side loses the match
// outright; with a live bet a random card is fabricated in lieu of the
// draw. Bust is reported only through the returned HitResult.
func (e *Engine) Hit(s *Session, side Side, now time.Time) (*HitResult, *Transition, error) {
	if s.Finished() {
		return nil, nil, ErrSessionFinished
	}
	if s.Phase != PhaseHitOrStay {
		return nil, nil, ErrWrongPhase
	}
	ps := s.Side(side)
	if ps.Folded || ps.Busted || ps.Ready {
		return nil, nil, ErrSideInactive
	}

	tr := &Transition{}
	card, rest, ok := popReserve(ps.Reserve)
	if !ok {
		if ps.Bet == 0 {
			tr.sayf("Side %s has run out of cards", side)
			e.finishSession(s, tr, side.Other(), 0, 0, now)
			s.UpdatedAt = now
			return &HitResult{LostGame: true}, tr, nil
		}
		// Drawing against the committed bet: fabricate a replacement.
		card = e.fabricateCard()
	} else {
		ps.Reserve = rest
	}

	card = card.Reveal()
	ps.Hand = append(ps.Hand, card)
	tr.sayf("Side %s hits", side)

	value := HandValue(ps.Hand)
	res := &HitResult{Card: card, Value: value}
	if value > blackjackTarget {
		ps.Busted = true
		res.Busted = true
	}

	if e.bothDone(s) {
		e.resolveRound(s, tr, now)
	}
	s.UpdatedAt = now
	return res, tr, nil
}

// Stay marks the acting side done for the round. The round resolves
// once both sides are done (stayed, busted or folded).
func (e *Engine) Stay(s *Session, side Side, now time.Time) (*Transition, error) {
	if s.Finished() {
		return nil, ErrSessionFinished
	}
	if s.Phase != PhaseHitOrStay {
		return nil, ErrWrongPhase
	}
	ps := s.Side(side)
	if ps.Folded || ps.Busted {
		return nil, ErrSideInactive
	}

	ps.Ready = true
	tr := &Transition{}
	tr.sayf("Side %s stays", side)

	if e.bothDone(s) {
		e.resolveRound(s, tr, now)
	}
	s.UpdatedAt = now
	return tr, nil
}

// bothDone reports whether every side has finished acting this round.
// A busted side cannot stay, so bust counts as done; a double bust
// resolves without explicit stays.
func (e *Engine) bothDone(s *Session) bool {
	for i := range s.Sides {
		ps := &s.Sides[i]
		if !ps.Ready && !ps.Busted && !ps.Folded {
			return false
		}
	}
	return true
}

// Leave forfeits the match for the acting side at any point before the
// session finishes. The opponent collects the full pot as credits; the
// leaver is debited their committed bet.
func (e *Engine) Leave(s *Session, side Side, now time.Time) (*Transition, error) {
	if s.Finished() {
		return nil, ErrSessionFinished
	}

	winner := side.Other()
	total := int64(s.Pot + s.Side(SideA).Bet + s.Side(SideB).Bet)
	forfeited := int64(s.Side(side).Bet)

	tr := &Transition{}
	tr.sayf("Side %s forfeits the match", side)
	tr.sayf("Side %s wins the match", winner)
	tr.record(s.Side(winner).PlayerID, true, total)
	tr.record(s.Side(side).PlayerID, false, -forfeited)
	tr.GameOver = true
	s.finish(&winner, now)
	s.UpdatedAt = now
	return tr, nil
}

// resolveRound settles a round where both sides are done: bust flags
// first, then hand values, then the single-card tiebreaker.
func (e *Engine) resolveRound(s *Session, tr *Transition, now time.Time) {
	a := s.Side(SideA)
	b := s.Side(SideB)

	switch {
	case a.Busted && b.Busted:
		tr.sayf("Both sides bust, the round is a draw")
		e.drawRound(s, tr, now)
	case a.Busted:
		tr.sayf("Side %s busts", SideA)
		e.awardRound(s, tr, SideB, now)
	case b.Busted:
		tr.sayf("Side %s busts", SideB)
		e.awardRound(s, tr, SideA, now)
	default:
		va, vb := HandValue(a.Hand), HandValue(b.Hand)
		switch {
		case va > vb:
			e.awardRound(s, tr, SideA, now)
		case vb > va:
			e.awardRound(s, tr, SideB, now)
		default:
			e.tiebreak(s, tr, now)
		}
	}
}

// tiebreak draws one face-up card from each reserve and compares ranks
// ace-high. The winner takes both tiebreaker cards with the round; a
// further tie returns them and draws the round. A side that cannot draw
// a tiebreaker concedes the round.
func (e *Engine) tiebreak(s *Session, tr *Transition, now time.Time) {
	a := s.Side(SideA)
	b := s.Side(SideB)

	ca, restA, okA := popReserve(a.Reserve)
	cb, restB, okB := popReserve(b.Reserve)
	switch {
	case !okA && !okB:
		tr.sayf("Neither side can draw a tiebreaker, the round is a draw")
		e.drawRound(s, tr, now)
		return
	case !okA:
		tr.sayf("Side %s cannot draw a tiebreaker", SideA)
		e.awardRound(s, tr, SideB, now)
		return
	case !okB:
		tr.sayf("Side %s cannot draw a tiebreaker", SideB)
		e.awardRound(s, tr, SideA, now)
		return
	}
	a.Reserve = restA
	b.Reserve = restB

	ca = ca.Reveal()
	cb = cb.Reveal()
	tr.sayf("Tiebreaker: side %s draws %s, side %s draws %s", SideA, ca, SideB, cb)

	cmp := CompareTiebreak(ca.Rank(), cb.Rank())
	switch {
	case cmp > 0:
		a.Hand = append(a.Hand, ca)
		b.Hand = append(b.Hand, cb)
		e.awardRound(s, tr, SideA, now)
	case cmp < 0:
		a.Hand = append(a.Hand, ca)
		b.Hand = append(b.Hand, cb)
		e.awardRound(s, tr, SideB, now)
	default:
		// Both tiebreaker cards go back where they came from.
		a.Reserve = append([]Card{ca.Hide()}, a.Reserve...)
		b.Reserve = append([]Card{cb.Hide()}, b.Reserve...)
		tr.sayf("Tiebreaker is a further tie, the round is a draw")
		e.drawRound(s, tr, now)
	}
}

// drawRound ends a round with no winner: both bets join the pot, which
// carries to the next round, and each side's hand returns face-down to
// the bottom of its own reserve.
func (e *Engine) drawRound(s *Session, tr *Transition, now time.Time) {
	s.Pot += s.Side(SideA).Bet + s.Side(SideB).Bet
	for i := range s.Sides {
		ps := &s.Sides[i]
		ps.Bet = 0
		for _, c := range ps.Hand {
			ps.Reserve = append(ps.Reserve, c.Hide())
		}
		ps.Hand = nil
	}
	if s.Pot > 0 {
		tr.sayf("The pot of %d carries to the next round", s.Pot)
	}
	e.advanceRound(s, tr, now)
}

// awardRound pays a decisive round: the winner's reserve gains every
// card from both hands plus fabricated cards standing in for the pot,
// all appended to the bottom of the pile, and the pot's credit
// equivalent moves to the winner. Win/loss stats settle only when the
// match ends.
func (e *Engine) awardRound(s *Session, tr *Transition, winner Side, now time.Time) {
	pot := s.Pot + s.Side(SideA).Bet + s.Side(SideB).Bet
	s.Pot = 0
	s.Side(SideA).Bet = 0
	s.Side(SideB).Bet = 0

	w := s.Side(winner)
	for i := range s.Sides {
		ps := &s.Sides[i]
		for _, c := range ps.Hand {
			w.Reserve = append(w.Reserve, c.Hide())
		}
		ps.Hand = nil
	}
	for i := 0; i < pot; i++ {
		w.Reserve = append(w.Reserve, e.fabricateCard())
	}

	tr.sayf("Side %s wins round %d taking a pot of %d", winner, s.CurrentRound, pot)
	if pot > 0 {
		tr.credit(w.PlayerID, int64(pot))
	}
	e.log.Debugf("session %s round %d won by side %s, pot %d", s.ID, s.CurrentRound, winner, pot)

	e.advanceRound(s, tr, now)
}

// advanceRound either ends the match on an exhausted reserve or deals
// the next round.
func (e *Engine) advanceRound(s *Session, tr *Transition, now time.Time) {
	emptyA := len(s.Side(SideA).Reserve) == 0
	emptyB := len(s.Side(SideB).Reserve) == 0
	switch {
	case emptyA && emptyB:
		tr.sayf("Both reserves are exhausted, the match ends with no winner")
		tr.record(s.Side(SideA).PlayerID, false, 0)
		tr.record(s.Side(SideB).PlayerID, false, 0)
		tr.GameOver = true
		s.finish(nil, now)
	case emptyA:
		tr.sayf("Side %s is out of cards", SideA)
		e.finishSession(s, tr, SideB, 0, 0, now)
	case emptyB:
		tr.sayf("Side %s is out of cards", SideB)
		e.finishSession(s, tr, SideA, 0, 0, now)
	default:
		e.startRound(s, tr, now)
	}
}

// finishSession ends the match with a winner and records the final
// win/loss stats.
func (e *Engine) finishSession(s *Session, tr *Transition, winner Side, winDelta, loseDelta int64, now time.Time) {
	tr.sayf("Side %s wins the match", winner)
	tr.record(s.Side(winner).PlayerID, true, winDelta)
	tr.record(s.Side(winner.Other()).PlayerID, false, loseDelta)
	tr.GameOver = true
	s.finish(&winner, now)
}
