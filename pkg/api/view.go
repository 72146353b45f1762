package api

import (
	"time"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
)

// CardView is a card as one particular viewer sees it. Face-down
// opponent cards keep their position in the hand but lose suit and
// rank.
type CardView struct {
	Suit   string `json:"suit,omitempty"`
	Rank   string `json:"rank,omitempty"`
	FaceUp bool   `json:"face_up"`
}

// SeatView is one side of the table as one particular viewer sees it.
// Hand value and bust status are only present on the viewer's own seat.
type SeatView struct {
	PlayerID    string     `json:"player_id"`
	ReserveSize int        `json:"reserve_size"`
	Hand        []CardView `json:"hand"`
	HandValue   int        `json:"hand_value,omitempty"`
	Bet         int        `json:"bet"`
	Folded      bool       `json:"folded"`
	Busted      bool       `json:"busted,omitempty"`
	Ready       bool       `json:"ready"`
	Voted       bool       `json:"voted"`
}

// SessionView is the session state masked for a single participant.
type SessionView struct {
	ID        string     `json:"id"`
	Phase     string     `json:"phase"`
	Round     int        `json:"round"`
	Pot       int        `json:"pot"`
	NumDecks  int        `json:"num_decks,omitempty"`
	AllowPeek bool       `json:"allow_peek"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Winner    string     `json:"winner,omitempty"`
	You       SeatView   `json:"you"`
	Opponent  SeatView   `json:"opponent"`
}

func cardView(c bloker.Card, mask bool) CardView {
	if mask && !c.FaceUp() {
		return CardView{}
	}
	return CardView{
		Suit:   string(c.Suit()),
		Rank:   string(c.Rank()),
		FaceUp: c.FaceUp(),
	}
}

func seatView(ps *bloker.PlayerSide, mask bool) SeatView {
	view := SeatView{
		PlayerID:    ps.PlayerID,
		ReserveSize: len(ps.Reserve),
		Hand:        make([]CardView, 0, len(ps.Hand)),
		Bet:         ps.Bet,
		Folded:      ps.Folded,
		Ready:       ps.Ready,
		Voted:       ps.Vote != nil,
	}
	for _, c := range ps.Hand {
		view.Hand = append(view.Hand, cardView(c, mask))
	}
	if !mask {
		view.HandValue = bloker.HandValue(ps.Hand)
		view.Busted = ps.Busted
	}
	return view
}

// newSessionView builds the masked state for the given participant.
func newSessionView(sess *bloker.Session, viewer bloker.Side) SessionView {
	view := SessionView{
		ID:        sess.ID,
		Phase:     string(sess.Phase),
		Round:     sess.CurrentRound,
		Pot:       sess.Pot,
		NumDecks:  sess.NumDecks,
		AllowPeek: sess.AllowPeek,
		Deadline:  sess.PhaseDeadline,
		You:       seatView(sess.Side(viewer), false),
		Opponent:  seatView(sess.Side(viewer.Other()), true),
	}
	if sess.Winner != nil {
		view.Winner = sess.Side(*sess.Winner).PlayerID
	}
	return view
}
