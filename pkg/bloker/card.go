package bloker

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Rank represents a card rank
type Rank string

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}
var ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// Card represents a playing card. A card is immutable once dealt except
// for its orientation: dealing and peeking flip it face-up via Reveal.
type Card struct {
	suit   Suit
	rank   Rank
	faceUp bool
}

// NewCard creates a face-down card with the given suit and rank.
func NewCard(suit Suit, rank Rank) Card {
	return Card{suit: suit, rank: rank}
}

// Suit returns the card's suit.
func (c Card) Suit() Suit { return c.suit }

// Rank returns the card's rank.
func (c Card) Rank() Rank { return c.rank }

// FaceUp reports whether the card is face-up.
func (c Card) FaceUp() bool { return c.faceUp }

// Reveal returns the same card turned face-up.
func (c Card) Reveal() Card {
	c.faceUp = true
	return c
}

// Hide returns the same card turned face-down.
func (c Card) Hide() Card {
	c.faceUp = false
	return c
}

// Same reports whether two cards have the same suit and rank, ignoring
// orientation.
func (c Card) Same(o Card) bool {
	return c.suit == o.suit && c.rank == o.rank
}

// String returns a string representation of the card.
func (c Card) String() string {
	return string(c.rank) + string(c.suit)
}

// CardJSON represents a card for JSON serialization
type CardJSON struct {
	Suit   string `json:"suit"`
	Rank   string `json:"rank"`
	FaceUp bool   `json:"face_up"`
}

// MarshalJSON implements json.Marshaler interface for Card
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(CardJSON{
		Suit:   string(c.suit),
		Rank:   string(c.rank),
		FaceUp: c.faceUp,
	})
}

// UnmarshalJSON implements json.Unmarshaler interface for Card
func (c *Card) UnmarshalJSON(data []byte) error {
	var cardJSON CardJSON
	if err := json.Unmarshal(data, &cardJSON); err != nil {
		return err
	}

	switch cardJSON.Suit {
	case "♠", "s", "S", "spades", "Spades":
		c.suit = Spades
	case "♥", "h", "H", "hearts", "Hearts":
		c.suit = Hearts
	case "♦", "d", "D", "diamonds", "Diamonds":
		c.suit = Diamonds
	case "♣", "c", "C", "clubs", "Clubs":
		c.suit = Clubs
	default:
		return fmt.Errorf("invalid suit: %s", cardJSON.Suit)
	}

	valid := false
	for _, r := range ranks {
		if cardJSON.Rank == string(r) {
			c.rank = r
			valid = true
			break
		}
	}
	if !valid {
		// Accept the common single-letter alias for ten.
		if cardJSON.Rank == "T" || cardJSON.Rank == "t" {
			c.rank = Ten
		} else {
			return fmt.Errorf("invalid rank: %s", cardJSON.Rank)
		}
	}

	c.faceUp = cardJSON.FaceUp
	return nil
}
