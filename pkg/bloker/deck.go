package bloker

import (
	"fmt"
	"math/rand"
)

const (
	// MinDecks and MaxDecks bound the number of 52-card sets a session
	// may agree to play with.
	MinDecks = 1
	MaxDecks = 4

	// CardsPerDeck is the size of one standard set.
	CardsPerDeck = 52
)

// Deck represents an ordered pile of cards consumed from the top.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck builds a shuffled deck of numDecks concatenated standard
// 52-card sets using the given random number generator.
func NewDeck(numDecks int, rng *rand.Rand) (*Deck, error) {
	if numDecks < MinDecks || numDecks > MaxDecks {
		return nil, fmt.Errorf("numDecks must be between %d and %d, got %d", MinDecks, MaxDecks, numDecks)
	}

	deck := &Deck{
		cards: make([]Card, 0, numDecks*CardsPerDeck),
		rng:   rng,
	}

	for i := 0; i < numDecks; i++ {
		for _, suit := range suits {
			for _, rank := range ranks {
				deck.cards = append(deck.cards, NewCard(suit, rank))
			}
		}
	}

	deck.Shuffle()

	return deck, nil
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the top card from the deck
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Size returns the number of cards remaining in the deck
func (d *Deck) Size() int {
	return len(d.cards)
}

// SplitReserves divides the whole deck into two personal reserves.
// Whole 52-card sets always split evenly; should the total ever be odd,
// side A receives the extra card.
func (d *Deck) SplitReserves() (a, b []Card) {
	half := (len(d.cards) + 1) / 2
	a = make([]Card, half)
	b = make([]Card, len(d.cards)-half)
	copy(a, d.cards[:half])
	copy(b, d.cards[half:])
	d.cards = nil
	return a, b
}

// randomCard fabricates a face-down card of uniform random suit and
// rank. Used for pot payouts and bet-backed draws against an empty
// reserve; fabrication deliberately ignores deck composition.
func randomCard(rng *rand.Rand) Card {
	return NewCard(suits[rng.Intn(len(suits))], ranks[rng.Intn(len(ranks))])
}

// popReserve removes and returns the top card of a reserve.
func popReserve(reserve []Card) (Card, []Card, bool) {
	if len(reserve) == 0 {
		return Card{}, reserve, false
	}
	return reserve[0], reserve[1:], true
}
