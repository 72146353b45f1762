package bloker

// blackjackTarget is the hand value a side tries not to exceed.
const blackjackTarget = 21

// rankPoints maps a rank to its base hand value. Aces are handled
// separately by HandValue.
var rankPoints = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7,
	Eight: 8, Nine: 9, Ten: 10, Jack: 10, Queen: 10, King: 10,
}

// HandValue computes the blackjack value of a hand. Each ace counts as
// 11 unless that would bust the hand, in which case it counts as 1.
func HandValue(hand []Card) int {
	total := 0
	aces := 0
	for _, c := range hand {
		if c.Rank() == Ace {
			aces++
			total += 11
			continue
		}
		total += rankPoints[c.Rank()]
	}
	for aces > 0 && total > blackjackTarget {
		total -= 10
		aces--
	}
	return total
}

// IsBust reports whether the hand's value exceeds 21.
func IsBust(hand []Card) bool {
	return HandValue(hand) > blackjackTarget
}

// IsNatural reports whether the hand is a two-card 21.
func IsNatural(hand []Card) bool {
	return len(hand) == 2 && HandValue(hand) == blackjackTarget
}

// tiebreakOrder ranks single cards for the tiebreaker draw. The ace is
// high here, unlike hand scoring where it is worth 11 or 1.
var tiebreakOrder = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7, Eight: 8,
	Nine: 9, Ten: 10, Jack: 11, Queen: 12, King: 13, Ace: 14,
}

// TiebreakRank returns the ace-high comparison value of a rank.
func TiebreakRank(r Rank) int {
	return tiebreakOrder[r]
}

// CompareTiebreak compares two ranks under the ace-high tiebreaker
// ordering. It returns a negative number if a loses to b, a positive
// number if a beats b and zero on a further tie.
func CompareTiebreak(a, b Rank) int {
	return tiebreakOrder[a] - tiebreakOrder[b]
}
