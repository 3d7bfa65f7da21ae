// Package cards provides the card, shoe and hand-scoring model shared by
// the blackjack engine.
//
// Cards are symbolic rank/suit pairs; the suit is cosmetic and only the
// rank drives scoring. The shoe is a single 52-card deck drawn without
// replacement; per-draw infinite-deck models are not supported.
package cards

import (
	"errors"
	"fmt"
)

// Suit is a card suit. Cosmetic only.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Suits lists all four suits in deck order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank is a card rank: A, 2-10, J, Q, K.
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

// Ranks lists all thirteen ranks in deck order.
var Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// rankValues maps ranks to their high scoring value. Aces start at 11 and
// are demoted by Score when the hand would bust.
var rankValues = map[Rank]int{
	Ace: 11, Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7,
	Eight: 8, Nine: 9, Ten: 10, Jack: 10, Queen: 10, King: 10,
}

// Card is a single playing card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// Value returns the card's high scoring value (face cards 10, ace 11).
func (c Card) Value() int {
	return rankValues[c.Rank]
}

// IsAce reports whether the card is an ace.
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// String renders the card as rank followed by suit, e.g. "A♠".
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Score computes the blackjack value of a hand. Every card contributes its
// high value (aces count 11 first), then aces are demoted to 1 one at a
// time while the total exceeds 21 and a high ace remains. The demotion
// order matters when several aces sit at the bust boundary, so it is never
// reordered. The value is always recomputed from the full hand.
func Score(hand []Card) int {
	score := 0
	aces := 0

	for _, c := range hand {
		score += c.Value()
		if c.IsAce() {
			aces++
		}
	}

	for score > 21 && aces > 0 {
		score -= 10
		aces--
	}

	return score
}

// IsNatural reports whether the hand is a natural blackjack: exactly two
// cards totaling 21. A 21 reached by hitting is not a natural.
func IsNatural(hand []Card) bool {
	return len(hand) == 2 && Score(hand) == 21
}

// IsBust reports whether the hand exceeds 21.
func IsBust(hand []Card) bool {
	return Score(hand) > 21
}

// ErrShoeEmpty is returned when drawing from an exhausted shoe.
var ErrShoeEmpty = errors.New("shoe is empty")

// Shuffler randomizes n elements in place through successive swaps.
// Satisfied by rng.Service; tests script hands with NewStackedShoe instead.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int)) error
}

// Shoe is an ordered stack of cards drawn from the top without replacement.
type Shoe struct {
	cards []Card
}

// NewShoe builds a full 52-card shoe shuffled through the given randomness
// source.
func NewShoe(src Shuffler) (*Shoe, error) {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}

	if err := src.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	}); err != nil {
		return nil, fmt.Errorf("failed to shuffle shoe: %w", err)
	}

	return &Shoe{cards: deck}, nil
}

// NewStackedShoe builds a shoe that deals the given cards in order.
// Used by tests to script exact hands.
func NewStackedShoe(cards ...Card) *Shoe {
	stacked := make([]Card, len(cards))
	copy(stacked, cards)
	return &Shoe{cards: stacked}
}

// Draw removes and returns the top card of the shoe.
func (s *Shoe) Draw() (Card, error) {
	if len(s.cards) == 0 {
		return Card{}, ErrShoeEmpty
	}
	c := s.cards[0]
	s.cards = s.cards[1:]
	return c, nil
}

// Remaining returns the number of cards left in the shoe.
func (s *Shoe) Remaining() int {
	return len(s.cards)
}
