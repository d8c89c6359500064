// Package game holds the card side of the variant: per-side decks and hands
// of piece tokens that gate which piece may move each turn.
package game

import (
	"math/rand"

	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

// Card is a piece token; lowercase for white's deck, uppercase for black's.
type Card byte

func (c Card) Kind() byte     { return rules.Kind(byte(c)) }
func (c Card) String() string { return string(byte(c)) }

// HandSize is the number of cards a side holds while its deck lasts.
const HandSize = 5

// distribution is the per-side card mix, 71 cards total.
var distribution = []struct {
	kind  byte
	count int
}{
	{rules.KindPawn, 35},
	{rules.KindKnight, 9},
	{rules.KindBishop, 8},
	{rules.KindRook, 8},
	{rules.KindQueen, 5},
	{rules.KindKing, 6},
}

// Deck is an ordered draw pile; cards come off the end.
type Deck struct {
	cards []Card
}

// NewDeck builds the standard unshuffled deck for one side.
func NewDeck(c rules.Color) *Deck {
	d := &Deck{}
	for _, entry := range distribution {
		token := entry.kind
		if c == rules.Black {
			token = token - ('a' - 'A')
		}
		for i := 0; i < entry.count; i++ {
			d.cards = append(d.cards, Card(token))
		}
	}
	return d
}

// DeckOf builds a deck holding exactly the given cards, bottom card first.
func DeckOf(cards ...Card) *Deck {
	return &Deck{cards: cards}
}

// NewShuffledDeck builds and Fisher-Yates shuffles a deck.
func NewShuffledDeck(c rules.Color, rng *rand.Rand) *Deck {
	d := NewDeck(c)
	d.Shuffle(rng)
	return d
}

func (d *Deck) Shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

func (d *Deck) Len() int    { return len(d.cards) }
func (d *Deck) Empty() bool { return len(d.cards) == 0 }

// Draw removes and returns up to n cards from the top of the pile.
func (d *Deck) Draw(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		top := d.cards[len(d.cards)-1]
		d.cards = d.cards[:len(d.cards)-1]
		drawn = append(drawn, top)
	}
	return drawn
}

// TopUp draws until the hand holds HandSize cards or the deck runs out.
func (d *Deck) TopUp(hand []Card) []Card {
	if missing := HandSize - len(hand); missing > 0 {
		hand = append(hand, d.Draw(missing)...)
	}
	return hand
}

// Strings renders a hand for the wire.
func Strings(hand []Card) []string {
	out := make([]string, len(hand))
	for i, c := range hand {
		out[i] = c.String()
	}
	return out
}
