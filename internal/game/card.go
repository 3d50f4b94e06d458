package game

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand"
	"sort"
)

// Errors
var (
	ErrDeckExhausted = errors.New("not enough cards in the deck")
	ErrCardNotFound  = errors.New("card not in hand")
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "spades"
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
)

// Rank represents a card rank
type Rank string

const (
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
	Ace   Rank = "A"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// rankValues maps ranks to their trick-taking strength (2 low, Ace high).
var rankValues = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7, Eight: 8,
	Nine: 9, Ten: 10, Jack: 11, Queen: 12, King: 13, Ace: 14,
}

// Card represents one physical card. The game plays with two decks, so
// (suit, rank) is not unique; ID distinguishes the two copies and is stable
// for the lifetime of a deal.
type Card struct {
	ID      int  `json:"id"`
	Suit    Suit `json:"suit"`
	Rank    Rank `json:"rank"`
	Value   int  `json:"value"`
	DeckNum int  `json:"deckNum"`
}

// String returns a short representation like "AS" or "10H".
func (c Card) String() string {
	suitChar := map[Suit]string{
		Spades:   "S",
		Hearts:   "H",
		Diamonds: "D",
		Clubs:    "C",
	}
	return string(c.Rank) + suitChar[c.Suit]
}

// BuildDoubleDeck creates the 104-card double deck with IDs 0..103,
// the first 52 cards carrying DeckNum 0 and the rest DeckNum 1.
func BuildDoubleDeck() []Card {
	cards := make([]Card, 0, 104)
	id := 0
	for deckNum := 0; deckNum < 2; deckNum++ {
		for _, suit := range suits {
			for _, rank := range ranks {
				cards = append(cards, Card{
					ID:      id,
					Suit:    suit,
					Rank:    rank,
					Value:   rankValues[rank],
					DeckNum: deckNum,
				})
				id++
			}
		}
	}
	return cards
}

// NewDealSource returns a math/rand source seeded from crypto/rand.
// Tests pass their own seeded source for reproducible deals.
func NewDealSource() *mrand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return mrand.New(mrand.NewSource(seed))
}

// Shuffle randomizes the deck in place using Fisher-Yates.
func Shuffle(deck []Card, r *mrand.Rand) {
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// Deal shuffles a fresh double deck and deals n cards to each player in
// order, as consecutive blocks off the top.
func Deal(playerOrder []string, n int, r *mrand.Rand) (map[string][]Card, error) {
	if n*len(playerOrder) > 104 {
		return nil, fmt.Errorf("%w: need %d cards for %d players", ErrDeckExhausted, n*len(playerOrder), len(playerOrder))
	}
	deck := BuildDoubleDeck()
	Shuffle(deck, r)

	hands := make(map[string][]Card, len(playerOrder))
	for i, name := range playerOrder {
		hand := make([]Card, n)
		copy(hand, deck[i*n:(i+1)*n])
		hands[name] = hand
	}
	return hands, nil
}

// suitOrder fixes the display order: spades first, then hearts, diamonds, clubs.
var suitOrder = map[Suit]int{Spades: 0, Hearts: 1, Diamonds: 2, Clubs: 3}

// SortHand orders a hand for display: by suit (spades, hearts, diamonds,
// clubs), descending value within a suit. The sort is stable so the two
// copies of a card keep their relative order.
func SortHand(hand []Card) []Card {
	sorted := make([]Card, len(hand))
	copy(sorted, hand)
	sort.SliceStable(sorted, func(i, j int) bool {
		if suitOrder[sorted[i].Suit] != suitOrder[sorted[j].Suit] {
			return suitOrder[sorted[i].Suit] < suitOrder[sorted[j].Suit]
		}
		return sorted[i].Value > sorted[j].Value
	})
	return sorted
}

// CompareForTrick reports whether card a, played after card b, takes the
// trick from b given the led suit. Spades trump everything; otherwise only
// cards of the led suit compete. Ties between the two copies of the same
// card go to the later-played card (a).
func CompareForTrick(a, b Card, ledSuit Suit) bool {
	aSpade := a.Suit == Spades
	bSpade := b.Suit == Spades

	switch {
	case aSpade && !bSpade:
		return true
	case aSpade && bSpade:
		return a.Value >= b.Value
	case bSpade:
		return false
	}

	aFollows := a.Suit == ledSuit
	bFollows := b.Suit == ledSuit
	switch {
	case aFollows && !bFollows:
		return true
	case aFollows && bFollows:
		return a.Value >= b.Value
	default:
		return false
	}
}

// HasSuit reports whether the hand holds at least one card of the suit.
func HasSuit(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// FirstLegalCard picks the first card in the hand that satisfies the
// follow-suit rule. Used when a disconnected player's turn is auto-played.
func FirstLegalCard(hand []Card, ledSuit Suit, leading bool) (Card, bool) {
	if len(hand) == 0 {
		return Card{}, false
	}
	if !leading && HasSuit(hand, ledSuit) {
		for _, c := range hand {
			if c.Suit == ledSuit {
				return c, true
			}
		}
	}
	return hand[0], true
}
