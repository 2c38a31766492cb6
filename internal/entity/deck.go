package entity

import (
	"fmt"
	"math/rand"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
)

const DeckSize = 6

const (
	CardSafe = "safe"
	CardBurn = "burn"
)

// Deck is the hidden card arrangement for one round. Exactly one of the six
// slots is the burn card; its position lives only on the server and is never
// serialized before a legitimate reveal.
type Deck struct {
	burnIndex int
	opened    [DeckSize]bool
}

// NewDeck - constructs a deck with the burn card at the given position.
func NewDeck(burnIndex int) *Deck {
	return &Deck{
		burnIndex: burnIndex,
	}
}

// NewRandomDeck - constructs a deck with the burn position drawn uniformly.
func NewRandomDeck() *Deck {
	return NewDeck(rand.Intn(DeckSize)) //nolint: gosec // game randomness, not crypto
}

// Reveal - opens the slot at index and returns its true value.
func (that *Deck) Reveal(index int) (string, error) {
	if index < 0 || index >= DeckSize {
		return "", fmt.Errorf("%w: card %d is out of range", apperror.ErrInvalidMove, index)
	}

	if that.IsOpened(index) {
		return "", fmt.Errorf("%w: card %d is already opened", apperror.ErrInvalidMove, index)
	}

	that.opened[index] = true

	if index == that.burnIndex {
		return CardBurn, nil
	}

	return CardSafe, nil
}

// Reshuffle - resets all slots and redraws the burn position. The redraw is
// independent of the previous position.
func (that *Deck) Reshuffle() {
	that.opened = [DeckSize]bool{}
	that.burnIndex = rand.Intn(DeckSize) //nolint: gosec // game randomness, not crypto
}

// OpenedCount - how many slots have been revealed so far.
func (that *Deck) OpenedCount() int {
	count := 0
	for _, opened := range that.opened {
		if opened {
			count++
		}
	}

	return count
}

func (that *Deck) IsOpened(index int) bool {
	return index >= 0 && index < DeckSize && that.opened[index]
}
