package entity

import (
	"github.com/neoo17/nft-burn-roulette/internal/apperror"
)

// NoWinner marks a round or match that has no terminal outcome yet.
const NoWinner = -1

// Round is one deck-clearing contest within a match. Turns alternate strictly
// between the two player indices until the burn card is opened.
type Round struct {
	Number   int
	Deck     *Deck
	Turn     int
	Revealed int
	Winner   int
}

func NewRound(number, startingTurn int) *Round {
	return &Round{
		Number: number,
		Deck:   NewRandomDeck(),
		Turn:   startingTurn,
		Winner: NoWinner,
	}
}

func (that *Round) IsOver() bool {
	return that.Winner != NoWinner
}

// TakeTurn - reveals the card at cardIndex on behalf of playerIdx.
// On a safe reveal the turn passes to the other player; on a burn reveal the
// round ends and the revealer loses. Once only the burn card remains the round
// resolves immediately: the player who would be forced to open it loses.
func (that *Round) TakeTurn(playerIdx, cardIndex int) (string, error) {
	if that.IsOver() {
		return "", apperror.ErrRoundAlreadyOver
	}

	if playerIdx != that.Turn {
		return "", apperror.ErrNotYourTurn
	}

	value, err := that.Deck.Reveal(cardIndex)
	if err != nil {
		return "", err
	}

	if value == CardBurn {
		that.Winner = otherPlayer(playerIdx)
		return value, nil
	}

	that.Revealed++
	that.Turn = otherPlayer(playerIdx)

	// Only the burn card is left: the player now on turn would be forced to
	// open it, so the round resolves in favor of the last safe revealer.
	if that.Revealed == DeckSize-1 {
		that.Winner = playerIdx
	}

	return value, nil
}

// Shuffle - discards all reveals in this round and rerandomizes the deck.
// Invoking it counts as a move-time action of the player on turn, but does not
// consume the turn itself.
func (that *Round) Shuffle(playerIdx int) error {
	if that.IsOver() {
		return apperror.ErrRoundAlreadyOver
	}

	if playerIdx != that.Turn {
		return apperror.ErrNotYourTurn
	}

	that.Deck.Reshuffle()
	that.Revealed = 0

	return nil
}

func otherPlayer(playerIdx int) int {
	return 1 - playerIdx
}
