package entity

import (
	"fmt"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
)

const (
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// Match is a best-of-N sequence of rounds between exactly two players with a
// single settled bet outcome. Player 0 is the creator of the game.
type Match struct {
	ID          string
	Players     [2]*Player
	Bet         int64
	Rounds      int
	RoundWins   [2]int
	ShuffleUsed [2]bool
	Round       *Round
	Status      string
	Winner      int
}

// NewMatch - starts a match between creator and joiner. The creator takes the
// first turn of round 1; the loser of each round starts the next.
func NewMatch(id string, creator, joiner *Player, bet int64, rounds int) *Match {
	return &Match{
		ID:      id,
		Players: [2]*Player{creator, joiner},
		Bet:     bet,
		Rounds:  rounds,
		Round:   NewRound(1, 0),
		Status:  StatusOngoing,
		Winner:  NoWinner,
	}
}

func (that *Match) IsFinished() bool {
	return that.Status == StatusFinished
}

// PlayerIndex - resolves a player id to its seat, or an error if the player
// is not a participant.
func (that *Match) PlayerIndex(playerID string) (int, error) {
	for i, player := range that.Players {
		if player.ID == playerID {
			return i, nil
		}
	}

	return NoWinner, apperror.ErrNotInMatch
}

// TakeTurn - plays one reveal for the given player and advances the match
// state machine on a round-terminal outcome.
func (that *Match) TakeTurn(playerIdx, cardIndex int) (string, error) {
	if that.IsFinished() {
		return "", apperror.ErrRoundAlreadyOver
	}

	value, err := that.Round.TakeTurn(playerIdx, cardIndex)
	if err != nil {
		return "", fmt.Errorf("failed to take turn: %w", err)
	}

	if that.Round.IsOver() {
		that.finishRound()
	}

	return value, nil
}

// Shuffle - consumes the player's single per-match reshuffle.
func (that *Match) Shuffle(playerIdx int) error {
	if that.IsFinished() {
		return apperror.ErrRoundAlreadyOver
	}

	if that.ShuffleUsed[playerIdx] {
		return apperror.ErrShuffleAlreadyUsed
	}

	if err := that.Round.Shuffle(playerIdx); err != nil {
		return err
	}

	that.ShuffleUsed[playerIdx] = true

	return nil
}

// StartNextRound - creates the next round once the previous one is over.
// The loser of the previous round takes the first turn.
func (that *Match) StartNextRound() error {
	if that.IsFinished() {
		return apperror.ErrRoundAlreadyOver
	}

	if !that.Round.IsOver() {
		return fmt.Errorf("%w: round %d is still in progress", apperror.ErrInvalidMove, that.Round.Number)
	}

	loser := otherPlayer(that.Round.Winner)
	that.Round = NewRound(that.Round.Number+1, loser)

	return nil
}

// Forfeit - ends the match in favor of the player who stays.
func (that *Match) Forfeit(leaverIdx int) {
	if that.IsFinished() {
		return
	}

	that.Winner = otherPlayer(leaverIdx)
	that.Status = StatusFinished
}

func (that *Match) finishRound() {
	winner := that.Round.Winner
	that.RoundWins[winner]++

	if that.RoundWins[winner] > that.Rounds/2 {
		that.Winner = winner
		that.Status = StatusFinished
	}
}

// CurrentTurnID - the id of the player on turn, empty once the match is over.
func (that *Match) CurrentTurnID() string {
	if that.IsFinished() || that.Round.IsOver() {
		return ""
	}

	return that.Players[that.Round.Turn].ID
}
