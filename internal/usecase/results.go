package usecase

import "github.com/neoo17/nft-burn-roulette/internal/entity"

// Results carry everything the transport needs to build outbound events
// without reaching back into live game state.

type StartGameResult struct {
	Room          string
	Players       [2]*entity.Player
	Bet           int64
	Rounds        int
	CurrentTurnID string
	ShuffleUsed   [2]bool
}

type MoveResult struct {
	Room          string
	By            *entity.Player
	CardIndex     int
	Value         string
	Players       [2]*entity.Player
	RoundWins     [2]int
	ShuffleUsed   [2]bool
	CurrentTurnID string

	RoundOver   bool
	RoundNumber int
	RoundWinner *entity.Player

	MatchOver   bool
	MatchWinner *entity.Player
	Balances    map[string]int64
}

type ShuffleResult struct {
	Room          string
	By            *entity.Player
	Players       [2]*entity.Player
	ShuffleUsed   [2]bool
	CurrentTurnID string
}

type NewRoundResult struct {
	Room          string
	Round         int
	RoundWins     [2]int
	Players       [2]*entity.Player
	ShuffleUsed   [2]bool
	CurrentTurnID string
}

type ForfeitResult struct {
	Room        string
	Leaver      *entity.Player
	MatchWinner *entity.Player
	Players     [2]*entity.Player
	RoundWins   [2]int
	Balances    map[string]int64
}

type DisconnectResult struct {
	CancelledGame bool
	Forfeit       *ForfeitResult
}
