package apperror

import "errors"

var (
	ErrInvalidBet          = errors.New("bet must be a positive amount")
	ErrInvalidMove         = errors.New("invalid move")
	ErrNotYourTurn         = errors.New("it's not your turn")
	ErrRoundAlreadyOver    = errors.New("round is already over")
	ErrShuffleAlreadyUsed  = errors.New("shuffle is already used")
	ErrGameNotFound        = errors.New("game not found")
	ErrSelfJoin            = errors.New("can't join your own game")
	ErrAlreadyInMatch      = errors.New("player is already in a game")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNameTaken           = errors.New("name is already in use")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNotInMatch          = errors.New("player is not in a game")
)
