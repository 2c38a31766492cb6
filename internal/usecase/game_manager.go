package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
	"github.com/neoo17/nft-burn-roulette/internal/entity"
	"github.com/neoo17/nft-burn-roulette/internal/pkg"
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	GetByName(ctx context.Context, name string) (*entity.Player, error)
}

type balanceRepo interface {
	Init(ctx context.Context, playerID string, amount int64) error
	Get(ctx context.Context, playerID string) (int64, error)
	Transfer(ctx context.Context, fromID, toID string, amount int64) error
}

// matchSession wraps a live match with its own mutex: turns of one match are
// totally ordered while distinct matches run fully in parallel.
type matchSession struct {
	mu    sync.Mutex
	match *entity.Match
}

// GameManager owns the lobby (pending games), the session registry
// (identities keyed by name) and the table of live matches. It is the only
// component that mutates game state or balances.
type GameManager struct {
	logger      *slog.Logger
	playerRepo  playerRepo
	balanceRepo balanceRepo

	startingBalance int64
	rounds          int

	// loginMu serializes get-or-create across connections, so one name can
	// never mint two identities.
	loginMu sync.Mutex

	mu               sync.Mutex
	pending          map[string]*entity.PendingGame
	pendingByCreator map[string]string
	matches          map[string]*matchSession
	matchByPlayer    map[string]string
}

func NewGameManager(logger *slog.Logger, playerRepo playerRepo, balanceRepo balanceRepo, startingBalance int64, rounds int) *GameManager {
	return &GameManager{
		logger:      logger,
		playerRepo:  playerRepo,
		balanceRepo: balanceRepo,

		startingBalance: startingBalance,
		rounds:          rounds,

		pending:          make(map[string]*entity.PendingGame),
		pendingByCreator: make(map[string]string),
		matches:          make(map[string]*matchSession),
		matchByPlayer:    make(map[string]string),
	}
}

// Login - binds a display name to an identity, creating it with the starting
// stake on first sight. An identity persists across reconnects for the
// process lifetime, so a returning name keeps its balance.
func (that *GameManager) Login(ctx context.Context, name string) (*entity.Player, int64, error) {
	that.loginMu.Lock()
	defer that.loginMu.Unlock()

	player, err := that.playerRepo.GetByName(ctx, name)
	if err != nil && !isNotFound(err) {
		return nil, 0, fmt.Errorf("failed to get player by name: %w", err)
	}

	if isNotFound(err) {
		player = &entity.Player{
			ID:   pkg.GeneratePlayerID(),
			Name: name,
		}

		if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
			return nil, 0, fmt.Errorf("failed to create player: %w", err)
		}
	}

	if err = that.balanceRepo.Init(ctx, player.ID, that.startingBalance); err != nil {
		return nil, 0, fmt.Errorf("failed to init balance: %w", err)
	}

	balance, err := that.balanceRepo.Get(ctx, player.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return player, balance, nil
}

// Balance - a snapshot of the player's balance.
func (that *GameManager) Balance(ctx context.Context, playerID string) (int64, error) {
	balance, err := that.balanceRepo.Get(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// CreateGame - puts a new pending game into the lobby.
func (that *GameManager) CreateGame(ctx context.Context, player *entity.Player, bet int64) (*entity.PendingGame, error) {
	if bet <= 0 {
		return nil, apperror.ErrInvalidBet
	}

	balance, err := that.balanceRepo.Get(ctx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if balance < bet {
		return nil, apperror.ErrInsufficientBalance
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.isBusy(player.ID) {
		return nil, apperror.ErrAlreadyInMatch
	}

	game := &entity.PendingGame{
		ID:          pkg.GenerateGameID(),
		CreatorID:   player.ID,
		CreatorName: player.Name,
		Bet:         bet,
	}

	that.pending[game.ID] = game
	that.pendingByCreator[player.ID] = game.ID

	return game, nil
}

// ListGames - the full current pending list.
func (that *GameManager) ListGames() []*entity.PendingGame {
	that.mu.Lock()
	defer that.mu.Unlock()

	games := make([]*entity.PendingGame, 0, len(that.pending))
	for _, game := range that.pending {
		games = append(games, game)
	}

	return games
}

// CancelGame - removes the player's own pending game if present, no-op
// otherwise. Reports whether a game was actually removed.
func (that *GameManager) CancelGame(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.removePendingLocked(playerID)
}

// JoinGame - atomically consumes a pending game and promotes it to a live
// match. Exactly one joiner can win a race on the same pending game; the
// loser observes ErrGameNotFound.
func (that *GameManager) JoinGame(ctx context.Context, joiner *entity.Player, gameID string) (*StartGameResult, error) {
	balance, err := that.balanceRepo.Get(ctx, joiner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	that.mu.Lock()

	game, ok := that.pending[gameID]
	if !ok {
		that.mu.Unlock()
		return nil, apperror.ErrGameNotFound
	}

	if game.CreatorID == joiner.ID {
		that.mu.Unlock()
		return nil, apperror.ErrSelfJoin
	}

	if that.isBusy(joiner.ID) {
		that.mu.Unlock()
		return nil, apperror.ErrAlreadyInMatch
	}

	if balance < game.Bet {
		that.mu.Unlock()
		return nil, apperror.ErrInsufficientBalance
	}

	that.mu.Unlock()

	// the pending game stays in the lobby during this fetch, so a failure
	// here loses nothing
	creator, err := that.playerRepo.GetByID(ctx, game.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// revalidate: the game may have been joined, cancelled, or closed by a
	// creator disconnect during the fetch
	if current, ok := that.pending[gameID]; !ok || current != game {
		return nil, apperror.ErrGameNotFound
	}

	if that.isBusy(joiner.ID) {
		return nil, apperror.ErrAlreadyInMatch
	}

	delete(that.pending, gameID)
	delete(that.pendingByCreator, game.CreatorID)

	match := entity.NewMatch(game.ID, creator, joiner, game.Bet, that.rounds)

	that.matches[match.ID] = &matchSession{match: match}
	that.matchByPlayer[game.CreatorID] = match.ID
	that.matchByPlayer[joiner.ID] = match.ID

	return &StartGameResult{
		Room:          match.ID,
		Players:       match.Players,
		Bet:           match.Bet,
		Rounds:        match.Rounds,
		CurrentTurnID: match.CurrentTurnID(),
		ShuffleUsed:   match.ShuffleUsed,
	}, nil
}

// MakeMove - one reveal inside a live match.
func (that *GameManager) MakeMove(ctx context.Context, playerID, room string, cardIndex int) (*MoveResult, error) {
	session, err := that.session(room)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()

	match := session.match

	playerIdx, err := match.PlayerIndex(playerID)
	if err != nil {
		session.mu.Unlock()
		return nil, err
	}

	value, err := match.TakeTurn(playerIdx, cardIndex)
	if err != nil {
		session.mu.Unlock()
		return nil, err
	}

	result := &MoveResult{
		Room:          room,
		By:            match.Players[playerIdx],
		CardIndex:     cardIndex,
		Value:         value,
		Players:       match.Players,
		RoundWins:     match.RoundWins,
		ShuffleUsed:   match.ShuffleUsed,
		CurrentTurnID: match.CurrentTurnID(),
	}

	if match.Round.IsOver() {
		result.RoundOver = true
		result.RoundNumber = match.Round.Number
		result.RoundWinner = match.Players[match.Round.Winner]
	}

	if match.IsFinished() {
		result.MatchOver = true
		result.MatchWinner = match.Players[match.Winner]
	}

	session.mu.Unlock()

	if result.MatchOver {
		that.removeMatch(room)
		result.Balances = that.settle(ctx, match)
	}

	return result, nil
}

// ShuffleDeck - consumes the player's single per-match reshuffle.
func (that *GameManager) ShuffleDeck(playerID, room string) (*ShuffleResult, error) {
	session, err := that.session(room)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	match := session.match

	playerIdx, err := match.PlayerIndex(playerID)
	if err != nil {
		return nil, err
	}

	if err = match.Shuffle(playerIdx); err != nil {
		return nil, err
	}

	return &ShuffleResult{
		Room:          room,
		By:            match.Players[playerIdx],
		Players:       match.Players,
		ShuffleUsed:   match.ShuffleUsed,
		CurrentTurnID: match.CurrentTurnID(),
	}, nil
}

// StartNextRound - brings a match from round-over into the next round. The
// transport invokes it after the announcement pause.
func (that *GameManager) StartNextRound(room string) (*NewRoundResult, error) {
	session, err := that.session(room)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	match := session.match

	if err = match.StartNextRound(); err != nil {
		return nil, err
	}

	return &NewRoundResult{
		Room:          room,
		Round:         match.Round.Number,
		RoundWins:     match.RoundWins,
		Players:       match.Players,
		ShuffleUsed:   match.ShuffleUsed,
		CurrentTurnID: match.CurrentTurnID(),
	}, nil
}

// Disconnect - resolves the leaving player's lobby and match participation.
// A pending game is cancelled; a live match is forfeited in favor of the
// remaining player, and settlement proceeds as usual.
func (that *GameManager) Disconnect(ctx context.Context, playerID string) *DisconnectResult {
	result := &DisconnectResult{}

	that.mu.Lock()
	result.CancelledGame = that.removePendingLocked(playerID)
	room, inMatch := that.matchByPlayer[playerID]
	session := that.matches[room]
	that.mu.Unlock()

	if !inMatch {
		return result
	}

	session.mu.Lock()

	match := session.match

	playerIdx, err := match.PlayerIndex(playerID)
	if err != nil {
		session.mu.Unlock()
		return result
	}

	alreadyFinished := match.IsFinished()
	match.Forfeit(playerIdx)

	forfeit := &ForfeitResult{
		Room:        room,
		Leaver:      match.Players[playerIdx],
		MatchWinner: match.Players[match.Winner],
		Players:     match.Players,
		RoundWins:   match.RoundWins,
	}

	session.mu.Unlock()

	that.removeMatch(room)

	if !alreadyFinished {
		forfeit.Balances = that.settle(ctx, match)
		result.Forfeit = forfeit
	}

	return result
}

// settle - transfers the bet from the loser to the winner, capped at the
// loser's balance so a settled match never drives it negative. Returns the
// post-settlement balances keyed by player id.
func (that *GameManager) settle(ctx context.Context, match *entity.Match) map[string]int64 {
	log := that.logger.With("method", "settle", "room", match.ID)

	winner := match.Players[match.Winner]
	loser := match.Players[1-match.Winner]

	loserBalance, err := that.balanceRepo.Get(ctx, loser.ID)
	if err != nil {
		log.Error("failed to get loser balance", "error", err)
		return nil
	}

	amount := match.Bet
	if loserBalance < amount {
		log.Warn("loser balance below bet, capping transfer", "bet", match.Bet, "balance", loserBalance)
		amount = loserBalance
	}

	if amount > 0 {
		if err = that.balanceRepo.Transfer(ctx, loser.ID, winner.ID, amount); err != nil {
			log.Error("failed to transfer bet", "error", err)
			return nil
		}
	}

	balances := make(map[string]int64, 2)
	for _, player := range match.Players {
		balance, err := that.balanceRepo.Get(ctx, player.ID)
		if err != nil {
			log.Error("failed to get balance after settlement", "playerID", player.ID, "error", err)
			continue
		}
		balances[player.ID] = balance
	}

	log.Info("match settled", "winner", winner.Name, "amount", amount)

	return balances
}

func (that *GameManager) session(room string) (*matchSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.matches[room]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}

	return session, nil
}

func (that *GameManager) removeMatch(room string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.matches[room]
	if !ok {
		return
	}

	delete(that.matches, room)
	for _, player := range session.match.Players {
		delete(that.matchByPlayer, player.ID)
	}
}

// isBusy - whether the player already has a pending game or a live match.
// Callers must hold that.mu.
func (that *GameManager) isBusy(playerID string) bool {
	if _, ok := that.pendingByCreator[playerID]; ok {
		return true
	}

	_, ok := that.matchByPlayer[playerID]

	return ok
}

// removePendingLocked - drops the player's pending game. Callers must hold
// that.mu.
func (that *GameManager) removePendingLocked(playerID string) bool {
	gameID, ok := that.pendingByCreator[playerID]
	if !ok {
		return false
	}

	delete(that.pending, gameID)
	delete(that.pendingByCreator, playerID)

	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrPlayerNotFound)
}
