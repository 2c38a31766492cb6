package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
	"github.com/neoo17/nft-burn-roulette/internal/entity"
	"github.com/neoo17/nft-burn-roulette/internal/usecase"
)

func (that *Server) handleLogin(ctx context.Context, c *client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleLogin")

	var req loginPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if req.Name == "" {
		return that.sendError(c, "name is required")
	}

	player, balance, err := that.game.Login(ctx, req.Name)
	if err != nil {
		log.Error("failed to login", "name", req.Name, "error", err)
		return that.sendError(c, "failed to login")
	}

	if !that.bind(c, player) {
		return that.sendError(c, apperror.ErrNameTaken.Error())
	}

	log.Info("player logged in", "playerID", player.ID, "name", player.Name)

	if err = c.send(eventLobby, struct{}{}); err != nil {
		return fmt.Errorf("failed to send lobby: %w", err)
	}

	return c.send(eventBalance, balanceResponse{Balance: balance})
}

func (that *Server) handleCreateGame(ctx context.Context, c *client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleCreateGame")

	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	var req createGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, err := that.game.CreateGame(ctx, player, req.Bet)
	if err != nil {
		return that.sendFailure(c, err)
	}

	log.Info("pending game created", "gameID", game.ID, "creator", player.Name, "bet", game.Bet)

	that.broadcastPendingGames()

	return nil
}

func (that *Server) handleCancelPendingGame(_ context.Context, c *client, _ json.RawMessage) error {
	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	if that.game.CancelGame(player.ID) {
		that.broadcastPendingGames()
	}

	return c.send(eventLobby, struct{}{})
}

func (that *Server) handleListGames(_ context.Context, c *client, _ json.RawMessage) error {
	if c.currentPlayer() == nil {
		return that.sendError(c, "login required")
	}

	return c.send(eventPendingGames, pendingGamesPayload(that.game.ListGames()))
}

func (that *Server) handleGetBalance(ctx context.Context, c *client, _ json.RawMessage) error {
	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	balance, err := that.game.Balance(ctx, player.ID)
	if err != nil {
		return that.sendError(c, "failed to get balance")
	}

	return c.send(eventBalance, balanceResponse{Balance: balance})
}

func (that *Server) handleJoinGame(ctx context.Context, c *client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleJoinGame")

	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	var req joinGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	result, err := that.game.JoinGame(ctx, player, req.ID)
	if err != nil {
		return that.sendFailure(c, err)
	}

	log.Info("match started", "room", result.Room, "players", result.Players[0].Name+" vs "+result.Players[1].Name)

	that.broadcastToMatch(result.Players, eventStartGame, startGameResponse{
		Room:          result.Room,
		Players:       [2]string{result.Players[0].Name, result.Players[1].Name},
		Bet:           result.Bet,
		Rounds:        result.Rounds,
		CurrentRound:  1,
		CurrentTurnID: result.CurrentTurnID,
		ShuffleUsed:   result.ShuffleUsed,
	})

	that.broadcastPendingGames()

	return nil
}

func (that *Server) handleMakeMove(ctx context.Context, c *client, payload json.RawMessage) error {
	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	var req movePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	result, err := that.game.MakeMove(ctx, player.ID, req.Room, req.CardIndex)
	if err != nil {
		return that.sendFailure(c, err)
	}

	that.broadcastToMatch(result.Players, eventCardOpened, cardOpenedResponse{
		By:        result.By.Name,
		CardIndex: result.CardIndex,
		Value:     result.Value,
	})

	switch {
	case result.MatchOver:
		that.announceMatchOver(result)
	case result.RoundOver:
		that.announceRoundOver(result)
	default:
		that.broadcastToMatch(result.Players, eventTurn, turnResponse{
			CurrentTurnID: result.CurrentTurnID,
			ShuffleUsed:   result.ShuffleUsed,
		})
	}

	return nil
}

func (that *Server) handleShuffleDeck(_ context.Context, c *client, payload json.RawMessage) error {
	player := c.currentPlayer()
	if player == nil {
		return that.sendError(c, "login required")
	}

	var req shufflePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	result, err := that.game.ShuffleDeck(player.ID, req.Room)
	if err != nil {
		return that.sendFailure(c, err)
	}

	that.broadcastToMatch(result.Players, eventDeckShuffled, deckShuffledResponse{
		By:          result.By.Name,
		ShuffleUsed: result.ShuffleUsed,
	})

	that.broadcastToMatch(result.Players, eventTurn, turnResponse{
		CurrentTurnID: result.CurrentTurnID,
		ShuffleUsed:   result.ShuffleUsed,
	})

	return nil
}

// announceRoundOver - broadcasts the round outcome and schedules the next
// round after the announcement pause. The pause lives here, outside the state
// machine.
func (that *Server) announceRoundOver(result *usecase.MoveResult) {
	that.broadcastToMatch(result.Players, eventRoundOver, roundOverResponse{
		Round:     result.RoundNumber,
		Winner:    result.RoundWinner.Name,
		RoundWins: result.RoundWins,
	})

	room := result.Room
	players := result.Players

	time.AfterFunc(that.roundPause, func() {
		that.startNextRound(room, players)
	})
}

func (that *Server) startNextRound(room string, players [2]*entity.Player) {
	log := that.logger.With("method", "startNextRound", "room", room)

	result, err := that.game.StartNextRound(room)
	if err != nil {
		// the match may have ended by forfeit during the pause
		log.Info("next round not started", "error", err)
		return
	}

	that.broadcastToMatch(players, eventNewRound, newRoundResponse{
		Round:     result.Round,
		RoundWins: result.RoundWins,
	})

	that.broadcastToMatch(players, eventTurn, turnResponse{
		CurrentTurnID: result.CurrentTurnID,
		ShuffleUsed:   result.ShuffleUsed,
	})
}

// announceMatchOver - broadcasts the final outcome and fresh balances.
func (that *Server) announceMatchOver(result *usecase.MoveResult) {
	that.broadcastToMatch(result.Players, eventRoundOver, roundOverResponse{
		Round:     result.RoundNumber,
		Winner:    result.RoundWinner.Name,
		RoundWins: result.RoundWins,
	})

	that.broadcastToMatch(result.Players, eventGameOver, gameOverResponse{
		MatchWinner: result.MatchWinner.Name,
		RoundWins:   result.RoundWins,
	})

	that.sendBalances(result.Players, result.Balances)
}

// announceForfeit - tells the remaining participant the match is over.
func (that *Server) announceForfeit(result *usecase.ForfeitResult) {
	that.broadcastToMatch(result.Players, eventGameOver, gameOverResponse{
		MatchWinner: result.MatchWinner.Name,
		RoundWins:   result.RoundWins,
	})

	that.sendBalances(result.Players, result.Balances)
}

func (that *Server) sendBalances(players [2]*entity.Player, balances map[string]int64) {
	for _, player := range players {
		balance, ok := balances[player.ID]
		if !ok {
			continue
		}

		that.sendToPlayer(player.ID, eventBalance, balanceResponse{Balance: balance})
	}
}

// sendFailure - reports the root cause, so clients see the sentinel text
// rather than the wrapping added on the way up.
func (that *Server) sendFailure(c *client, err error) error {
	for {
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}

	return that.sendError(c, err.Error())
}

func (that *Server) sendError(c *client, msg string) error {
	if err := c.send(eventErrorMsg, errorResponse{Msg: msg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
