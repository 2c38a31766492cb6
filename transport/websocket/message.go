package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/neoo17/nft-burn-roulette/internal/entity"
)

// Inbound events (connection -> server).
const (
	eventLogin             = "login"
	eventCreateGame        = "create_game"
	eventCancelPendingGame = "cancel_pending_game"
	eventListGames         = "list_games"
	eventJoinGame          = "join_game"
	eventGetBalance        = "get_balance"
	eventMakeMove          = "make_move"
	eventShuffleDeck       = "shuffle_deck"
)

// Outbound events (server -> connection).
const (
	eventBalance      = "balance"
	eventLobby        = "lobby"
	eventPendingGames = "pending_games"
	eventStartGame    = "start_game"
	eventTurn         = "turn"
	eventCardOpened   = "card_opened"
	eventRoundOver    = "round_over"
	eventNewRound     = "new_round"
	eventGameOver     = "game_over"
	eventDeckShuffled = "deck_shuffled"
	eventErrorMsg     = "error_msg"
)

// Message represents a WebSocket message with an event name and a payload.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client is one live connection plus the identity bound to it. Writes go
// through a mutex because match broadcasts arrive from other players'
// read loops.
type client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	player *entity.Player
}

func (that *client) send(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = that.conn.WriteJSON(Message{Event: event, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *client) setPlayer(player *entity.Player) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.player = player
}

func (that *client) currentPlayer() *entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.player
}

// Inbound payloads.

type loginPayload struct {
	Name string `json:"name"`
}

type createGamePayload struct {
	Bet int64 `json:"bet"`
}

type joinGamePayload struct {
	ID string `json:"id"`
}

type movePayload struct {
	Room      string `json:"room"`
	CardIndex int    `json:"cardIndex"`
}

type shufflePayload struct {
	Room string `json:"room"`
}

// Outbound payloads. Shapes follow the original client contract exactly.

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type errorResponse struct {
	Msg string `json:"msg"`
}

type pendingGameResponse struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creatorId"`
	CreatorName string `json:"creatorName"`
	Bet         int64  `json:"bet"`
}

type startGameResponse struct {
	Room          string    `json:"room"`
	Players       [2]string `json:"players"`
	Bet           int64     `json:"bet"`
	Rounds        int       `json:"rounds"`
	CurrentRound  int       `json:"currentRound"`
	RoundWins     [2]int    `json:"roundWins"`
	CurrentTurnID string    `json:"currentTurnId"`
	ShuffleUsed   [2]bool   `json:"shuffleUsed"`
}

type turnResponse struct {
	CurrentTurnID string  `json:"currentTurnId"`
	ShuffleUsed   [2]bool `json:"shuffleUsed"`
}

type cardOpenedResponse struct {
	By        string `json:"by"`
	CardIndex int    `json:"cardIndex"`
	Value     string `json:"value"`
}

type roundOverResponse struct {
	Round     int    `json:"round"`
	Winner    string `json:"winner"`
	RoundWins [2]int `json:"roundWins"`
}

type newRoundResponse struct {
	Round     int    `json:"round"`
	RoundWins [2]int `json:"roundWins"`
}

type gameOverResponse struct {
	MatchWinner string `json:"matchWinner"`
	RoundWins   [2]int `json:"roundWins"`
}

type deckShuffledResponse struct {
	By          string  `json:"by"`
	ShuffleUsed [2]bool `json:"shuffleUsed"`
}

func pendingGamesPayload(games []*entity.PendingGame) []pendingGameResponse {
	list := make([]pendingGameResponse, 0, len(games))
	for _, game := range games {
		list = append(list, pendingGameResponse{
			ID:          game.ID,
			CreatorID:   game.CreatorID,
			CreatorName: game.CreatorName,
			Bet:         game.Bet,
		})
	}

	return list
}
