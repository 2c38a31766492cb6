package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neoo17/nft-burn-roulette/internal/entity"
	"github.com/neoo17/nft-burn-roulette/internal/usecase"
)

type gameManager interface {
	Login(ctx context.Context, name string) (*entity.Player, int64, error)
	Balance(ctx context.Context, playerID string) (int64, error)

	CreateGame(ctx context.Context, player *entity.Player, bet int64) (*entity.PendingGame, error)
	ListGames() []*entity.PendingGame
	CancelGame(playerID string) bool
	JoinGame(ctx context.Context, joiner *entity.Player, gameID string) (*usecase.StartGameResult, error)

	MakeMove(ctx context.Context, playerID, room string, cardIndex int) (*usecase.MoveResult, error)
	ShuffleDeck(playerID, room string) (*usecase.ShuffleResult, error)
	StartNextRound(room string) (*usecase.NewRoundResult, error)

	Disconnect(ctx context.Context, playerID string) *usecase.DisconnectResult
}

type handlerFunc func(ctx context.Context, client *client, payload json.RawMessage) error

// Server is the protocol dispatcher: it translates inbound events into
// operations on the game manager and fans the results back out to the
// affected connections. It owns no game logic.
type Server struct {
	logger     *slog.Logger
	game       gameManager
	roundPause time.Duration
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	byPlayer map[string]*client

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, game gameManager, roundPause time.Duration) *Server {
	server := &Server{
		logger:     logger,
		game:       game,
		roundPause: roundPause,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		byPlayer: make(map[string]*client),
		handlers: make(map[string]handlerFunc),
	}

	server.handlers[eventLogin] = server.handleLogin
	server.handlers[eventCreateGame] = server.handleCreateGame
	server.handlers[eventCancelPendingGame] = server.handleCancelPendingGame
	server.handlers[eventListGames] = server.handleListGames
	server.handlers[eventJoinGame] = server.handleJoinGame
	server.handlers[eventGetBalance] = server.handleGetBalance
	server.handlers[eventMakeMove] = server.handleMakeMove
	server.handlers[eventShuffleDeck] = server.handleShuffleDeck

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 0, // a connection idles while its player waits for the opponent
		IdleTimeout: 0,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection - upgrades the connection and runs its read loop.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{conn: conn}

	defer that.closeConnection(ctx, c)

	log.Info("WebSocket connection established", "remote", conn.RemoteAddr().String())

	for {
		var message Message
		if err = conn.ReadJSON(&message); err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		handler, ok := that.handlers[message.Event]
		if !ok {
			log.Warn("unknown event", "event", message.Event)
			continue
		}

		if err = handler(ctx, c, message.Payload); err != nil {
			log.Error("error processing event", "event", message.Event, "error", err)
		}
	}
}

// closeConnection - unbinds the connection and applies the disconnect policy:
// a pending game is cancelled, a live match is forfeited to the opponent.
func (that *Server) closeConnection(ctx context.Context, c *client) {
	defer c.conn.Close()

	player := c.currentPlayer()
	if player == nil {
		return
	}

	log := that.logger.With("method", "closeConnection", "playerID", player.ID)

	that.mu.Lock()
	if that.byPlayer[player.ID] == c {
		delete(that.byPlayer, player.ID)
	}
	that.mu.Unlock()

	result := that.game.Disconnect(ctx, player.ID)

	if result.CancelledGame {
		that.broadcastPendingGames()
	}

	if result.Forfeit != nil {
		log.Info("player forfeited match by disconnecting", "room", result.Forfeit.Room)
		that.announceForfeit(result.Forfeit)
	}

	log.Info("player disconnected")
}

// bind - claims a player identity for this connection. Fails if the identity
// is already bound to another live connection.
func (that *Server) bind(c *client, player *entity.Player) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if existing, ok := that.byPlayer[player.ID]; ok && existing != c {
		return false
	}

	that.byPlayer[player.ID] = c
	c.setPlayer(player)

	return true
}

func (that *Server) clientByPlayerID(playerID string) (*client, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	c, ok := that.byPlayer[playerID]

	return c, ok
}

// sendToPlayer - delivers an event to a player's live connection, if any.
func (that *Server) sendToPlayer(playerID, event string, payload any) {
	c, ok := that.clientByPlayerID(playerID)
	if !ok {
		return
	}

	if err := c.send(event, payload); err != nil {
		that.logger.Error("failed to send event", "event", event, "playerID", playerID, "error", err)
	}
}

// broadcastToMatch - delivers the same event to both participants so their
// views stay consistent.
func (that *Server) broadcastToMatch(players [2]*entity.Player, event string, payload any) {
	for _, player := range players {
		that.sendToPlayer(player.ID, event, payload)
	}
}

// broadcastPendingGames - pushes the current pending list to every bound
// connection so lobby members see changes without polling.
func (that *Server) broadcastPendingGames() {
	payload := pendingGamesPayload(that.game.ListGames())

	that.mu.RLock()
	clients := make([]*client, 0, len(that.byPlayer))
	for _, c := range that.byPlayer {
		clients = append(clients, c)
	}
	that.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(eventPendingGames, payload); err != nil {
			that.logger.Error("failed to broadcast pending games", "error", err)
		}
	}
}
