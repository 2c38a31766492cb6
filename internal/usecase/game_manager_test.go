package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
	"github.com/neoo17/nft-burn-roulette/internal/entity"
)

// In-memory repository fakes so manager tests run without Redis.

type fakePlayerRepo struct {
	mu     sync.Mutex
	byID   map[string]*entity.Player
	byName map[string]string
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{
		byID:   make(map[string]*entity.Player),
		byName: make(map[string]string),
	}
}

func (that *fakePlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.byID[player.ID] = player
	that.byName[player.Name] = player.ID

	return nil
}

func (that *fakePlayerRepo) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.byID[id]
	if !ok {
		return &entity.Player{}, apperror.ErrPlayerNotFound
	}

	return player, nil
}

func (that *fakePlayerRepo) GetByName(_ context.Context, name string) (*entity.Player, error) {
	that.mu.Lock()
	id, ok := that.byName[name]
	that.mu.Unlock()

	if !ok {
		return &entity.Player{}, apperror.ErrPlayerNotFound
	}

	return that.GetByID(context.Background(), id)
}

type fakeBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: make(map[string]int64)}
}

func (that *fakeBalanceRepo) Init(_ context.Context, playerID string, amount int64) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.balances[playerID]; !ok {
		that.balances[playerID] = amount
	}

	return nil
}

func (that *fakeBalanceRepo) Get(_ context.Context, playerID string) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	balance, ok := that.balances[playerID]
	if !ok {
		return 0, apperror.ErrPlayerNotFound
	}

	return balance, nil
}

func (that *fakeBalanceRepo) Transfer(_ context.Context, fromID, toID string, amount int64) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.balances[fromID] -= amount
	that.balances[toID] += amount

	return nil
}

// slowPlayerRepo stretches the create round trip so interleavings that need a
// window between GetByName and CreateOrUpdate actually happen.
type slowPlayerRepo struct {
	*fakePlayerRepo
	delay time.Duration
}

func (that *slowPlayerRepo) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	time.Sleep(that.delay)

	return that.fakePlayerRepo.CreateOrUpdate(ctx, player)
}

// hookedPlayerRepo lets a test run code or inject a failure inside the
// creator fetch of a join.
type hookedPlayerRepo struct {
	*fakePlayerRepo
	onGetByID  func(id string)
	getByIDErr error
}

func (that *hookedPlayerRepo) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	if that.onGetByID != nil {
		that.onGetByID(id)
	}

	if that.getByIDErr != nil {
		return &entity.Player{}, that.getByIDErr
	}

	return that.fakePlayerRepo.GetByID(ctx, id)
}

func newTestManager(t *testing.T) *GameManager {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewGameManager(logger, newFakePlayerRepo(), newFakeBalanceRepo(), 1000, 3)
}

func login(t *testing.T, manager *GameManager, name string) *entity.Player {
	t.Helper()

	player, balance, err := manager.Login(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance)

	return player
}

func TestGameManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates an identity with the starting stake", func(t *testing.T) {
		manager := newTestManager(t)

		player, balance, err := manager.Login(ctx, "alice")

		require.NoError(t, err)
		assert.NotEmpty(t, player.ID)
		assert.Equal(t, "alice", player.Name)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("A returning name keeps its identity and balance", func(t *testing.T) {
		manager := newTestManager(t)

		first, _, err := manager.Login(ctx, "alice")
		require.NoError(t, err)

		second, balance, err := manager.Login(ctx, "alice")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("Concurrent logins with the same fresh name mint one identity", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo := &slowPlayerRepo{fakePlayerRepo: newFakePlayerRepo(), delay: 5 * time.Millisecond}
		manager := NewGameManager(logger, repo, newFakeBalanceRepo(), 1000, 3)

		const attempts = 10
		ids := make(chan string, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				player, balance, err := manager.Login(ctx, "alice")
				assert.NoError(t, err)
				assert.Equal(t, int64(1000), balance)
				ids <- player.ID
			}()
		}
		wg.Wait()
		close(ids)

		unique := make(map[string]struct{})
		for id := range ids {
			unique[id] = struct{}{}
		}

		assert.Len(t, unique, 1)
	})
}

func TestGameManager_CreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects a non-positive bet", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		_, err := manager.CreateGame(ctx, alice, 0)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrInvalidBet)
	})

	t.Run("Rejects a bet above the creator's balance", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		_, err := manager.CreateGame(ctx, alice, 2000)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
	})

	t.Run("Rejects a second pending game from the same creator", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		_, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		_, err = manager.CreateGame(ctx, alice, 50)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrAlreadyInMatch)
	})

	t.Run("A created game is visible in the pending list", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		games := manager.ListGames()
		require.Len(t, games, 1)
		assert.Equal(t, game.ID, games[0].ID)
		assert.Equal(t, "alice", games[0].CreatorName)
		assert.Equal(t, int64(100), games[0].Bet)
	})
}

func TestGameManager_CancelGame(t *testing.T) {
	ctx := context.Background()

	manager := newTestManager(t)
	alice := login(t, manager, "alice")

	// Cancel with nothing pending is a no-op
	assert.False(t, manager.CancelGame(alice.ID))

	_, err := manager.CreateGame(ctx, alice, 100)
	require.NoError(t, err)

	// When: the creator cancels the pending game
	assert.True(t, manager.CancelGame(alice.ID))

	// Then: the pending list is empty and a new game can be created
	assert.Empty(t, manager.ListGames())
	_, err = manager.CreateGame(ctx, alice, 100)
	require.NoError(t, err)
}

func TestGameManager_JoinGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects a stale game id", func(t *testing.T) {
		manager := newTestManager(t)
		bob := login(t, manager, "bob")

		_, err := manager.JoinGame(ctx, bob, "missing")

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Rejects joining your own game", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		_, err = manager.JoinGame(ctx, alice, game.ID)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrSelfJoin)
	})

	t.Run("Promotes the pending game to a live match", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")
		bob := login(t, manager, "bob")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		result, err := manager.JoinGame(ctx, bob, game.ID)

		require.NoError(t, err)
		assert.Equal(t, game.ID, result.Room)
		assert.Equal(t, "alice", result.Players[0].Name)
		assert.Equal(t, "bob", result.Players[1].Name)
		assert.Equal(t, int64(100), result.Bet)
		assert.Equal(t, 3, result.Rounds)
		// the creator takes the first turn
		assert.Equal(t, alice.ID, result.CurrentTurnID)
		// the pending game is consumed
		assert.Empty(t, manager.ListGames())
	})

	t.Run("Exactly one joiner wins a race on the same pending game", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")
		bob := login(t, manager, "bob")
		carol := login(t, manager, "carol")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		errCh := make(chan error, 2)
		var wg sync.WaitGroup
		for _, joiner := range []*entity.Player{bob, carol} {
			wg.Add(1)
			go func(j *entity.Player) {
				defer wg.Done()
				_, joinErr := manager.JoinGame(ctx, j, game.ID)
				errCh <- joinErr
			}(joiner)
		}
		wg.Wait()
		close(errCh)

		var wins, losses int
		for joinErr := range errCh {
			if joinErr == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, joinErr, apperror.ErrGameNotFound)
			losses++
		}

		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, losses)
	})

	t.Run("A creator disconnect during the join aborts the match", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo := &hookedPlayerRepo{fakePlayerRepo: newFakePlayerRepo()}
		manager := NewGameManager(logger, repo, newFakeBalanceRepo(), 1000, 3)

		alice := login(t, manager, "alice")
		bob := login(t, manager, "bob")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		// Given: the creator disconnects while the join is fetching them
		repo.onGetByID = func(_ string) {
			manager.Disconnect(ctx, alice.ID)
		}

		// When: bob joins the now-closed game
		_, err = manager.JoinGame(ctx, bob, game.ID)

		// Then: no match is installed and both players remain free
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.Empty(t, manager.ListGames())

		repo.onGetByID = nil
		_, err = manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)
		_, err = manager.CreateGame(ctx, bob, 100)
		require.NoError(t, err)
	})

	t.Run("A failed creator fetch leaves the pending game in the lobby", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo := &hookedPlayerRepo{fakePlayerRepo: newFakePlayerRepo()}
		manager := NewGameManager(logger, repo, newFakeBalanceRepo(), 1000, 3)

		alice := login(t, manager, "alice")
		bob := login(t, manager, "bob")

		game, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		// When: the creator fetch fails transiently
		repo.getByIDErr = errors.New("connection refused")
		_, err = manager.JoinGame(ctx, bob, game.ID)
		require.Error(t, err)

		// Then: the game is still joinable once the store recovers
		require.Len(t, manager.ListGames(), 1)

		repo.getByIDErr = nil
		result, err := manager.JoinGame(ctx, bob, game.ID)
		require.NoError(t, err)
		assert.Equal(t, game.ID, result.Room)
	})
}

// startMatch logs in two players, creates and joins a game, and hands back the
// live match so the test can plant deterministic decks.
func startMatch(t *testing.T, manager *GameManager) (*entity.Player, *entity.Player, *entity.Match) {
	t.Helper()

	ctx := context.Background()

	alice := login(t, manager, "alice")
	bob := login(t, manager, "bob")

	game, err := manager.CreateGame(ctx, alice, 100)
	require.NoError(t, err)

	result, err := manager.JoinGame(ctx, bob, game.ID)
	require.NoError(t, err)

	session, err := manager.session(result.Room)
	require.NoError(t, err)

	return alice, bob, session.match
}

func TestGameManager_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects a move out of turn without touching the deck", func(t *testing.T) {
		manager := newTestManager(t)
		_, bob, match := startMatch(t, manager)

		_, err := manager.MakeMove(ctx, bob.ID, match.ID, 0)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, 0, match.Round.Deck.OpenedCount())
	})

	t.Run("Rejects a player outside the match", func(t *testing.T) {
		manager := newTestManager(t)
		_, _, match := startMatch(t, manager)
		carol := login(t, manager, "carol")

		_, err := manager.MakeMove(ctx, carol.ID, match.ID, 0)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrNotInMatch)
	})

	t.Run("Plays a full best-of-3 match and settles the bet", func(t *testing.T) {
		manager := newTestManager(t)
		alice, bob, match := startMatch(t, manager)

		// Round 1: alice opens the burn card, bob wins the round.
		match.Round.Deck = entity.NewDeck(0)
		result, err := manager.MakeMove(ctx, alice.ID, match.ID, 0)
		require.NoError(t, err)

		assert.Equal(t, "burn", result.Value)
		assert.True(t, result.RoundOver)
		assert.False(t, result.MatchOver)
		assert.Equal(t, 1, result.RoundNumber)
		assert.Equal(t, "bob", result.RoundWinner.Name)
		assert.Equal(t, [2]int{0, 1}, result.RoundWins)

		// Round 2: alice (the loser) starts; bob opens the burn card.
		newRound, err := manager.StartNextRound(match.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, newRound.Round)
		assert.Equal(t, alice.ID, newRound.CurrentTurnID)

		match.Round.Deck = entity.NewDeck(3)
		_, err = manager.MakeMove(ctx, alice.ID, match.ID, 1)
		require.NoError(t, err)
		result, err = manager.MakeMove(ctx, bob.ID, match.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, [2]int{1, 1}, result.RoundWins)

		// Round 3: bob starts; alice opens the burn card, bob takes the match.
		newRound, err = manager.StartNextRound(match.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, newRound.CurrentTurnID)

		match.Round.Deck = entity.NewDeck(4)
		_, err = manager.MakeMove(ctx, bob.ID, match.ID, 0)
		require.NoError(t, err)
		result, err = manager.MakeMove(ctx, alice.ID, match.ID, 4)
		require.NoError(t, err)

		assert.True(t, result.MatchOver)
		assert.Equal(t, "bob", result.MatchWinner.Name)
		assert.Equal(t, [2]int{1, 2}, result.RoundWins)

		// Settlement: the bet moved from alice to bob
		assert.Equal(t, int64(900), result.Balances[alice.ID])
		assert.Equal(t, int64(1100), result.Balances[bob.ID])

		balance, err := manager.Balance(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(900), balance)

		// The match is gone from the live table
		_, err = manager.MakeMove(ctx, alice.ID, match.ID, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestGameManager_ShuffleDeck(t *testing.T) {
	ctx := context.Background()

	manager := newTestManager(t)
	alice, bob, match := startMatch(t, manager)

	// Given: alice reveals a safe card, bob shuffles on his turn
	match.Round.Deck = entity.NewDeck(5)
	_, err := manager.MakeMove(ctx, alice.ID, match.ID, 0)
	require.NoError(t, err)

	result, err := manager.ShuffleDeck(bob.ID, match.ID)
	require.NoError(t, err)

	assert.Equal(t, "bob", result.By.Name)
	assert.Equal(t, [2]bool{false, true}, result.ShuffleUsed)
	// the shuffle does not consume the turn
	assert.Equal(t, bob.ID, result.CurrentTurnID)
	assert.Equal(t, 0, match.Round.Deck.OpenedCount())

	// When: a round later bob tries to shuffle again
	match.Round.Deck = entity.NewDeck(1)
	_, err = manager.MakeMove(ctx, bob.ID, match.ID, 1) // bob opens burn
	require.NoError(t, err)
	_, err = manager.StartNextRound(match.ID)
	require.NoError(t, err)

	_, err = manager.ShuffleDeck(bob.ID, match.ID)

	// Then: the single per-match shuffle is exhausted
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrShuffleAlreadyUsed)
}

func TestGameManager_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Cancels the player's pending game", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		_, err := manager.CreateGame(ctx, alice, 100)
		require.NoError(t, err)

		result := manager.Disconnect(ctx, alice.ID)

		assert.True(t, result.CancelledGame)
		assert.Nil(t, result.Forfeit)
		assert.Empty(t, manager.ListGames())
	})

	t.Run("Forfeits a live match to the remaining player and settles", func(t *testing.T) {
		manager := newTestManager(t)
		alice, bob, match := startMatch(t, manager)

		result := manager.Disconnect(ctx, alice.ID)

		require.NotNil(t, result.Forfeit)
		assert.Equal(t, match.ID, result.Forfeit.Room)
		assert.Equal(t, "bob", result.Forfeit.MatchWinner.Name)
		assert.Equal(t, int64(900), result.Forfeit.Balances[alice.ID])
		assert.Equal(t, int64(1100), result.Forfeit.Balances[bob.ID])

		// the match is gone; bob can open a new game
		_, err := manager.CreateGame(ctx, bob, 100)
		require.NoError(t, err)
	})

	t.Run("Is a no-op for a player in the lobby", func(t *testing.T) {
		manager := newTestManager(t)
		alice := login(t, manager, "alice")

		result := manager.Disconnect(ctx, alice.ID)

		assert.False(t, result.CancelledGame)
		assert.Nil(t, result.Forfeit)
	})
}

func TestGameManager_SettlementNeverNegative(t *testing.T) {
	ctx := context.Background()

	manager := newTestManager(t)
	alice, bob, match := startMatch(t, manager)

	// Given: the loser's balance dropped below the bet mid-match
	repo, ok := manager.balanceRepo.(*fakeBalanceRepo)
	require.True(t, ok)
	repo.mu.Lock()
	repo.balances[alice.ID] = 40
	repo.mu.Unlock()

	// When: alice forfeits a 100 bet match
	result := manager.Disconnect(ctx, alice.ID)

	// Then: the transfer is capped at the remaining balance
	require.NotNil(t, result.Forfeit)
	assert.Equal(t, int64(0), result.Forfeit.Balances[alice.ID])
	assert.Equal(t, int64(1040), result.Forfeit.Balances[bob.ID])
	assert.True(t, match.IsFinished())
}
