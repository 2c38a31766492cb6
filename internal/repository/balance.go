package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
)

type BalanceRepository interface {
	Init(ctx context.Context, playerID string, amount int64) error
	Get(ctx context.Context, playerID string) (int64, error)
	Transfer(ctx context.Context, fromID, toID string, amount int64) error
}

type dbBalance struct {
	client *redis.Client
}

func NewBalanceRepository(client *redis.Client) BalanceRepository {
	return &dbBalance{
		client: client,
	}
}

// Init - sets the starting stake for a player, keeping an existing balance
// untouched on reconnect.
func (that *dbBalance) Init(ctx context.Context, playerID string, amount int64) error {
	balanceKey := "balance:" + playerID

	if err := that.client.SetNX(ctx, balanceKey, amount, 0).Err(); err != nil {
		return fmt.Errorf("failed to init balance: %w", err)
	}

	return nil
}

func (that *dbBalance) Get(ctx context.Context, playerID string) (int64, error) {
	balanceKey := "balance:" + playerID

	balance, err := that.client.Get(ctx, balanceKey).Int64()

	if errors.Is(err, redis.Nil) {
		return 0, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// Transfer - moves amount from one balance to another. Both mutations run in
// a single MULTI/EXEC pipeline, so a concurrent Get never observes a
// half-applied transfer.
func (that *dbBalance) Transfer(ctx context.Context, fromID, toID string, amount int64) error {
	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.DecrBy(ctx, "balance:"+fromID, amount)
		pipe.IncrBy(ctx, "balance:"+toID, amount)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to transfer balance: %w", err)
	}

	return nil
}
