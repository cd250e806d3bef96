package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
)

// BagRepository handles stackable items: materials, gems and consumables.
type BagRepository struct {
	pool *pgxpool.Pool
}

// NewBagRepository creates a new BagRepository instance.
func NewBagRepository(pool *pgxpool.Pool) *BagRepository {
	return &BagRepository{pool: pool}
}

// Add puts qty of an item into a player's bag.
func (r *BagRepository) Add(ctx context.Context, playerID int64, itemID string, qty int) error {
	const query = `
		INSERT INTO bag_items (player_id, item_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (player_id, item_id)
		DO UPDATE SET quantity = bag_items.quantity + $3, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, playerID, itemID, qty); err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

// Remove takes qty of an item out of a player's bag. It fails with
// ErrInsufficientItems when the stack is too small.
func (r *BagRepository) Remove(ctx context.Context, playerID int64, itemID string, qty int) error {
	const query = `
		UPDATE bag_items
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE player_id = $1 AND item_id = $2 AND quantity >= $3
	`
	tag, err := r.pool.Exec(ctx, query, playerID, itemID, qty)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientItems
	}
	return nil
}

// Count returns how many of an item a player holds.
func (r *BagRepository) Count(ctx context.Context, playerID int64, itemID string) (int, error) {
	const query = `SELECT quantity FROM bag_items WHERE player_id = $1 AND item_id = $2`

	var qty int
	err := r.pool.QueryRow(ctx, query, playerID, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count item: %w", err)
	}
	return qty, nil
}

// List returns every non-empty stack in a player's bag.
func (r *BagRepository) List(ctx context.Context, playerID int64) ([]*model.BagItem, error) {
	const query = `
		SELECT player_id, item_id, quantity, updated_at
		FROM bag_items
		WHERE player_id = $1 AND quantity > 0
		ORDER BY item_id
	`
	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bag: %w", err)
	}
	defer rows.Close()

	var items []*model.BagItem
	for rows.Next() {
		var it model.BagItem
		if err := rows.Scan(&it.PlayerID, &it.ItemID, &it.Quantity, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bag item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bag: %w", err)
	}
	return items, nil
}

// Prune deletes empty stacks and returns how many were removed.
func (r *BagRepository) Prune(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bag_items WHERE quantity = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune bag: %w", err)
	}
	return tag.RowsAffected(), nil
}
