package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
)

// LedgerRepository records spirit stone movements.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Create writes a ledger entry.
func (r *LedgerRepository) Create(ctx context.Context, playerID, amount int64, entryType string, description *string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger (player_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, player_id, amount, type, description, created_at
	`

	var e model.LedgerEntry
	err := r.pool.QueryRow(ctx, query, playerID, amount, entryType, description).Scan(
		&e.ID,
		&e.PlayerID,
		&e.Amount,
		&e.Type,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return &e, nil
}

// ListByPlayer returns a player's latest entries, newest first.
func (r *LedgerRepository) ListByPlayer(ctx context.Context, playerID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, player_id, amount, type, description, created_at
		FROM ledger
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}
	return entries, nil
}

// DailyEarners returns the players who gained the most stones from hunts,
// bosses and sign-ins on the day of date, in date's location.
func (r *LedgerRepository) DailyEarners(ctx context.Context, date time.Time, limit int) ([]*model.EarnerRank, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	const query = `
		SELECT l.player_id, p.name, SUM(l.amount) AS earned
		FROM ledger l
		JOIN players p ON p.telegram_id = l.player_id
		WHERE l.type = ANY($1)
		  AND l.created_at >= $2
		  AND l.created_at < $3
		GROUP BY l.player_id, p.name
		HAVING SUM(l.amount) > 0
		ORDER BY earned DESC, l.player_id
		LIMIT $4
	`
	types := []string{model.LedgerHunt, model.LedgerBoss, model.LedgerSignIn, model.LedgerSectSignIn}
	rows, err := r.pool.Query(ctx, query, types, startOfDay, endOfDay, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily earners: %w", err)
	}
	defer rows.Close()

	var ranks []*model.EarnerRank
	for rows.Next() {
		var rank model.EarnerRank
		if err := rows.Scan(&rank.TelegramID, &rank.Name, &rank.Earned); err != nil {
			return nil, fmt.Errorf("failed to scan earner: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earners: %w", err)
	}
	return ranks, nil
}
