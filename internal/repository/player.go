package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

const playerColumns = `telegram_id, name, realm, exp, stones, sect_id, sect_role, contribution,
	daily_donated, sect_signed, last_sign_in, last_cultivate, created_at, updated_at`

// PlayerRepository handles player documents.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.TelegramID,
		&p.Name,
		&p.Realm,
		&p.Exp,
		&p.Stones,
		&p.SectID,
		&p.SectRole,
		&p.Contribution,
		&p.DailyDonated,
		&p.SectSigned,
		&p.LastSignIn,
		&p.LastCultivate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// queryPlayer runs a single-row query and maps a missing row to
// ErrPlayerNotFound.
func (r *PlayerRepository) queryPlayer(ctx context.Context, op, query string, args ...any) (*model.Player, error) {
	p, err := scanPlayer(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return p, nil
}

// Create inserts a new player with the given starting stones.
func (r *PlayerRepository) Create(ctx context.Context, telegramID int64, name string, stones int64) (*model.Player, error) {
	query := `
		INSERT INTO players (telegram_id, name, stones, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + playerColumns

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, telegramID, name, stones))
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return p, nil
}

// GetByID retrieves a player by Telegram ID.
func (r *PlayerRepository) GetByID(ctx context.Context, telegramID int64) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE telegram_id = $1`
	return r.queryPlayer(ctx, "get player", query, telegramID)
}

// GetOrCreate retrieves a player, creating one if it doesn't exist.
func (r *PlayerRepository) GetOrCreate(ctx context.Context, telegramID int64, name string, stones int64) (*model.Player, bool, error) {
	p, err := r.GetByID(ctx, telegramID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return nil, false, err
	}

	p, err = r.Create(ctx, telegramID, name, stones)
	if err != nil {
		// Another update may have created the player first.
		p, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
	return p, true, nil
}

// UpdateName updates a player's display name.
func (r *PlayerRepository) UpdateName(ctx context.Context, telegramID int64, name string) error {
	const query = `UPDATE players SET name = $2, updated_at = NOW() WHERE telegram_id = $1`
	return r.exec(ctx, "update name", query, telegramID, name)
}

// AddStones changes a player's stones by amount. A negative amount that
// would take the balance below zero fails with ErrInsufficientStones.
func (r *PlayerRepository) AddStones(ctx context.Context, telegramID, amount int64) (*model.Player, error) {
	query := `
		UPDATE players
		SET stones = stones + $2, updated_at = NOW()
		WHERE telegram_id = $1 AND stones + $2 >= 0
		RETURNING ` + playerColumns

	p, err := r.queryPlayer(ctx, "update stones", query, telegramID, amount)
	if errors.Is(err, ErrPlayerNotFound) {
		return nil, r.missingOr(ctx, telegramID, ErrInsufficientStones)
	}
	return p, err
}

// AddExp changes a player's cultivation, never below zero.
func (r *PlayerRepository) AddExp(ctx context.Context, telegramID, amount int64) (*model.Player, error) {
	query := `
		UPDATE players
		SET exp = GREATEST(exp + $2, 0), updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + playerColumns
	return r.queryPlayer(ctx, "update exp", query, telegramID, amount)
}

// SetRealm stores a new realm and exp after a breakthrough attempt.
func (r *PlayerRepository) SetRealm(ctx context.Context, telegramID int64, rl realm.Realm, exp int64) (*model.Player, error) {
	query := `
		UPDATE players
		SET realm = $2, exp = $3, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + playerColumns
	return r.queryPlayer(ctx, "set realm", query, telegramID, rl, exp)
}

// MarkSignIn stores the unix time of the last daily sign-in.
func (r *PlayerRepository) MarkSignIn(ctx context.Context, telegramID, at int64) error {
	const query = `UPDATE players SET last_sign_in = $2, updated_at = NOW() WHERE telegram_id = $1`
	return r.exec(ctx, "mark sign-in", query, telegramID, at)
}

// MarkCultivate stores the unix time of the last cultivation session.
func (r *PlayerRepository) MarkCultivate(ctx context.Context, telegramID, at int64) error {
	const query = `UPDATE players SET last_cultivate = $2, updated_at = NOW() WHERE telegram_id = $1`
	return r.exec(ctx, "mark cultivate", query, telegramID, at)
}

// JoinSect puts a player into a sect with role and fresh sect counters.
func (r *PlayerRepository) JoinSect(ctx context.Context, telegramID, sectID int64, role model.SectRole) error {
	const query = `
		UPDATE players
		SET sect_id = $2, sect_role = $3, contribution = 0, daily_donated = 0, sect_signed = FALSE,
			updated_at = NOW()
		WHERE telegram_id = $1
	`
	return r.exec(ctx, "join sect", query, telegramID, sectID, role)
}

// LeaveSect removes a player from their sect and clears sect counters.
func (r *PlayerRepository) LeaveSect(ctx context.Context, telegramID int64) error {
	const query = `
		UPDATE players
		SET sect_id = NULL, sect_role = '', contribution = 0, daily_donated = 0, sect_signed = FALSE,
			updated_at = NOW()
		WHERE telegram_id = $1
	`
	return r.exec(ctx, "leave sect", query, telegramID)
}

// ClearSect removes every member from a sect and returns how many left.
func (r *PlayerRepository) ClearSect(ctx context.Context, sectID int64) (int64, error) {
	const query = `
		UPDATE players
		SET sect_id = NULL, sect_role = '', contribution = 0, daily_donated = 0, sect_signed = FALSE,
			updated_at = NOW()
		WHERE sect_id = $1
	`
	tag, err := r.pool.Exec(ctx, query, sectID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sect members: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetSectRole changes a member's role.
func (r *PlayerRepository) SetSectRole(ctx context.Context, telegramID int64, role model.SectRole) error {
	const query = `UPDATE players SET sect_role = $2, updated_at = NOW() WHERE telegram_id = $1`
	return r.exec(ctx, "set sect role", query, telegramID, role)
}

// RecordDonation adds to a member's contribution and today's donation total.
func (r *PlayerRepository) RecordDonation(ctx context.Context, telegramID, amount int64) error {
	const query = `
		UPDATE players
		SET contribution = contribution + $2, daily_donated = daily_donated + $2, updated_at = NOW()
		WHERE telegram_id = $1
	`
	return r.exec(ctx, "record donation", query, telegramID, amount)
}

// MarkSectSigned flags today's sect sign-in and adds contribution. It
// returns false when the member already signed today.
func (r *PlayerRepository) MarkSectSigned(ctx context.Context, telegramID, contribution int64) (bool, error) {
	const query = `
		UPDATE players
		SET sect_signed = TRUE, contribution = contribution + $2, updated_at = NOW()
		WHERE telegram_id = $1 AND NOT sect_signed
	`
	tag, err := r.pool.Exec(ctx, query, telegramID, contribution)
	if err != nil {
		return false, fmt.Errorf("failed to mark sect sign-in: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetDaily clears every member's daily donation total and sect sign-in.
func (r *PlayerRepository) ResetDaily(ctx context.Context) (int64, error) {
	const query = `
		UPDATE players
		SET daily_donated = 0, sect_signed = FALSE
		WHERE daily_donated <> 0 OR sect_signed
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Members lists a sect's members by role then contribution.
func (r *PlayerRepository) Members(ctx context.Context, sectID int64) ([]*model.SectMember, error) {
	const query = `
		SELECT telegram_id, name, realm, sect_role, contribution
		FROM players
		WHERE sect_id = $1
		ORDER BY CASE sect_role WHEN 'leader' THEN 0 WHEN 'elder' THEN 1 ELSE 2 END,
			contribution DESC, telegram_id
	`
	rows, err := r.pool.Query(ctx, query, sectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*model.SectMember
	for rows.Next() {
		var m model.SectMember
		if err := rows.Scan(&m.TelegramID, &m.Name, &m.Realm, &m.Role, &m.Contribution); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// CountMembers returns how many players belong to a sect, and how many of
// them hold role.
func (r *PlayerRepository) CountMembers(ctx context.Context, sectID int64, role model.SectRole) (total, withRole int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE sect_role = $2)
		FROM players
		WHERE sect_id = $1
	`
	if err := r.pool.QueryRow(ctx, query, sectID, role).Scan(&total, &withRole); err != nil {
		return 0, 0, fmt.Errorf("failed to count members: %w", err)
	}
	return total, withRole, nil
}

// Top returns the strongest players by realm then exp.
func (r *PlayerRepository) Top(ctx context.Context, limit int) ([]*model.PlayerRank, error) {
	const query = `
		SELECT telegram_id, name, realm, exp
		FROM players
		ORDER BY realm DESC, exp DESC, telegram_id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	defer rows.Close()

	var ranks []*model.PlayerRank
	for rows.Next() {
		var pr model.PlayerRank
		if err := rows.Scan(&pr.TelegramID, &pr.Name, &pr.Realm, &pr.Exp); err != nil {
			return nil, fmt.Errorf("failed to scan player rank: %w", err)
		}
		ranks = append(ranks, &pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player ranks: %w", err)
	}
	return ranks, nil
}

// Transfer moves stones between two players and writes both ledger rows in
// one database transaction.
func (r *PlayerRepository) Transfer(ctx context.Context, fromID, toID, amount int64, outDesc, inDesc string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE players SET stones = stones - $2, updated_at = NOW()
			WHERE telegram_id = $1 AND stones >= $2
		`, fromID, amount)
		if err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.missingOr(ctx, fromID, ErrInsufficientStones)
		}

		tag, err = tx.Exec(ctx, `
			UPDATE players SET stones = stones + $2, updated_at = NOW()
			WHERE telegram_id = $1
		`, toID, amount)
		if err != nil {
			return fmt.Errorf("failed to credit receiver: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPlayerNotFound
		}

		const ledger = `INSERT INTO ledger (player_id, amount, type, description) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, ledger, fromID, -amount, model.LedgerGiftOut, outDesc); err != nil {
			return fmt.Errorf("failed to record gift out: %w", err)
		}
		if _, err := tx.Exec(ctx, ledger, toID, amount, model.LedgerGiftIn, inDesc); err != nil {
			return fmt.Errorf("failed to record gift in: %w", err)
		}
		return nil
	})
}

func (r *PlayerRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// missingOr returns ErrPlayerNotFound when the player does not exist and
// fallback otherwise.
func (r *PlayerRepository) missingOr(ctx context.Context, telegramID int64, fallback error) error {
	const query = `SELECT EXISTS(SELECT 1 FROM players WHERE telegram_id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check player existence: %w", err)
	}
	if !exists {
		return ErrPlayerNotFound
	}
	return fallback
}
