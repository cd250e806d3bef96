package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
)

const sectColumns = `id, name, leader_id, level, exp, funds, facilities, announcement, created_at, updated_at`

// SectRepository handles sect documents and their join applications.
// Facilities are stored as a JSONB object of facility name to level.
type SectRepository struct {
	pool *pgxpool.Pool
}

// NewSectRepository creates a new SectRepository instance.
func NewSectRepository(pool *pgxpool.Pool) *SectRepository {
	return &SectRepository{pool: pool}
}

func scanSect(row pgx.Row) (*model.Sect, error) {
	var s model.Sect
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.LeaderID,
		&s.Level,
		&s.Exp,
		&s.Funds,
		&s.Facilities,
		&s.Announcement,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if s.Facilities == nil {
		s.Facilities = make(map[string]int)
	}
	return &s, nil
}

func (r *SectRepository) querySect(ctx context.Context, op, query string, args ...any) (*model.Sect, error) {
	s, err := scanSect(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSectNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return s, nil
}

// Create founds a sect led by leaderID.
func (r *SectRepository) Create(ctx context.Context, name string, leaderID int64) (*model.Sect, error) {
	query := `
		INSERT INTO sects (name, leader_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + sectColumns

	s, err := scanSect(r.pool.QueryRow(ctx, query, name, leaderID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSectNameTaken
		}
		return nil, fmt.Errorf("failed to create sect: %w", err)
	}
	return s, nil
}

// GetByID retrieves a sect.
func (r *SectRepository) GetByID(ctx context.Context, id int64) (*model.Sect, error) {
	query := `SELECT ` + sectColumns + ` FROM sects WHERE id = $1`
	return r.querySect(ctx, "get sect", query, id)
}

// GetByName retrieves a sect by its unique name.
func (r *SectRepository) GetByName(ctx context.Context, name string) (*model.Sect, error) {
	query := `SELECT ` + sectColumns + ` FROM sects WHERE name = $1`
	return r.querySect(ctx, "get sect by name", query, name)
}

// AddFunds changes sect funds by amount. Spending below zero fails with
// ErrInsufficientFunds.
func (r *SectRepository) AddFunds(ctx context.Context, id, amount int64) (*model.Sect, error) {
	query := `
		UPDATE sects
		SET funds = funds + $2, updated_at = NOW()
		WHERE id = $1 AND funds + $2 >= 0
		RETURNING ` + sectColumns

	s, err := r.querySect(ctx, "update funds", query, id, amount)
	if errors.Is(err, ErrSectNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInsufficientFunds
	}
	return s, err
}

// Save stores leader, level, exp, facilities and announcement.
func (r *SectRepository) Save(ctx context.Context, s *model.Sect) error {
	if s.Facilities == nil {
		s.Facilities = make(map[string]int)
	}
	const query = `
		UPDATE sects
		SET leader_id = $2, level = $3, exp = $4, facilities = $5, announcement = $6, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, s.ID, s.LeaderID, s.Level, s.Exp, s.Facilities, s.Announcement)
	if err != nil {
		return fmt.Errorf("failed to save sect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSectNotFound
	}
	return nil
}

// Delete removes a sect and, by cascade, its applications.
func (r *SectRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSectNotFound
	}
	return nil
}

// Top returns sects by level then exp with their member counts.
func (r *SectRepository) Top(ctx context.Context, limit int) ([]*model.SectRank, error) {
	const query = `
		SELECT s.id, s.name, s.level, s.exp, COUNT(p.telegram_id)
		FROM sects s
		LEFT JOIN players p ON p.sect_id = s.id
		GROUP BY s.id
		ORDER BY s.level DESC, s.exp DESC, s.id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top sects: %w", err)
	}
	defer rows.Close()

	var ranks []*model.SectRank
	for rows.Next() {
		var sr model.SectRank
		if err := rows.Scan(&sr.ID, &sr.Name, &sr.Level, &sr.Exp, &sr.Members); err != nil {
			return nil, fmt.Errorf("failed to scan sect rank: %w", err)
		}
		ranks = append(ranks, &sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sect ranks: %w", err)
	}
	return ranks, nil
}

// Apply records a request by playerID to join sectID.
func (r *SectRepository) Apply(ctx context.Context, sectID, playerID int64) error {
	const query = `
		INSERT INTO sect_applications (sect_id, player_id, created_at)
		VALUES ($1, $2, NOW())
	`
	if _, err := r.pool.Exec(ctx, query, sectID, playerID); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("failed to apply: %w", err)
	}
	return nil
}

// Applications lists pending requests for a sect, oldest first.
func (r *SectRepository) Applications(ctx context.Context, sectID int64) ([]*model.SectApplication, error) {
	const query = `
		SELECT a.sect_id, a.player_id, p.name, a.created_at
		FROM sect_applications a
		JOIN players p ON p.telegram_id = a.player_id
		WHERE a.sect_id = $1
		ORDER BY a.created_at
	`
	rows, err := r.pool.Query(ctx, query, sectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.SectApplication
	for rows.Next() {
		var a model.SectApplication
		if err := rows.Scan(&a.SectID, &a.PlayerID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}
	return apps, nil
}

// DeleteApplication removes one request and reports whether it existed.
func (r *SectRepository) DeleteApplication(ctx context.Context, sectID, playerID int64) (bool, error) {
	const query = `DELETE FROM sect_applications WHERE sect_id = $1 AND player_id = $2`
	tag, err := r.pool.Exec(ctx, query, sectID, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete application: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearApplications removes every request made by a player.
func (r *SectRepository) ClearApplications(ctx context.Context, playerID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sect_applications WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("failed to clear applications: %w", err)
	}
	return nil
}
