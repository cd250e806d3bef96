package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
)

// BossRepository handles world boss state documents and the kill history.
// The damage ledger is a JSONB object of player id to damage.
type BossRepository struct {
	pool *pgxpool.Pool
}

// NewBossRepository creates a new BossRepository instance.
func NewBossRepository(pool *pgxpool.Pool) *BossRepository {
	return &BossRepository{pool: pool}
}

// Get retrieves a boss state.
func (r *BossRepository) Get(ctx context.Context, bossID string) (*model.BossState, error) {
	const query = `
		SELECT boss_id, hp, max_hp, spawned_at, killed_at, damage
		FROM boss_states
		WHERE boss_id = $1
	`
	var st model.BossState
	err := r.pool.QueryRow(ctx, query, bossID).Scan(
		&st.BossID,
		&st.HP,
		&st.MaxHP,
		&st.SpawnedAt,
		&st.KilledAt,
		&st.Damage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBossNotFound
		}
		return nil, fmt.Errorf("failed to get boss state: %w", err)
	}
	if st.Damage == nil {
		st.Damage = make(map[int64]int64)
	}
	return &st, nil
}

// Save upserts a boss state.
func (r *BossRepository) Save(ctx context.Context, st *model.BossState) error {
	if st.Damage == nil {
		st.Damage = make(map[int64]int64)
	}
	const query = `
		INSERT INTO boss_states (boss_id, hp, max_hp, spawned_at, killed_at, damage, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (boss_id) DO UPDATE
		SET hp = EXCLUDED.hp, max_hp = EXCLUDED.max_hp, spawned_at = EXCLUDED.spawned_at,
			killed_at = EXCLUDED.killed_at, damage = EXCLUDED.damage, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, st.BossID, st.HP, st.MaxHP, st.SpawnedAt, st.KilledAt, st.Damage)
	if err != nil {
		return fmt.Errorf("failed to save boss state: %w", err)
	}
	return nil
}

// RecordKill appends a kill to the history.
func (r *BossRepository) RecordKill(ctx context.Context, k *model.BossKill) error {
	const query = `
		INSERT INTO boss_kills (boss_id, killer_id, top_damage_id, participants, killed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, k.BossID, k.KillerID, k.TopDamageID, k.Participants, k.KilledAt).Scan(&k.ID)
	if err != nil {
		return fmt.Errorf("failed to record boss kill: %w", err)
	}
	return nil
}

// RecentKills returns the latest kills of a boss, newest first.
func (r *BossRepository) RecentKills(ctx context.Context, bossID string, limit int) ([]*model.BossKill, error) {
	const query = `
		SELECT id, boss_id, killer_id, top_damage_id, participants, killed_at
		FROM boss_kills
		WHERE boss_id = $1
		ORDER BY killed_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, bossID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list boss kills: %w", err)
	}
	defer rows.Close()

	var kills []*model.BossKill
	for rows.Next() {
		var k model.BossKill
		if err := rows.Scan(&k.ID, &k.BossID, &k.KillerID, &k.TopDamageID, &k.Participants, &k.KilledAt); err != nil {
			return nil, fmt.Errorf("failed to scan boss kill: %w", err)
		}
		kills = append(kills, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boss kills: %w", err)
	}
	return kills, nil
}
