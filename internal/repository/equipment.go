package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cultivation-bot/internal/model"
)

const equipmentColumns = `id, owner_id, def_id, refine_level, durability, max_durability, sockets,
	COALESCE(equipped_slot, ''), created_at, updated_at`

// EquipmentRepository handles equipment documents. Sockets are stored as a
// JSONB array of gem item ids.
type EquipmentRepository struct {
	pool *pgxpool.Pool
}

// NewEquipmentRepository creates a new EquipmentRepository instance.
func NewEquipmentRepository(pool *pgxpool.Pool) *EquipmentRepository {
	return &EquipmentRepository{pool: pool}
}

func scanEquipment(row pgx.Row) (*model.Equipment, error) {
	var e model.Equipment
	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.DefID,
		&e.RefineLevel,
		&e.Durability,
		&e.MaxDurability,
		&e.Sockets,
		&e.EquippedSlot,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EquipmentRepository) queryList(ctx context.Context, query string, args ...any) ([]*model.Equipment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var list []*model.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equipment: %w", err)
	}
	return list, nil
}

// Create stores a new piece, assigning an id when it has none.
func (r *EquipmentRepository) Create(ctx context.Context, e *model.Equipment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Sockets == nil {
		e.Sockets = []string{}
	}
	const query = `
		INSERT INTO equipment (id, owner_id, def_id, refine_level, durability, max_durability, sockets,
			equipped_slot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		e.ID, e.OwnerID, e.DefID, e.RefineLevel, e.Durability, e.MaxDurability, e.Sockets, e.EquippedSlot,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	return nil
}

// GetByID retrieves one piece.
func (r *EquipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = $1`
	e, err := scanEquipment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEquipmentNotFound
		}
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return e, nil
}

// ListByOwner returns a player's pieces, worn ones first.
func (r *EquipmentRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Equipment, error) {
	query := `
		SELECT ` + equipmentColumns + `
		FROM equipment
		WHERE owner_id = $1
		ORDER BY equipped_slot IS NULL, created_at, id
	`
	return r.queryList(ctx, query, ownerID)
}

// Equipped returns the pieces a player is wearing.
func (r *EquipmentRepository) Equipped(ctx context.Context, ownerID int64) ([]*model.Equipment, error) {
	query := `
		SELECT ` + equipmentColumns + `
		FROM equipment
		WHERE owner_id = $1 AND equipped_slot IS NOT NULL
		ORDER BY equipped_slot
	`
	return r.queryList(ctx, query, ownerID)
}

// FindByPrefix returns a player's pieces whose id starts with prefix.
func (r *EquipmentRepository) FindByPrefix(ctx context.Context, ownerID int64, prefix string) ([]*model.Equipment, error) {
	query := `
		SELECT ` + equipmentColumns + `
		FROM equipment
		WHERE owner_id = $1 AND starts_with(id::text, $2::text)
		ORDER BY created_at
		LIMIT 5
	`
	return r.queryList(ctx, query, ownerID, prefix)
}

// Update stores refine level, durability and sockets of a piece.
func (r *EquipmentRepository) Update(ctx context.Context, e *model.Equipment) error {
	if e.Sockets == nil {
		e.Sockets = []string{}
	}
	const query = `
		UPDATE equipment
		SET refine_level = $2, durability = $3, sockets = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, e.ID, e.RefineLevel, e.Durability, e.Sockets)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// SetSlot equips a piece into slot, or unequips it when slot is empty.
func (r *EquipmentRepository) SetSlot(ctx context.Context, id uuid.UUID, slot string) error {
	const query = `UPDATE equipment SET equipped_slot = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, slot)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to set slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// Delete removes a piece.
func (r *EquipmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// WearEquipped lowers the durability of every worn, unbroken piece by n.
func (r *EquipmentRepository) WearEquipped(ctx context.Context, ownerID int64, n int) (int64, error) {
	const query = `
		UPDATE equipment
		SET durability = GREATEST(durability - $2, 0), updated_at = NOW()
		WHERE owner_id = $1 AND equipped_slot IS NOT NULL AND durability > 0
	`
	tag, err := r.pool.Exec(ctx, query, ownerID, n)
	if err != nil {
		return 0, fmt.Errorf("failed to wear equipment: %w", err)
	}
	return tag.RowsAffected(), nil
}
