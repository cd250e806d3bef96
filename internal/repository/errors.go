// Package repository provides the PostgreSQL data access layer.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrEquipmentNotFound  = errors.New("equipment not found")
	ErrSectNotFound       = errors.New("sect not found")
	ErrBossNotFound       = errors.New("boss state not found")
	ErrInsufficientStones = errors.New("insufficient spirit stones")
	ErrInsufficientItems  = errors.New("insufficient items")
	ErrInsufficientFunds  = errors.New("insufficient sect funds")
	ErrSectNameTaken      = errors.New("sect name already taken")
	ErrAlreadyApplied     = errors.New("application already pending")
	ErrSlotTaken          = errors.New("equipment slot already occupied")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
