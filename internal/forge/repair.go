package forge

import (
	"errors"

	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

var ErrNothingToRepair = errors.New("equipment is at full durability")

// RepairCost returns the stone fee to restore missing durability points.
func RepairCost(missing, refineLevel int, r realm.Realm, pricePerPoint int64) int64 {
	if missing <= 0 {
		return 0
	}
	return int64(missing) * pricePerPoint * realm.Multiplier(r) * int64(100+10*refineLevel) / 100
}

// Missing returns how many durability points eq lacks.
func Missing(eq *model.Equipment) int {
	return max(eq.MaxDurability-eq.Durability, 0)
}

// Repair restores eq to full durability and returns the points restored.
func Repair(eq *model.Equipment) (int, error) {
	missing := Missing(eq)
	if missing == 0 {
		return 0, ErrNothingToRepair
	}
	eq.Durability = eq.MaxDurability
	return missing, nil
}

// Wear lowers durability by n, never below zero, and returns the points lost.
func Wear(eq *model.Equipment, n int) int {
	if n <= 0 || eq.Durability <= 0 {
		return 0
	}
	lost := min(n, eq.Durability)
	eq.Durability -= lost
	return lost
}
