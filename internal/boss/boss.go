// Package boss holds the world boss life cycle: lazy respawn, damage rolls
// and the reward split when a boss dies.
package boss

import (
	"cmp"
	"slices"
	"time"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

// Spawn returns a fresh state for def at now.
func Spawn(def *catalog.BossDef, now time.Time) *model.BossState {
	return &model.BossState{
		BossID:    def.ID,
		HP:        def.HP,
		MaxHP:     def.HP,
		SpawnedAt: now,
		Damage:    make(map[int64]int64),
	}
}

// ShouldRespawn reports whether a dead boss has waited its respawn time.
func ShouldRespawn(state *model.BossState, def *catalog.BossDef, now time.Time) bool {
	if state.KilledAt == nil {
		return false
	}
	return now.Sub(*state.KilledAt) >= def.Respawn
}

// RespawnIn returns the time left until a dead boss returns, 0 when it is
// alive or due.
func RespawnIn(state *model.BossState, def *catalog.BossDef, now time.Time) time.Duration {
	if state.KilledAt == nil {
		return 0
	}
	return max(def.Respawn-now.Sub(*state.KilledAt), 0)
}

// RollDamage returns one hit of attacker on the boss: the attack margin
// scaled by a random 90..110 percent, at least 1.
func RollDamage(attacker realm.Stats, def *catalog.BossDef, r forge.Roller) int64 {
	base := max(attacker.Attack-def.Defense, 1)
	pct := int64(90 + r.Intn(21))
	return max(base*pct/100, 1)
}

// Hit records damage by player and reports whether it killed the boss. Only
// damage up to the remaining hp counts.
func Hit(state *model.BossState, playerID, damage int64, now time.Time) (dealt int64, killed bool) {
	if !state.Alive() || damage <= 0 {
		return 0, false
	}
	dealt = min(damage, state.HP)
	state.HP -= dealt
	if state.Damage == nil {
		state.Damage = make(map[int64]int64)
	}
	state.Damage[playerID] += dealt
	if state.HP == 0 {
		killedAt := now
		state.KilledAt = &killedAt
		return dealt, true
	}
	return dealt, false
}

// Share is one participant's reward.
type Share struct {
	PlayerID int64
	Damage   int64
	Stones   int64
	Killer   bool
	TopDrop  string
}

// Split divides the stone pool by damage share. The killer gets the bonus on
// top; the highest damage dealer (lowest id on ties) gets the top drop.
// Shares are ordered by damage, highest first.
func Split(def *catalog.BossDef, damage map[int64]int64, killerID int64) []Share {
	var total int64
	shares := make([]Share, 0, len(damage))
	for id, d := range damage {
		if d <= 0 {
			continue
		}
		total += d
		shares = append(shares, Share{PlayerID: id, Damage: d})
	}
	if total == 0 {
		return nil
	}
	slices.SortFunc(shares, func(a, b Share) int {
		return cmp.Or(cmp.Compare(b.Damage, a.Damage), cmp.Compare(a.PlayerID, b.PlayerID))
	})
	for i := range shares {
		shares[i].Stones = def.StonePool * shares[i].Damage / total
		if shares[i].PlayerID == killerID {
			shares[i].Killer = true
			shares[i].Stones += def.KillerBonus
		}
	}
	shares[0].TopDrop = def.TopDrop
	return shares
}
