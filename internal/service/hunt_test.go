package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

func newHuntService(e *testEnv, roll int) *HuntService {
	cfg := config.HuntConfig{Cooldown: time.Minute, MaxRounds: 20}
	return NewHuntService(e.db.stores(), e.items, cfg, e.locks, e.opts(fixed(roll))...)
}

func TestFight(t *testing.T) {
	player := realm.Stats{Attack: 10, Defense: 5, HP: 100}

	won, rounds, dealt, taken := Fight(player, &catalog.MonsterDef{HP: 20, Attack: 1}, 20)
	assert.True(t, won)
	assert.Equal(t, 2, rounds)
	assert.Equal(t, int64(20), dealt)
	assert.Equal(t, int64(1), taken)

	won, rounds, _, taken = Fight(player, &catalog.MonsterDef{HP: 1000, Attack: 500}, 20)
	assert.False(t, won)
	assert.Equal(t, 1, rounds)
	assert.Equal(t, int64(100), taken)

	won, rounds, _, _ = Fight(player, &catalog.MonsterDef{HP: 1000, Defense: 100}, 5)
	assert.False(t, won)
	assert.Equal(t, 5, rounds)
}

// TestFightBoundsProperty checks that a fight never deals more than the
// monster's hp, never takes more than the player's, and ends in time.
func TestFightBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		player := realm.Stats{
			Attack:  rapid.Int64Range(0, 1000).Draw(t, "atk"),
			Defense: rapid.Int64Range(0, 1000).Draw(t, "def"),
			HP:      rapid.Int64Range(1, 10_000).Draw(t, "hp"),
		}
		m := &catalog.MonsterDef{
			HP:      rapid.Int64Range(1, 10_000).Draw(t, "mhp"),
			Attack:  rapid.Int64Range(0, 1000).Draw(t, "matk"),
			Defense: rapid.Int64Range(0, 1000).Draw(t, "mdef"),
		}
		maxRounds := rapid.IntRange(1, 50).Draw(t, "rounds")

		won, rounds, dealt, taken := Fight(player, m, maxRounds)
		if rounds < 1 || rounds > maxRounds {
			t.Fatalf("rounds %d outside 1..%d", rounds, maxRounds)
		}
		if dealt > m.HP || taken > player.HP {
			t.Fatalf("overkill: dealt %d/%d taken %d/%d", dealt, m.HP, taken, player.HP)
		}
		if won != (dealt == m.HP) {
			t.Fatalf("won=%v but dealt %d of %d", won, dealt, m.HP)
		}
	})
}

func TestHunt_WinPaysAndDrops(t *testing.T) {
	e := newTestEnv()
	svc := newHuntService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)
	sword := e.piece(1, "wooden_sword", 0, 100, catalog.SlotWeapon)

	rep, err := svc.Hunt(ctx, 1, "rabbit")
	require.NoError(t, err)
	assert.True(t, rep.Won)
	assert.Equal(t, int64(50), rep.Exp)
	assert.Equal(t, int64(30), rep.Stones)
	require.Len(t, rep.Drops, 1)
	assert.Equal(t, "refine_stone", rep.Drops[0].Item.ID)
	assert.Equal(t, 2, rep.Drops[0].Qty)

	p := e.db.player(1)
	assert.Equal(t, int64(50), p.Exp)
	assert.Equal(t, int64(30), p.Stones)
	assert.Equal(t, 2, e.db.bagCount(1, "refine_stone"))
	assert.Equal(t, []string{model.LedgerHunt}, e.db.ledgerTypes(1))

	gear := e.db.gear(1)
	require.Len(t, gear, 1)
	assert.Equal(t, sword.ID, gear[0].ID)
	assert.Equal(t, 99, gear[0].Durability)
}

func TestHunt_Cooldown(t *testing.T) {
	e := newTestEnv()
	svc := newHuntService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)

	_, err := svc.Hunt(ctx, 1, "rabbit")
	require.NoError(t, err)

	e.clock.Advance(30 * time.Second)
	_, err = svc.Hunt(ctx, 1, "rabbit")
	require.ErrorIs(t, err, ErrCooldown)
	assert.Equal(t, 30*time.Second, svc.Cooldown(1))

	e.clock.Advance(30 * time.Second)
	_, err = svc.Hunt(ctx, 1, "rabbit")
	assert.NoError(t, err)
}

func TestHunt_LossPaysNothing(t *testing.T) {
	e := newTestEnv()
	svc := newHuntService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)

	rep, err := svc.Hunt(ctx, 1, "血狼")
	require.NoError(t, err)
	assert.False(t, rep.Won)
	assert.Zero(t, rep.Exp)
	assert.Empty(t, rep.Drops)
	assert.Zero(t, e.db.player(1).Stones)
	assert.Empty(t, e.db.ledgerTypes(1))
}

func TestHunt_Rejects(t *testing.T) {
	e := newTestEnv()
	svc := newHuntService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)

	_, err := svc.Hunt(ctx, 1, "tiger")
	assert.ErrorIs(t, err, ErrMonsterTooHigh)
	_, err = svc.Hunt(ctx, 1, "dragon")
	assert.ErrorIs(t, err, ErrUnknownMonster)

	rep, err := svc.Hunt(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, realm.QiRefining, rep.Monster.Realm)
}
