package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/repository"
)

func newEquipmentService(e *testEnv, roll int) *EquipmentService {
	return NewEquipmentService(e.db.stores(), e.items, testForgeConfig(), e.locks, e.opts(fixed(roll))...)
}

func TestResolve(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)
	eq := e.piece(1, "wooden_sword", 0, 100, "")

	_, _, err := svc.Resolve(ctx, 1, "ab")
	assert.ErrorIs(t, err, ErrShortID)

	got, def, err := svc.Resolve(ctx, 1, eq.ShortID())
	require.NoError(t, err)
	assert.Equal(t, eq.ID, got.ID)
	assert.Equal(t, "木剑", def.Name)

	_, _, err = svc.Resolve(ctx, 2, eq.ShortID())
	assert.ErrorIs(t, err, repository.ErrEquipmentNotFound)

	for _, ref := range []string{"____", "%%%%", "ab%d", "zzzz", "ab cd"} {
		_, _, err = svc.Resolve(ctx, 1, ref)
		assert.ErrorIs(t, err, ErrBadRef, ref)
	}
}

func TestEquip_SwapsSlot(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)
	old := e.piece(1, "wooden_sword", 0, 100, catalog.SlotWeapon)
	next := e.piece(1, "iron_sword", 0, 100, "")

	eq, _, replaced, err := svc.Equip(ctx, 1, next.ShortID())
	require.NoError(t, err)
	assert.Equal(t, string(catalog.SlotWeapon), eq.EquippedSlot)
	require.NotNil(t, replaced)
	assert.Equal(t, old.ID, replaced.ID)

	worn, err := e.db.stores().Equipment.Equipped(ctx, 1)
	require.NoError(t, err)
	require.Len(t, worn, 1)
	assert.Equal(t, next.ID, worn[0].ID)

	_, _, _, err = svc.Equip(ctx, 1, next.ShortID())
	assert.ErrorIs(t, err, ErrAlreadyEquipped)

	blade := e.piece(1, "dragon_blade", 0, 200, "")
	_, _, _, err = svc.Equip(ctx, 1, blade.ShortID())
	assert.ErrorIs(t, err, ErrRealmTooLow)

	off, err := svc.Unequip(ctx, 1, catalog.SlotWeapon)
	require.NoError(t, err)
	assert.Equal(t, next.ID, off.ID)
	_, err = svc.Unequip(ctx, 1, catalog.SlotWeapon)
	assert.ErrorIs(t, err, ErrSlotEmpty)
}

func TestRefine_Success(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 500)
	eq := e.piece(1, "iron_sword", 0, 100, catalog.SlotWeapon)

	_, err := svc.Refine(ctx, 1, eq.ShortID(), false)
	assert.ErrorIs(t, err, ErrNoRefineStones)

	e.give(1, "refine_stone", 1)
	rep, err := svc.Refine(ctx, 1, eq.ShortID(), false)
	require.NoError(t, err)
	assert.Equal(t, forge.OutcomeSuccess, rep.Result.Outcome)
	assert.Equal(t, 1, rep.Equipment.RefineLevel)
	assert.Equal(t, int64(100), rep.Cost.Stones)
	assert.Equal(t, int64(400), e.db.player(1).Stones)
	assert.Zero(t, e.db.bagCount(1, "refine_stone"))
	assert.Equal(t, []string{model.LedgerRefine}, e.db.ledgerTypes(1))
}

func TestRefine_RefundsStonesWhenBroke(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 10)
	eq := e.piece(1, "iron_sword", 0, 100, "")
	e.give(1, "refine_stone", 1)

	_, err := svc.Refine(ctx, 1, eq.ShortID(), false)
	assert.ErrorIs(t, err, repository.ErrInsufficientStones)
	assert.Equal(t, 1, e.db.bagCount(1, "refine_stone"))
}

func TestRefine_ShatterAndProtection(t *testing.T) {
	ctx := context.Background()

	t.Run("shatter destroys the piece", func(t *testing.T) {
		e := newTestEnv()
		svc := newEquipmentService(e, 99)
		e.db.addPlayer(1, "张三", 0, 5000)
		eq := e.piece(1, "iron_sword", 10, 100, "")
		e.give(1, "refine_stone", 4)

		rep, err := svc.Refine(ctx, 1, eq.ShortID(), false)
		require.NoError(t, err)
		assert.Equal(t, forge.OutcomeShatter, rep.Result.Outcome)
		assert.Empty(t, e.db.gear(1))
		assert.Equal(t, int64(5000-1100), e.db.player(1).Stones)
	})

	t.Run("talisman turns shatter into downgrade", func(t *testing.T) {
		e := newTestEnv()
		svc := newEquipmentService(e, 99)
		e.db.addPlayer(1, "张三", 0, 5000)
		eq := e.piece(1, "iron_sword", 10, 100, "")
		e.give(1, "refine_stone", 4)

		_, err := svc.Refine(ctx, 1, eq.ShortID(), true)
		require.ErrorIs(t, err, ErrNoProtection)
		assert.Equal(t, 4, e.db.bagCount(1, "refine_stone"))

		e.give(1, "protection_talisman", 1)
		rep, err := svc.Refine(ctx, 1, eq.ShortID(), true)
		require.NoError(t, err)
		assert.Equal(t, forge.OutcomeDowngrade, rep.Result.Outcome)
		assert.True(t, rep.Result.ProtectionUsed)
		assert.Equal(t, 9, rep.Equipment.RefineLevel)
		assert.Equal(t, 90, rep.Equipment.Durability)
		assert.Zero(t, e.db.bagCount(1, "protection_talisman"))
	})

	t.Run("talisman kept when the roll succeeds", func(t *testing.T) {
		e := newTestEnv()
		svc := newEquipmentService(e, 0)
		e.db.addPlayer(1, "张三", 0, 5000)
		eq := e.piece(1, "iron_sword", 10, 100, "")
		e.give(1, "refine_stone", 4)
		e.give(1, "protection_talisman", 1)

		rep, err := svc.Refine(ctx, 1, eq.ShortID(), true)
		require.NoError(t, err)
		assert.Equal(t, forge.OutcomeSuccess, rep.Result.Outcome)
		assert.Equal(t, 1, e.db.bagCount(1, "protection_talisman"))
	})
}

func TestRefine_Rejects(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 5000)
	maxed := e.piece(1, "iron_sword", forge.MaxLevel, 100, "")
	broken := e.piece(1, "wooden_sword", 0, 0, "")

	_, err := svc.Refine(ctx, 1, maxed.ShortID(), false)
	assert.ErrorIs(t, err, forge.ErrMaxLevel)
	_, err = svc.Refine(ctx, 1, broken.ShortID(), false)
	assert.ErrorIs(t, err, forge.ErrBroken)
}

func TestSocketAndUnsocket(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 1000)
	eq := e.piece(1, "iron_sword", 0, 100, catalog.SlotWeapon)

	_, err := svc.Socket(ctx, 1, eq.ShortID(), "ruby", -1)
	assert.ErrorIs(t, err, ErrItemNotInBag)

	e.give(1, "ruby", 1)
	rep, err := svc.Socket(ctx, 1, eq.ShortID(), "红宝石", -1)
	require.NoError(t, err)
	assert.True(t, rep.Result.Success)
	assert.Equal(t, 0, rep.Result.Index)
	assert.Equal(t, int64(50), rep.Cost)
	assert.Equal(t, []string{"ruby", ""}, rep.Equipment.Sockets)
	assert.Zero(t, e.db.bagCount(1, "ruby"))

	prof, err := NewPlayerService(e.db.stores(), e.items, testPlayerConfig(), e.locks).Profile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, realm.BaseStats(0).Attack+30+15, prof.Stats.Attack)

	e.give(1, "ruby", 1)
	_, err = svc.Socket(ctx, 1, eq.ShortID(), "ruby", 0)
	assert.ErrorIs(t, err, forge.ErrSocketOccupied)
	_, err = svc.Socket(ctx, 1, eq.ShortID(), "ruby", 5)
	assert.ErrorIs(t, err, forge.ErrNoSuchSocket)
	_, err = svc.Socket(ctx, 1, eq.ShortID(), "refine_stone", 1)
	assert.ErrorIs(t, err, forge.ErrNotAGem)

	gem, cost, err := svc.Unsocket(ctx, 1, eq.ShortID(), 0)
	require.NoError(t, err)
	assert.Equal(t, "ruby", gem.ID)
	assert.Equal(t, int64(200), cost)
	assert.Equal(t, 2, e.db.bagCount(1, "ruby"))
	assert.Equal(t, int64(1000-50-200), e.db.player(1).Stones)

	_, _, err = svc.Unsocket(ctx, 1, eq.ShortID(), 0)
	assert.ErrorIs(t, err, forge.ErrSocketEmpty)
}

func TestSocket_FailureConsumesGem(t *testing.T) {
	e := newTestEnv()
	e.items = catalog.New(map[string]*catalog.ItemDef{
		"iron_sword": {Name: "铁剑", Kind: catalog.KindWeapon, Slot: catalog.SlotWeapon, Quality: catalog.QualityTreasure, Attack: 30, Durability: 100},
		"jade":       {Name: "翡翠", Kind: catalog.KindGem, Gem: &catalog.GemDef{Tier: 3, Stat: catalog.StatHP, Value: 50}},
	}, nil, nil)
	svc := newEquipmentService(e, 99)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 1000)
	eq := e.piece(1, "iron_sword", 0, 100, "")
	e.give(1, "jade", 1)

	rep, err := svc.Socket(ctx, 1, eq.ShortID(), "jade", -1)
	require.NoError(t, err)
	assert.False(t, rep.Result.Success)
	assert.Zero(t, e.db.bagCount(1, "jade"))
	assert.Equal(t, []string{"", ""}, e.db.gear(1)[0].Sockets)
}

func TestRepair(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 1000)
	sword := e.piece(1, "iron_sword", 0, 50, catalog.SlotWeapon)
	armor := e.piece(1, "iron_armor", 0, 100, catalog.SlotBody)

	_, _, _, err := svc.Repair(ctx, 1, armor.ShortID())
	assert.ErrorIs(t, err, forge.ErrNothingToRepair)

	eq, _, cost, err := svc.Repair(ctx, 1, sword.ShortID())
	require.NoError(t, err)
	assert.Equal(t, int64(100), cost)
	assert.Equal(t, 100, eq.Durability)

	_, err = e.db.stores().Equipment.WearEquipped(ctx, 1, 10)
	require.NoError(t, err)
	n, total, err := svc.RepairAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(20+40), total)
	assert.Equal(t, int64(1000-100-60), e.db.player(1).Stones)

	_, _, err = svc.RepairAll(ctx, 1)
	assert.ErrorIs(t, err, forge.ErrNothingToRepair)
}

func TestDiscard(t *testing.T) {
	e := newTestEnv()
	svc := newEquipmentService(e, 0)
	ctx := context.Background()
	e.db.addPlayer(1, "张三", 0, 0)
	worn := e.piece(1, "wooden_sword", 0, 100, catalog.SlotWeapon)
	loose := e.piece(1, "iron_sword", 0, 100, "")

	_, err := svc.Discard(ctx, 1, worn.ShortID())
	assert.ErrorIs(t, err, ErrEquipped)

	def, err := svc.Discard(ctx, 1, loose.ShortID())
	require.NoError(t, err)
	assert.Equal(t, "iron_sword", def.ID)
	assert.Len(t, e.db.gear(1), 1)
}

var errStoreDown = errors.New("store down")

// flakyBag fails Add or Remove for one item id.
type flakyBag struct {
	BagStore
	failAdd, failRemove string
}

func (b flakyBag) Add(ctx context.Context, playerID int64, itemID string, qty int) error {
	if itemID == b.failAdd {
		return errStoreDown
	}
	return b.BagStore.Add(ctx, playerID, itemID, qty)
}

func (b flakyBag) Remove(ctx context.Context, playerID int64, itemID string, qty int) error {
	if itemID == b.failRemove {
		return errStoreDown
	}
	return b.BagStore.Remove(ctx, playerID, itemID, qty)
}

// flakyEquipment fails the first Update only.
type flakyEquipment struct {
	EquipmentStore
	failed *bool
}

func (f flakyEquipment) Update(ctx context.Context, e *model.Equipment) error {
	if !*f.failed {
		*f.failed = true
		return errStoreDown
	}
	return f.EquipmentStore.Update(ctx, e)
}

func socketedSword(t *testing.T, e *testEnv) *model.Equipment {
	t.Helper()
	e.db.addPlayer(1, "张三", 0, 1000)
	eq := e.piece(1, "iron_sword", 0, 100, "")
	eq.Sockets = []string{"ruby", ""}
	require.NoError(t, e.db.stores().Equipment.Update(context.Background(), eq))
	return eq
}

func TestUnsocket_StoreFailureRefundsFee(t *testing.T) {
	ctx := context.Background()

	t.Run("update fails", func(t *testing.T) {
		e := newTestEnv()
		eq := socketedSword(t, e)
		stores := e.db.stores()
		stores.Equipment = flakyEquipment{EquipmentStore: stores.Equipment, failed: new(bool)}
		svc := NewEquipmentService(stores, e.items, testForgeConfig(), e.locks, e.opts(fixed(0))...)

		_, _, err := svc.Unsocket(ctx, 1, eq.ShortID(), 0)
		require.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, int64(1000), e.db.player(1).Stones)
		assert.Zero(t, e.db.bagCount(1, "ruby"))
		assert.Equal(t, []string{"ruby", ""}, e.db.gear(1)[0].Sockets)
	})

	t.Run("returning the gem fails", func(t *testing.T) {
		e := newTestEnv()
		eq := socketedSword(t, e)
		stores := e.db.stores()
		stores.Bag = flakyBag{BagStore: stores.Bag, failAdd: "ruby"}
		svc := NewEquipmentService(stores, e.items, testForgeConfig(), e.locks, e.opts(fixed(0))...)

		_, _, err := svc.Unsocket(ctx, 1, eq.ShortID(), 0)
		require.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, int64(1000), e.db.player(1).Stones)
		assert.Zero(t, e.db.bagCount(1, "ruby"))
		assert.Equal(t, []string{"ruby", ""}, e.db.gear(1)[0].Sockets)
	})
}

func TestRefine_TalismanRemovalFailureRefunds(t *testing.T) {
	e := newTestEnv()
	e.db.addPlayer(1, "张三", 0, 5000)
	eq := e.piece(1, "iron_sword", 10, 100, "")
	e.give(1, "refine_stone", 4)
	e.give(1, "protection_talisman", 1)
	stores := e.db.stores()
	stores.Bag = flakyBag{BagStore: stores.Bag, failRemove: "protection_talisman"}
	svc := NewEquipmentService(stores, e.items, testForgeConfig(), e.locks, e.opts(fixed(99))...)

	_, err := svc.Refine(context.Background(), 1, eq.ShortID(), true)
	require.ErrorIs(t, err, errStoreDown)

	assert.Equal(t, int64(5000), e.db.player(1).Stones)
	assert.Equal(t, 4, e.db.bagCount(1, "refine_stone"))
	assert.Equal(t, 1, e.db.bagCount(1, "protection_talisman"))
	gear := e.db.gear(1)
	require.Len(t, gear, 1)
	assert.Equal(t, 10, gear[0].RefineLevel)
	assert.Equal(t, 100, gear[0].Durability)
}
