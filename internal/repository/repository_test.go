// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/db"
	"cultivation-bot/internal/realm"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container with the schema applied.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))
	// A second run must be a no-op.
	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func TestPoolHealthCheck(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	p := &db.Pool{Pool: pool}
	require.NoError(t, p.HealthCheck(context.Background()))

	pool.Close()
	assert.Error(t, p.HealthCheck(context.Background()))
}

// ============================================================================
// PlayerRepository Tests
// ============================================================================

func TestPlayerRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	p, err := repo.Create(ctx, 12345, "张三", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), p.TelegramID)
	assert.Equal(t, realm.QiRefining, p.Realm)
	assert.Equal(t, int64(1000), p.Stones)
	assert.Nil(t, p.SectID)
	assert.Equal(t, model.RoleNone, p.SectRole)

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "张三", got.Name)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, created, err := repo.GetOrCreate(ctx, 12345, "张三", 1000)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPlayerRepository_AddStones(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "a", 100)
	require.NoError(t, err)

	p, err := repo.AddStones(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.Stones)

	_, err = repo.AddStones(ctx, 1, -151)
	assert.ErrorIs(t, err, ErrInsufficientStones)

	p, err = repo.AddStones(ctx, 1, -150)
	require.NoError(t, err)
	assert.Zero(t, p.Stones)

	_, err = repo.AddStones(ctx, 404, 10)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestPlayerRepository_Transfer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ledger := NewLedgerRepository(pool)
	ctx := context.Background()

	_, _ = repo.Create(ctx, 1, "a", 500)
	_, _ = repo.Create(ctx, 2, "b", 0)

	require.NoError(t, repo.Transfer(ctx, 1, 2, 200, "赠予 b", "来自 a"))
	a, _ := repo.GetByID(ctx, 1)
	b, _ := repo.GetByID(ctx, 2)
	assert.Equal(t, int64(300), a.Stones)
	assert.Equal(t, int64(200), b.Stones)

	entries, err := ledger.ListByPlayer(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.LedgerGiftIn, entries[0].Type)

	err = repo.Transfer(ctx, 1, 2, 1000, "", "")
	assert.ErrorIs(t, err, ErrInsufficientStones)

	// Missing receiver rolls back the debit.
	err = repo.Transfer(ctx, 1, 3, 100, "", "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	a, _ = repo.GetByID(ctx, 1)
	assert.Equal(t, int64(300), a.Stones)
}

func TestPlayerRepository_SectCounters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	sects := NewSectRepository(pool)
	ctx := context.Background()

	_, _ = players.Create(ctx, 1, "leader", 0)
	_, _ = players.Create(ctx, 2, "disciple", 0)
	s, err := sects.Create(ctx, "青云门", 1)
	require.NoError(t, err)

	require.NoError(t, players.JoinSect(ctx, 1, s.ID, model.RoleLeader))
	require.NoError(t, players.JoinSect(ctx, 2, s.ID, model.RoleDisciple))

	total, leaders, err := players.CountMembers(ctx, s.ID, model.RoleLeader)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, leaders)

	require.NoError(t, players.RecordDonation(ctx, 2, 300))
	ok, err := players.MarkSectSigned(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = players.MarkSectSigned(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := players.Members(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, model.RoleLeader, members[0].Role)
	assert.Equal(t, int64(310), members[1].Contribution)

	n, err := players.ResetDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	p, _ := players.GetByID(ctx, 2)
	assert.Zero(t, p.DailyDonated)
	assert.False(t, p.SectSigned)
	assert.Equal(t, int64(310), p.Contribution)

	cleared, err := players.ClearSect(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
}

func TestPlayerRepository_Top(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, _ = repo.Create(ctx, 1, "a", 0)
	_, _ = repo.Create(ctx, 2, "b", 0)
	_, _ = repo.Create(ctx, 3, "c", 0)
	_, _ = repo.SetRealm(ctx, 1, realm.Foundation, 10)
	_, _ = repo.SetRealm(ctx, 2, realm.Foundation, 500)
	_, _ = repo.AddExp(ctx, 3, 900)

	ranks, err := repo.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.Equal(t, int64(2), ranks[0].TelegramID)
	assert.Equal(t, int64(1), ranks[1].TelegramID)
	assert.Equal(t, int64(3), ranks[2].TelegramID)
}

// ============================================================================
// BagRepository Tests
// ============================================================================

func TestBagRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	bag := NewBagRepository(pool)
	ctx := context.Background()
	_, _ = players.Create(ctx, 1, "a", 0)

	require.NoError(t, bag.Add(ctx, 1, "refine_stone", 3))
	require.NoError(t, bag.Add(ctx, 1, "refine_stone", 2))
	n, err := bag.Count(ctx, 1, "refine_stone")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.ErrorIs(t, bag.Remove(ctx, 1, "refine_stone", 6), ErrInsufficientItems)
	require.NoError(t, bag.Remove(ctx, 1, "refine_stone", 5))

	items, err := bag.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	pruned, err := bag.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	n, err = bag.Count(ctx, 1, "ghost")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ============================================================================
// EquipmentRepository Tests
// ============================================================================

func TestEquipmentRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	repo := NewEquipmentRepository(pool)
	ctx := context.Background()
	_, _ = players.Create(ctx, 1, "a", 0)

	sword := &model.Equipment{OwnerID: 1, DefID: "iron_sword", Durability: 80, MaxDurability: 80, EquippedSlot: "weapon"}
	require.NoError(t, repo.Create(ctx, sword))
	assert.NotEqual(t, uuid.Nil, sword.ID)

	spare := &model.Equipment{OwnerID: 1, DefID: "wooden_sword", Durability: 50, MaxDurability: 50}
	require.NoError(t, repo.Create(ctx, spare))

	assert.ErrorIs(t, repo.SetSlot(ctx, spare.ID, "weapon"), ErrSlotTaken)

	sword.RefineLevel = 3
	sword.Sockets = []string{"ruby_t1", ""}
	require.NoError(t, repo.Update(ctx, sword))

	got, err := repo.GetByID(ctx, sword.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RefineLevel)
	assert.Equal(t, []string{"ruby_t1", ""}, got.Sockets)
	assert.Equal(t, "weapon", got.EquippedSlot)

	found, err := repo.FindByPrefix(ctx, 1, spare.ShortID())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, spare.ID, found[0].ID)
	assert.Equal(t, "", found[0].EquippedSlot)

	found, err = repo.FindByPrefix(ctx, 1, "____")
	require.NoError(t, err)
	assert.Empty(t, found)

	worn, err := repo.WearEquipped(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), worn)
	got, _ = repo.GetByID(ctx, sword.ID)
	assert.Zero(t, got.Durability)

	list, err := repo.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, sword.ID, list[0].ID)

	require.NoError(t, repo.Delete(ctx, spare.ID))
	_, err = repo.GetByID(ctx, spare.ID)
	assert.ErrorIs(t, err, ErrEquipmentNotFound)
}

// ============================================================================
// SectRepository Tests
// ============================================================================

func TestSectRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	repo := NewSectRepository(pool)
	ctx := context.Background()
	_, _ = players.Create(ctx, 1, "a", 0)
	_, _ = players.Create(ctx, 2, "b", 0)

	s, err := repo.Create(ctx, "天剑宗", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Level)
	assert.Empty(t, s.Facilities)

	_, err = repo.Create(ctx, "天剑宗", 2)
	assert.ErrorIs(t, err, ErrSectNameTaken)

	_, err = repo.AddFunds(ctx, s.ID, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	s, err = repo.AddFunds(ctx, s.ID, 8000)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), s.Funds)

	s.Facilities["forge"] = 2
	s.Level = 3
	s.Exp = 3500
	require.NoError(t, repo.Save(ctx, s))
	got, err := repo.GetByName(ctx, "天剑宗")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Facility("forge"))
	assert.Equal(t, int64(3500), got.Exp)

	require.NoError(t, repo.Apply(ctx, s.ID, 2))
	assert.ErrorIs(t, repo.Apply(ctx, s.ID, 2), ErrAlreadyApplied)
	apps, err := repo.Applications(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "b", apps[0].Name)

	ok, err := repo.DeleteApplication(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ranks, err := repo.Top(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, "天剑宗", ranks[0].Name)

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, err = repo.GetByID(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSectNotFound)
}

// ============================================================================
// BossRepository Tests
// ============================================================================

func TestBossRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBossRepository(pool)
	ctx := context.Background()

	_, err := repo.Get(ctx, "demon_wolf_king")
	assert.ErrorIs(t, err, ErrBossNotFound)

	spawned := time.Now().UTC().Truncate(time.Second)
	st := &model.BossState{BossID: "demon_wolf_king", HP: 100, MaxHP: 100, SpawnedAt: spawned}
	require.NoError(t, repo.Save(ctx, st))

	killed := spawned.Add(time.Minute)
	st.HP = 0
	st.KilledAt = &killed
	st.Damage = map[int64]int64{7: 60, 8: 40}
	require.NoError(t, repo.Save(ctx, st))

	got, err := repo.Get(ctx, "demon_wolf_king")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{7: 60, 8: 40}, got.Damage)
	require.NotNil(t, got.KilledAt)
	assert.True(t, killed.Equal(*got.KilledAt))

	kill := &model.BossKill{BossID: "demon_wolf_king", KillerID: 8, TopDamageID: 7, Participants: 2, KilledAt: killed}
	require.NoError(t, repo.RecordKill(ctx, kill))
	assert.NotZero(t, kill.ID)

	kills, err := repo.RecentKills(ctx, "demon_wolf_king", 5)
	require.NoError(t, err)
	require.Len(t, kills, 1)
	assert.Equal(t, int64(7), kills[0].TopDamageID)
}
