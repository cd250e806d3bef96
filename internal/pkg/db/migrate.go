package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// Every statement is idempotent so Migrate can run on each start.
var migrations = []migration{
	{"players", `
		CREATE TABLE IF NOT EXISTS players (
			telegram_id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			realm INT NOT NULL DEFAULT 0,
			exp BIGINT NOT NULL DEFAULT 0,
			stones BIGINT NOT NULL DEFAULT 0 CHECK (stones >= 0),
			sect_id BIGINT,
			sect_role VARCHAR(16) NOT NULL DEFAULT '',
			contribution BIGINT NOT NULL DEFAULT 0,
			daily_donated BIGINT NOT NULL DEFAULT 0,
			sect_signed BOOLEAN NOT NULL DEFAULT FALSE,
			last_sign_in BIGINT NOT NULL DEFAULT 0,
			last_cultivate BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_players_rank ON players(realm DESC, exp DESC);
		CREATE INDEX IF NOT EXISTS idx_players_sect ON players(sect_id);
	`},
	{"ledger", `
		CREATE TABLE IF NOT EXISTS ledger (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(32) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_player_time ON ledger(player_id, created_at DESC);
	`},
	{"bag", `
		CREATE TABLE IF NOT EXISTS bag_items (
			player_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
			item_id VARCHAR(64) NOT NULL,
			quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, item_id)
		);
	`},
	{"equipment", `
		CREATE TABLE IF NOT EXISTS equipment (
			id UUID PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
			def_id VARCHAR(64) NOT NULL,
			refine_level INT NOT NULL DEFAULT 0,
			durability INT NOT NULL,
			max_durability INT NOT NULL,
			sockets JSONB NOT NULL DEFAULT '[]'::jsonb,
			equipped_slot VARCHAR(16),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_equipment_owner ON equipment(owner_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_equipment_slot ON equipment(owner_id, equipped_slot)
			WHERE equipped_slot IS NOT NULL;
	`},
	{"sects", `
		CREATE TABLE IF NOT EXISTS sects (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(64) NOT NULL UNIQUE,
			leader_id BIGINT NOT NULL,
			level INT NOT NULL DEFAULT 1,
			exp BIGINT NOT NULL DEFAULT 0,
			funds BIGINT NOT NULL DEFAULT 0 CHECK (funds >= 0),
			facilities JSONB NOT NULL DEFAULT '{}'::jsonb,
			announcement TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS sect_applications (
			sect_id BIGINT NOT NULL REFERENCES sects(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sect_id, player_id)
		);
	`},
	{"bosses", `
		CREATE TABLE IF NOT EXISTS boss_states (
			boss_id VARCHAR(64) PRIMARY KEY,
			hp BIGINT NOT NULL,
			max_hp BIGINT NOT NULL,
			spawned_at TIMESTAMPTZ NOT NULL,
			killed_at TIMESTAMPTZ,
			damage JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS boss_kills (
			id BIGSERIAL PRIMARY KEY,
			boss_id VARCHAR(64) NOT NULL,
			killer_id BIGINT NOT NULL,
			top_damage_id BIGINT NOT NULL,
			participants INT NOT NULL,
			killed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_boss_kills_boss ON boss_kills(boss_id, killed_at DESC);
	`},
}

// Migrate applies the schema.
func Migrate(ctx context.Context, conn Execer) error {
	for _, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Debug().Str("migration", m.name).Msg("Migration applied")
	}
	log.Info().Int("count", len(migrations)).Msg("Database migrations completed")
	return nil
}
