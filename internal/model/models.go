// Package model defines the persisted documents of the cultivation bot.
package model

import (
	"time"

	"github.com/google/uuid"

	"cultivation-bot/internal/realm"
)

// Player is a cultivator, keyed by Telegram user id.
type Player struct {
	TelegramID    int64       `db:"telegram_id"`
	Name          string      `db:"name"`
	Realm         realm.Realm `db:"realm"`
	Exp           int64       `db:"exp"`
	Stones        int64       `db:"stones"`
	SectID        *int64      `db:"sect_id"`
	SectRole      SectRole    `db:"sect_role"`
	Contribution  int64       `db:"contribution"`
	DailyDonated  int64       `db:"daily_donated"`
	SectSigned    bool        `db:"sect_signed"`
	LastSignIn    int64       `db:"last_sign_in"`
	LastCultivate int64       `db:"last_cultivate"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

// InSect reports whether the player belongs to a sect.
func (p *Player) InSect() bool {
	return p.SectID != nil
}

// SectRole is a member's rank inside a sect.
type SectRole string

const (
	RoleNone     SectRole = ""
	RoleLeader   SectRole = "leader"
	RoleElder    SectRole = "elder"
	RoleDisciple SectRole = "disciple"
)

// LedgerEntry records one change to a player's spirit stones.
type LedgerEntry struct {
	ID          int64     `db:"id"`
	PlayerID    int64     `db:"player_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Ledger entry types.
const (
	LedgerInitial      = "initial"       // Starting stones
	LedgerSignIn       = "sign_in"       // Daily sign-in reward
	LedgerGiftOut      = "gift_out"      // Sent to another player
	LedgerGiftIn       = "gift_in"       // Received from another player
	LedgerHunt         = "hunt"          // Monster reward
	LedgerBoss         = "boss"          // Boss reward share
	LedgerRefine       = "refine"        // Refinement fee
	LedgerSocket       = "socket"        // Socket or unsocket fee
	LedgerRepair       = "repair"        // Repair fee
	LedgerShopPurchase = "shop_purchase" // Shop purchase
	LedgerSectCreate   = "sect_create"   // Sect founding fee
	LedgerSectDonate   = "sect_donate"   // Donation to sect funds
	LedgerSectSignIn   = "sect_sign_in"  // Sect sign-in reward
	LedgerAdminAdjust  = "admin_adjust"  // Admin change
)

// BagItem is a stack of one stackable item owned by a player.
type BagItem struct {
	PlayerID  int64     `db:"player_id"`
	ItemID    string    `db:"item_id"`
	Quantity  int       `db:"quantity"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Equipment is one owned piece of gear. Sockets holds gem item ids, with
// "" for an empty socket. EquippedSlot is empty while the piece is in the bag.
type Equipment struct {
	ID            uuid.UUID `db:"id"`
	OwnerID       int64     `db:"owner_id"`
	DefID         string    `db:"def_id"`
	RefineLevel   int       `db:"refine_level"`
	Durability    int       `db:"durability"`
	MaxDurability int       `db:"max_durability"`
	Sockets       []string  `db:"sockets"`
	EquippedSlot  string    `db:"equipped_slot"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ShortIDLen is the number of id characters shown in chat.
const ShortIDLen = 8

// ShortID returns the chat handle of the piece.
func (e *Equipment) ShortID() string {
	return e.ID.String()[:ShortIDLen]
}

// Equipped reports whether the piece is worn.
func (e *Equipment) Equipped() bool {
	return e.EquippedSlot != ""
}

// Broken reports whether the piece has no durability left.
func (e *Equipment) Broken() bool {
	return e.Durability <= 0
}

// Sect is a player guild.
type Sect struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	LeaderID     int64          `db:"leader_id"`
	Level        int            `db:"level"`
	Exp          int64          `db:"exp"`
	Funds        int64          `db:"funds"`
	Facilities   map[string]int `db:"facilities"`
	Announcement string         `db:"announcement"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Facility returns the level of the named facility, 0 when unbuilt.
func (s *Sect) Facility(name string) int {
	if s == nil || s.Facilities == nil {
		return 0
	}
	return s.Facilities[name]
}

// SectMember is a row of the member listing.
type SectMember struct {
	TelegramID   int64       `db:"telegram_id"`
	Name         string      `db:"name"`
	Realm        realm.Realm `db:"realm"`
	Role         SectRole    `db:"sect_role"`
	Contribution int64       `db:"contribution"`
}

// SectApplication is a pending request to join a sect.
type SectApplication struct {
	SectID    int64     `db:"sect_id"`
	PlayerID  int64     `db:"player_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// BossState is the live document of one world boss. Damage maps player id
// to damage dealt in the current life.
type BossState struct {
	BossID    string          `db:"boss_id"`
	HP        int64           `db:"hp"`
	MaxHP     int64           `db:"max_hp"`
	SpawnedAt time.Time       `db:"spawned_at"`
	KilledAt  *time.Time      `db:"killed_at"`
	Damage    map[int64]int64 `db:"damage"`
}

// Alive reports whether the boss can be attacked.
func (b *BossState) Alive() bool {
	return b.KilledAt == nil && b.HP > 0
}

// BossKill is the history row written when a boss dies.
type BossKill struct {
	ID           int64     `db:"id"`
	BossID       string    `db:"boss_id"`
	KillerID     int64     `db:"killer_id"`
	TopDamageID  int64     `db:"top_damage_id"`
	Participants int       `db:"participants"`
	KilledAt     time.Time `db:"killed_at"`
}

// PlayerRank is a row of the player leaderboard.
type PlayerRank struct {
	TelegramID int64       `db:"telegram_id"`
	Name       string      `db:"name"`
	Realm      realm.Realm `db:"realm"`
	Exp        int64       `db:"exp"`
}

// SectRank is a row of the sect leaderboard.
type SectRank struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Level   int    `db:"level"`
	Exp     int64  `db:"exp"`
	Members int    `db:"members"`
}

// EarnerRank is a row of the daily earnings leaderboard.
type EarnerRank struct {
	TelegramID int64  `db:"player_id"`
	Name       string `db:"name"`
	Earned     int64  `db:"earned"`
}
