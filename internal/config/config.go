// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Content   ContentConfig   `mapstructure:"content"`
	Player    PlayerConfig    `mapstructure:"player"`
	Forge     ForgeConfig     `mapstructure:"forge"`
	Hunt      HuntConfig      `mapstructure:"hunt"`
	Boss      BossConfig      `mapstructure:"boss"`
	Sect      SectConfig      `mapstructure:"sect"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// LogConfig holds logger output configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ContentConfig points at the YAML game content.
type ContentConfig struct {
	Dir string `mapstructure:"dir"`
}

// PlayerConfig holds new-player and daily settings.
type PlayerConfig struct {
	InitialStones     int64         `mapstructure:"initial_stones"`
	StarterWeapon     string        `mapstructure:"starter_weapon"`
	SignInReward      int64         `mapstructure:"sign_in_reward"`
	SignInCooldown    time.Duration `mapstructure:"sign_in_cooldown"`
	CultivateCooldown time.Duration `mapstructure:"cultivate_cooldown"`
}

// ForgeConfig holds refinement and repair settings.
type ForgeConfig struct {
	MaxRefineLevel   int    `mapstructure:"max_refine_level"`
	RefineStoneItem  string `mapstructure:"refine_stone_item"`
	ProtectionItem   string `mapstructure:"protection_item"`
	RepairPricePoint int64  `mapstructure:"repair_price_point"`
}

// HuntConfig holds monster hunting settings.
type HuntConfig struct {
	Cooldown  time.Duration `mapstructure:"cooldown"`
	MaxRounds int           `mapstructure:"max_rounds"`
}

// BossConfig holds world boss settings.
type BossConfig struct {
	AttackCooldown time.Duration `mapstructure:"attack_cooldown"`
	AnnounceChats  []int64       `mapstructure:"announce_chats"`
}

// SectConfig holds sect settings.
type SectConfig struct {
	CreationCost     int64 `mapstructure:"creation_cost"`
	MinRealm         int   `mapstructure:"min_realm"`
	DailyDonationCap int64 `mapstructure:"daily_donation_cap"`
}

// SchedulerConfig holds cron specs for background jobs.
type SchedulerConfig struct {
	DailyReset string `mapstructure:"daily_reset"`
	BossSweep  string `mapstructure:"boss_sweep"`
	Timezone   string `mapstructure:"timezone"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, SECT_CREATION_COST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cultivation")
	v.SetDefault("database.name", "cultivation")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("content.dir", "content")

	v.SetDefault("player.initial_stones", 1000)
	v.SetDefault("player.starter_weapon", "wooden_sword")
	v.SetDefault("player.sign_in_reward", 300)
	v.SetDefault("player.sign_in_cooldown", "24h")
	v.SetDefault("player.cultivate_cooldown", "30m")

	v.SetDefault("forge.max_refine_level", 15)
	v.SetDefault("forge.refine_stone_item", "refine_stone")
	v.SetDefault("forge.protection_item", "protection_talisman")
	v.SetDefault("forge.repair_price_point", 2)

	v.SetDefault("hunt.cooldown", "60s")
	v.SetDefault("hunt.max_rounds", 20)

	v.SetDefault("boss.attack_cooldown", "5m")

	v.SetDefault("sect.creation_cost", 10000)
	v.SetDefault("sect.min_realm", 1)
	v.SetDefault("sect.daily_donation_cap", 100000)

	v.SetDefault("scheduler.daily_reset", "0 0 * * *")
	v.SetDefault("scheduler.boss_sweep", "@every 1m")
	v.SetDefault("scheduler.timezone", "Asia/Shanghai")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
// An empty whitelist allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Chats, chatID)
}

// Location resolves the scheduler timezone, falling back to local time.
func (c *SchedulerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
