// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/handler"
	"cultivation-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot    *tele.Bot
	cfg    *config.Config
	access *PrivateAccess

	// Handlers
	playerHandler    *handler.PlayerHandler
	equipmentHandler *handler.EquipmentHandler
	combatHandler    *handler.CombatHandler
	sectHandler      *handler.SectHandler
	shopHandler      *handler.ShopHandler
	rankingHandler   *handler.RankingHandler
	adminHandler     *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config           *config.Config
	Items            *catalog.Catalog
	PlayerService    *service.PlayerService
	EquipmentService *service.EquipmentService
	HuntService      *service.HuntService
	BossService      *service.BossService
	SectService      *service.SectService
	ShopService      *service.ShopService
	RankingService   *service.RankingService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := deps.Config.Bot.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pref := tele.Settings{
		Token:   deps.Config.Bot.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		OnError: onError,
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:    teleBot,
		cfg:    deps.Config,
		access: NewPrivateAccess(),
	}

	// Initialize handlers
	b.playerHandler = handler.NewPlayerHandler(deps.PlayerService, deps.Items)
	b.equipmentHandler = handler.NewEquipmentHandler(deps.EquipmentService, deps.PlayerService, deps.Items)
	b.combatHandler = handler.NewCombatHandler(deps.HuntService, deps.BossService, deps.PlayerService)
	b.sectHandler = handler.NewSectHandler(deps.SectService, deps.PlayerService)
	b.shopHandler = handler.NewShopHandler(deps.ShopService, deps.PlayerService, deps.EquipmentService, deps.Items)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)
	b.adminHandler = handler.NewAdminHandler(deps.PlayerService, deps.BossService)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func onError(err error, c tele.Context) {
	ev := log.Error().Err(err)
	if c != nil {
		if sender := c.Sender(); sender != nil {
			ev = ev.Int64("user_id", sender.ID)
		}
	}
	ev.Msg("Bot error")
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.access))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Player
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/me", b.playerHandler.HandleMe)
	b.bot.Handle("/sign", b.playerHandler.HandleSign)
	b.bot.Handle("/cultivate", b.playerHandler.HandleCultivate)
	b.bot.Handle("/breakthrough", b.playerHandler.HandleBreakthrough)
	b.bot.Handle("/gift", b.playerHandler.HandleGift)
	b.bot.Handle("/use", b.playerHandler.HandleUse)
	b.bot.Handle("/history", b.playerHandler.HandleHistory)

	// Equipment and forge
	b.bot.Handle("/bag", b.equipmentHandler.HandleBag)
	b.bot.Handle("/gear", b.equipmentHandler.HandleGear)
	b.bot.Handle("/equip", b.equipmentHandler.HandleEquip)
	b.bot.Handle("/unequip", b.equipmentHandler.HandleUnequip)
	b.bot.Handle("/refine", b.equipmentHandler.HandleRefine)
	b.bot.Handle("/socket", b.equipmentHandler.HandleSocket)
	b.bot.Handle("/unsocket", b.equipmentHandler.HandleUnsocket)
	b.bot.Handle("/repair", b.equipmentHandler.HandleRepair)
	b.bot.Handle("/discard", b.equipmentHandler.HandleDiscard)

	// Combat
	b.bot.Handle("/hunt", b.combatHandler.HandleHunt)
	b.bot.Handle("/boss", b.combatHandler.HandleBoss)
	b.bot.Handle("/boss_attack", b.combatHandler.HandleBossAttack)

	// Shop
	b.bot.Handle("/buy", b.shopHandler.HandleBuy)

	// Rankings
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/sect_top", b.rankingHandler.HandleSectTop)
	b.bot.Handle("/daily_top", b.rankingHandler.HandleDailyTop)

	// Sect
	b.bot.Handle("/sect", b.sectHandler.HandleSect)
	b.bot.Handle("/sect_list", b.sectHandler.HandleList)
	b.bot.Handle("/sect_create", b.sectHandler.HandleCreate)
	b.bot.Handle("/sect_apply", b.sectHandler.HandleApply)
	b.bot.Handle("/sect_apps", b.sectHandler.HandleApplications)
	b.bot.Handle("/sect_approve", b.sectHandler.HandleApprove)
	b.bot.Handle("/sect_reject", b.sectHandler.HandleReject)
	b.bot.Handle("/sect_leave", b.sectHandler.HandleLeave)
	b.bot.Handle("/sect_kick", b.sectHandler.HandleKick)
	b.bot.Handle("/sect_promote", b.sectHandler.HandlePromote)
	b.bot.Handle("/sect_demote", b.sectHandler.HandleDemote)
	b.bot.Handle("/sect_transfer", b.sectHandler.HandleTransfer)
	b.bot.Handle("/sect_donate", b.sectHandler.HandleDonate)
	b.bot.Handle("/sect_sign", b.sectHandler.HandleSign)
	b.bot.Handle("/sect_upgrade", b.sectHandler.HandleUpgrade)
	b.bot.Handle("/sect_announce", b.sectHandler.HandleAnnounce)
	b.bot.Handle("/sect_disband", b.sectHandler.HandleDisband)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_stones", b.adminHandler.HandleAdminStones)
	adminGroup.Handle("/admin_give", b.adminHandler.HandleAdminGive)
	adminGroup.Handle("/admin_boss_respawn", b.adminHandler.HandleAdminBossRespawn)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleStart routes /start to the shop in private chat and to the
// character sheet in groups.
func (b *Bot) handleStart(c tele.Context) error {
	chat := c.Chat()
	if chat != nil && chat.Type == tele.ChatPrivate {
		return b.shopHandler.HandleShopStart(c)
	}
	return b.playerHandler.HandleStart(c)
}

// handleCallback routes callbacks to appropriate handlers
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 prefixes inline button data with \f
	data := strings.TrimPrefix(callback.Data, "\f")

	switch {
	case strings.HasPrefix(data, "shop_"):
		return b.shopHandler.HandleShopCallback(c)
	case strings.HasPrefix(data, "sect_"):
		return b.sectHandler.HandleCallback(c)
	}

	log.Debug().Str("data", data).Msg("Unrouted callback")
	return c.Respond()
}

// commands is the menu shown by Telegram clients.
var commands = []tele.Command{
	{Text: "me", Description: "查看角色"},
	{Text: "sign", Description: "每日签到"},
	{Text: "cultivate", Description: "打坐修炼"},
	{Text: "breakthrough", Description: "突破境界"},
	{Text: "hunt", Description: "狩猎妖兽"},
	{Text: "boss", Description: "世界首领"},
	{Text: "bag", Description: "储物袋"},
	{Text: "gear", Description: "装备"},
	{Text: "sect", Description: "我的宗门"},
	{Text: "top", Description: "天骄榜"},
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	if err := b.bot.SetCommands(commands); err != nil {
		log.Warn().Err(err).Msg("Failed to set bot commands")
	}
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Announce sends text to each chat, continuing past failures.
func (b *Bot) Announce(chatIDs []int64, text string) error {
	var errs []error
	for _, id := range chatIDs {
		if _, err := b.bot.Send(tele.ChatID(id), text); err != nil {
			log.Warn().Err(err).Int64("chat_id", id).Msg("Announcement failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
