package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/service"
)

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	playerService *service.PlayerService
	bossService   *service.BossService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(playerService *service.PlayerService, bossService *service.BossService) *AdminHandler {
	return &AdminHandler{
		playerService: playerService,
		bossService:   bossService,
	}
}

// HandleAdminStones handles the /admin_stones command.
// Format: /admin_stones <user_id> <amount>, amount may be negative.
func (h *AdminHandler) HandleAdminStones(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ 用法: /admin_stones <用户ID> <数量>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ 用户ID格式错误")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply("❌ 数量格式错误")
	}

	p, err := h.playerService.AdjustStones(ctx, targetID, amount)
	if err != nil {
		return replyErr(c, err, "操作失败，用户可能不存在")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "admin_stones").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n"+
			"👤 道友: %s (ID: %d)\n"+
			"🔧 调整: %+d 灵石\n"+
			"💰 当前灵石: %s",
		p.Name, targetID, amount, catalog.FormatNumber(p.Stones),
	))
}

// HandleAdminGive handles the /admin_give command.
// Format: /admin_give <user_id> <item> [qty]
func (h *AdminHandler) HandleAdminGive(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ 用法: /admin_give <用户ID> <物品> [数量]")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ 用户ID格式错误")
	}
	qty := 1
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return c.Reply("❌ 数量必须是正整数")
		}
		qty = n
	}

	def, err := h.playerService.GiveItem(ctx, targetID, args[1], qty)
	if err != nil {
		return replyErr(c, err, "操作失败，用户可能不存在")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Str("item", def.ID).
		Int("qty", qty).
		Str("operation", "admin_give").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ 已发放 %s x%d 给 %d", def.Name, qty, targetID))
}

// HandleAdminBossRespawn handles the /admin_boss_respawn command.
func (h *AdminHandler) HandleAdminBossRespawn(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ref := strings.Join(c.Args(), " ")
	if ref == "" {
		return c.Reply("❌ 用法: /admin_boss_respawn <首领>")
	}

	def, err := h.bossService.ForceRespawn(ctx, ref)
	if err != nil {
		return replyErr(c, err, "操作失败")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("boss", def.ID).
		Str("operation", "admin_boss_respawn").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ %s 已重生，气血 %s", def.Name, catalog.FormatNumber(def.HP)))
}
