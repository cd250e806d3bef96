package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/sect"
	"cultivation-bot/internal/service"
	"cultivation-bot/internal/shop"
)

// PlayerHandler handles cultivator commands.
type PlayerHandler struct {
	playerService *service.PlayerService
	items         *catalog.Catalog
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(playerService *service.PlayerService, items *catalog.Catalog) *PlayerHandler {
	return &PlayerHandler{
		playerService: playerService,
		items:         items,
	}
}

const helpText = "可用命令:\n" +
	"/me - 查看道友信息\n" +
	"/sign - 每日签到\n" +
	"/cultivate - 打坐修炼\n" +
	"/breakthrough - 突破境界\n" +
	"/bag /gear - 储物袋与装备\n" +
	"/hunt [妖兽] - 狩猎妖兽\n" +
	"/boss - 世界首领\n" +
	"/sect - 宗门\n" +
	"/top - 天骄榜\n" +
	"私聊发送 /start 进入万宝阁"

// HandleStart handles /start in group chats.
func (h *PlayerHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	name := displayName(sender)

	p, created, err := h.playerService.EnsurePlayer(ctx, sender.ID, name)
	if err != nil {
		return c.Reply("❌ 入道失败，请稍后重试")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 欢迎 %s 踏入仙途！\n\n"+
				"初始灵石: %s\n"+
				"已为你配备新手武器\n\n"+
				"%s",
			name, catalog.FormatStones(p.Stones), helpText,
		))
	}
	return c.Reply(fmt.Sprintf(
		"👋 欢迎回来 %s\n\n"+
			"🧘 境界: %s\n"+
			"💰 灵石: %s",
		name, realm.Name(p.Realm), catalog.FormatStones(p.Stones),
	))
}

// HandleMe handles the /me command.
func (h *PlayerHandler) HandleMe(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 获取信息失败，请稍后重试")
	}

	prof, err := h.playerService.Profile(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "获取信息失败，请稍后重试")
	}
	p := prof.Player

	var b strings.Builder
	b.WriteString("📜 道友信息\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "👤 道号: %s\n", p.Name)
	fmt.Fprintf(&b, "🧘 境界: %s\n", realm.Name(p.Realm))
	if prof.ExpToNext > 0 {
		fmt.Fprintf(&b, "✨ 修为: %s / %s", catalog.FormatNumber(p.Exp), catalog.FormatNumber(prof.ExpToNext))
		if prof.CanAscend {
			b.WriteString(" (可突破)")
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "✨ 修为: %s (已至巅峰)\n", catalog.FormatNumber(p.Exp))
	}
	fmt.Fprintf(&b, "💰 灵石: %s\n", catalog.FormatNumber(p.Stones))
	fmt.Fprintf(&b, "⚔️ 攻击: %d  🛡️ 防御: %d  ❤️ 气血: %d\n", prof.Stats.Attack, prof.Stats.Defense, prof.Stats.HP)
	fmt.Fprintf(&b, "💪 战力: %s\n", catalog.FormatNumber(prof.Stats.Power()))
	if prof.Sect != nil {
		fmt.Fprintf(&b, "🏯 宗门: %s (%s) 贡献 %s\n", prof.Sect.Name, sect.RoleName(p.SectRole), catalog.FormatNumber(p.Contribution))
	}

	worn := 0
	for _, eq := range prof.Gear {
		if eq.Equipped() {
			worn++
		}
	}
	if worn > 0 {
		b.WriteString(divider + "\n")
		for _, eq := range prof.Gear {
			if !eq.Equipped() {
				continue
			}
			fmt.Fprintf(&b, "[%s] %s\n", catalog.SlotName(catalog.Slot(eq.EquippedSlot)), shop.FormatEquipmentLine(h.items, eq))
		}
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleSign handles the /sign command.
func (h *PlayerHandler) HandleSign(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	reward, p, err := h.playerService.SignIn(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "签到失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf(
		"✅ 签到成功！\n\n"+
			"🎁 获得: %s\n"+
			"💰 当前灵石: %s",
		catalog.FormatStones(reward), catalog.FormatStones(p.Stones),
	))
}

// HandleCultivate handles the /cultivate command.
func (h *PlayerHandler) HandleCultivate(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	gained, p, err := h.playerService.Cultivate(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "修炼失败，请稍后重试")
	}

	msg := fmt.Sprintf("🧘 运转周天，修为 +%s\n✨ 当前修为: %s", catalog.FormatNumber(gained), catalog.FormatNumber(p.Exp))
	if need, ok := realm.ExpToNext(p.Realm); ok && p.Exp >= need {
		msg += "\n\n⚡ 修为已满，可发送 /breakthrough 尝试突破"
	}
	return c.Reply(msg)
}

// HandleBreakthrough handles the /breakthrough command.
func (h *PlayerHandler) HandleBreakthrough(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	res, err := h.playerService.Breakthrough(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "突破失败，请稍后重试")
	}

	if res.Success {
		return c.Reply(fmt.Sprintf(
			"⚡ 天地异象！\n\n"+
				"🎉 %s 突破成功: %s → %s\n"+
				"✨ 剩余修为: %s",
			res.Player.Name, realm.Name(res.From), realm.Name(res.To), catalog.FormatNumber(res.Player.Exp),
		))
	}
	return c.Reply(fmt.Sprintf(
		"💥 突破失败 (成功率 %d%%)\n\n"+
			"📉 损失修为: %s\n"+
			"✨ 剩余修为: %s",
		res.Rate, catalog.FormatNumber(res.ExpLost), catalog.FormatNumber(res.Player.Exp),
	))
}

// HandleGift handles the /gift command.
// Format: /gift <amount> (reply) or /gift <user_id> <amount>
func (h *PlayerHandler) HandleGift(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, targetName, rest, ok := target(c)
	if !ok || len(rest) < 1 {
		return c.Reply("❌ 用法: 回复对方消息 /gift 数量\n或: /gift <用户ID> <数量>")
	}
	amount, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return c.Reply("❌ 数量格式错误，请输入正整数")
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	if err := h.playerService.Gift(ctx, sender.ID, targetID, amount); err != nil {
		return replyErr(c, err, "赠送失败，请稍后重试")
	}

	p, _ := h.playerService.GetPlayer(ctx, sender.ID)
	msg := fmt.Sprintf("✅ 已向 %s 赠送 %s", targetName, catalog.FormatStones(amount))
	if p != nil {
		msg += "\n💰 当前灵石: " + catalog.FormatStones(p.Stones)
	}
	return c.Reply(msg)
}

// HandleUse handles the /use command.
func (h *PlayerHandler) HandleUse(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /use <丹药名>")
	}

	def, exp, err := h.playerService.UseItem(ctx, sender.ID, strings.Join(args, " "))
	if err != nil {
		return replyErr(c, err, "使用失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("💊 服下 %s，修为 +%s", def.Name, catalog.FormatNumber(exp)))
}

var ledgerNames = map[string]string{
	"initial":       "初始",
	"sign_in":       "签到",
	"gift_out":      "赠出",
	"gift_in":       "获赠",
	"hunt":          "狩猎",
	"boss":          "首领",
	"refine":        "精炼",
	"socket":        "镶嵌",
	"repair":        "修理",
	"shop_purchase": "购物",
	"sect_create":   "建宗",
	"sect_donate":   "捐献",
	"sect_sign_in":  "宗门签到",
	"admin_adjust":  "调整",
}

// HandleHistory handles the /history command.
func (h *PlayerHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entries, err := h.playerService.History(ctx, sender.ID, 10)
	if err != nil {
		return replyErr(c, err, "获取记录失败，请稍后重试")
	}
	if len(entries) == 0 {
		return c.Reply("📒 暂无灵石记录")
	}

	var b strings.Builder
	b.WriteString("📒 最近灵石记录\n")
	b.WriteString(divider + "\n")
	for _, e := range entries {
		kind := ledgerNames[e.Type]
		if kind == "" {
			kind = e.Type
		}
		sign := ""
		if e.Amount > 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s %s %s%s", e.CreatedAt.Format("01-02 15:04"), kind, sign, catalog.FormatNumber(e.Amount))
		if e.Description != nil && *e.Description != "" {
			fmt.Fprintf(&b, " (%s)", *e.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}
