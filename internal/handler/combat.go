package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/service"
)

// maxShareLines bounds the reward list printed after a boss kill.
const maxShareLines = 5

// CombatHandler handles hunting and world boss commands.
type CombatHandler struct {
	huntService   *service.HuntService
	bossService   *service.BossService
	playerService *service.PlayerService
}

// NewCombatHandler creates a new CombatHandler.
func NewCombatHandler(
	huntService *service.HuntService,
	bossService *service.BossService,
	playerService *service.PlayerService,
) *CombatHandler {
	return &CombatHandler{
		huntService:   huntService,
		bossService:   bossService,
		playerService: playerService,
	}
}

// HandleHunt handles the /hunt command.
// Format: /hunt [monster]; without a monster a random one of the player's
// realm is chosen. /hunt list shows what can be hunted.
func (h *CombatHandler) HandleHunt(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}
	ref := strings.Join(c.Args(), " ")

	if ref == "list" || ref == "列表" {
		return h.replyMonsters(ctx, c, sender.ID)
	}

	rep, err := h.huntService.Hunt(ctx, sender.ID, ref)
	if err != nil {
		return replyErr(c, err, "狩猎失败，请稍后重试")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚔️ 遭遇 %s (%s)\n", rep.Monster.Name, realm.Name(rep.Monster.Realm))
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "🔁 交手 %d 回合，造成 %d 伤害，承受 %d 伤害\n", rep.Rounds, rep.DamageDealt, rep.DamageTaken)
	if !rep.Won {
		b.WriteString("💀 不敌妖兽，狼狈而逃……")
		return c.Reply(b.String())
	}
	b.WriteString("🎉 斩杀成功！\n")
	fmt.Fprintf(&b, "✨ 修为 +%s\n", catalog.FormatNumber(rep.Exp))
	fmt.Fprintf(&b, "💰 灵石 +%s\n", catalog.FormatNumber(rep.Stones))
	for _, d := range rep.Drops {
		fmt.Fprintf(&b, "🎁 获得 %s x%d\n", d.Item.Name, d.Qty)
	}
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

func (h *CombatHandler) replyMonsters(ctx context.Context, c tele.Context, playerID int64) error {
	p, err := h.playerService.GetPlayer(ctx, playerID)
	if err != nil {
		return replyErr(c, err, "获取妖兽失败")
	}
	monsters := h.huntService.Monsters(p.Realm)
	if len(monsters) == 0 {
		return c.Reply("🌲 附近没有可狩猎的妖兽")
	}

	var b strings.Builder
	b.WriteString("🌲 可狩猎的妖兽\n")
	b.WriteString(divider + "\n")
	for _, m := range monsters {
		fmt.Fprintf(&b, "%s [%s] 气血%d 攻%d 防%d\n", m.Name, realm.Name(m.Realm), m.HP, m.Attack, m.Defense)
	}
	b.WriteString(divider + "\n")
	b.WriteString("用法: /hunt <妖兽>")
	return c.Reply(b.String())
}

// HandleBoss handles the /boss command.
func (h *CombatHandler) HandleBoss(c tele.Context) error {
	ctx := context.Background()

	if args := c.Args(); len(args) > 0 {
		st, err := h.bossService.Status(ctx, strings.Join(args, " "))
		if err != nil {
			return replyErr(c, err, "获取首领失败，请稍后重试")
		}
		return c.Reply(h.formatBoss(ctx, st, true))
	}

	list, err := h.bossService.List(ctx)
	if err != nil {
		return replyErr(c, err, "获取首领失败，请稍后重试")
	}
	if len(list) == 0 {
		return c.Reply("🐉 当前没有世界首领")
	}
	var b strings.Builder
	b.WriteString("🐉 世界首领\n")
	b.WriteString(divider + "\n")
	for _, st := range list {
		b.WriteString(h.formatBoss(ctx, st, false))
		b.WriteString("\n")
	}
	b.WriteString(divider + "\n")
	b.WriteString("攻击: /boss_attack <首领>")
	return c.Reply(b.String())
}

func (h *CombatHandler) formatBoss(ctx context.Context, st *service.BossStatus, detail bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👹 %s [%s] ", st.Def.Name, realm.Name(st.Def.Realm))
	if st.State.Alive() {
		fmt.Fprintf(&b, "❤️ %s/%s", catalog.FormatNumber(st.State.HP), catalog.FormatNumber(st.State.MaxHP))
	} else {
		fmt.Fprintf(&b, "💀 %s 后重生", formatDuration(st.RespawnIn))
	}
	if !detail {
		return b.String()
	}

	fmt.Fprintf(&b, "\n💰 奖池 %s，最后一击 +%s", catalog.FormatNumber(st.Def.StonePool), catalog.FormatNumber(st.Def.KillerBonus))
	if len(st.State.Damage) > 0 {
		fmt.Fprintf(&b, "\n⚔️ 参战 %d 人", len(st.State.Damage))
	}
	kills, err := h.bossService.RecentKills(ctx, st.Def.ID, 1)
	if err == nil && len(kills) > 0 {
		name := fmt.Sprintf("%d", kills[0].KillerID)
		if p, err := h.playerService.GetPlayer(ctx, kills[0].KillerID); err == nil {
			name = p.Name
		}
		fmt.Fprintf(&b, "\n🏅 上次击杀: %s (%s)", name, kills[0].KilledAt.Format("01-02 15:04"))
	}
	return b.String()
}

// HandleBossAttack handles the /boss_attack command.
func (h *CombatHandler) HandleBossAttack(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /boss_attack <首领>")
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	rep, err := h.bossService.Attack(ctx, sender.ID, strings.Join(args, " "))
	if err != nil {
		return replyErr(c, err, "攻击失败，请稍后重试")
	}

	if !rep.Killed {
		return c.Reply(fmt.Sprintf(
			"⚔️ 你对 %s 造成 %s 点伤害\n❤️ 剩余气血: %s/%s\n📊 累计伤害: %s",
			rep.Boss.Name,
			catalog.FormatNumber(rep.Damage),
			catalog.FormatNumber(rep.State.HP),
			catalog.FormatNumber(rep.State.MaxHP),
			catalog.FormatNumber(rep.State.Damage[sender.ID]),
		))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 %s 给予 %s 最后一击！\n", rep.Player.Name, rep.Boss.Name)
	b.WriteString(divider + "\n")
	for i, sh := range rep.Shares {
		if i == maxShareLines {
			fmt.Fprintf(&b, "…… 共 %d 人分得奖励\n", len(rep.Shares))
			break
		}
		name := fmt.Sprintf("%d", sh.PlayerID)
		if p, err := h.playerService.GetPlayer(ctx, sh.PlayerID); err == nil {
			name = p.Name
		}
		fmt.Fprintf(&b, "%s %s 伤害 %s → %s", rankLabel(i), name, catalog.FormatNumber(sh.Damage), catalog.FormatStones(sh.Stones))
		if sh.Killer {
			b.WriteString(" 🗡️")
		}
		if sh.TopDrop != "" {
			b.WriteString(" 🎁")
		}
		b.WriteString("\n")
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}
