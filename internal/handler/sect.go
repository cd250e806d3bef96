package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/repository"
	"cultivation-bot/internal/sect"
	"cultivation-bot/internal/service"
)

// SectHandler handles sect commands and application buttons.
type SectHandler struct {
	sectService   *service.SectService
	playerService *service.PlayerService
}

// NewSectHandler creates a new SectHandler.
func NewSectHandler(sectService *service.SectService, playerService *service.PlayerService) *SectHandler {
	return &SectHandler{
		sectService:   sectService,
		playerService: playerService,
	}
}

// HandleSect handles the /sect command: the player's own sect, or the named
// one.
func (h *SectHandler) HandleSect(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var (
		info *service.SectInfo
		err  error
	)
	if args := c.Args(); len(args) > 0 {
		info, err = h.sectService.Info(ctx, strings.Join(args, " "))
	} else {
		info, err = h.sectService.Mine(ctx, sender.ID)
	}
	if err != nil {
		if errors.Is(err, service.ErrNotInSect) {
			return c.Reply("🏯 你尚未加入宗门\n\n/sect_list 查看宗门\n/sect_apply <宗门> 申请加入\n/sect_create <名称> 创建宗门")
		}
		return replyErr(c, err, "获取宗门失败，请稍后重试")
	}
	return c.Reply(formatSect(info))
}

func formatSect(info *service.SectInfo) string {
	sc := info.Sect
	var b strings.Builder
	fmt.Fprintf(&b, "🏯 %s (ID: %d)\n", sc.Name, sc.ID)
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "👑 宗主: %s\n", info.Leader)
	fmt.Fprintf(&b, "📈 等级: %d  经验: %s", sc.Level, catalog.FormatNumber(sc.Exp))
	if sc.Level < sect.MaxLevel {
		fmt.Fprintf(&b, "/%s", catalog.FormatNumber(sect.Threshold(sc.Level+1)))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "👥 弟子: %d/%d  长老: %d/%d\n", len(info.Members), sect.MemberCap(sc.Level), info.Elders, sect.ElderCap(sc.Level))
	fmt.Fprintf(&b, "💰 资金: %s\n", catalog.FormatStones(sc.Funds))
	for _, f := range sect.Facilities {
		fmt.Fprintf(&b, "🏛️ %s Lv.%d\n", f.Name(), sc.Facility(string(f)))
	}
	if sc.Announcement != "" {
		fmt.Fprintf(&b, "📢 %s\n", sc.Announcement)
	}
	b.WriteString(divider + "\n")
	for _, m := range info.Members {
		fmt.Fprintf(&b, "%s %s [%s] 贡献 %s\n", sect.RoleName(m.Role), m.Name, realm.Name(m.Realm), catalog.FormatNumber(m.Contribution))
	}
	b.WriteString(divider)
	return b.String()
}

// HandleList handles the /sect_list command.
func (h *SectHandler) HandleList(c tele.Context) error {
	ctx := context.Background()

	sects, err := h.sectService.Top(ctx, 20)
	if err != nil {
		return replyErr(c, err, "获取宗门列表失败")
	}
	if len(sects) == 0 {
		return c.Reply("🏯 天下尚无宗门，发送 /sect_create <名称> 开宗立派")
	}

	var b strings.Builder
	b.WriteString("🏯 宗门列表\n")
	b.WriteString(divider + "\n")
	for _, s := range sects {
		fmt.Fprintf(&b, "#%d %s Lv.%d 👥%d/%d\n", s.ID, s.Name, s.Level, s.Members, sect.MemberCap(s.Level))
	}
	b.WriteString(divider + "\n")
	b.WriteString("申请加入: /sect_apply <宗门名或ID>")
	return c.Reply(b.String())
}

// HandleCreate handles the /sect_create command.
func (h *SectHandler) HandleCreate(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /sect_create <宗门名称>")
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	sc, err := h.sectService.Create(ctx, sender.ID, strings.Join(args, ""))
	if err != nil {
		return replyErr(c, err, "创建宗门失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🎉 %s 开宗立派，%s 正式成立！\n宗门ID: %d", displayName(sender), sc.Name, sc.ID))
}

// HandleApply handles the /sect_apply command. The request is posted with
// buttons for the sect's leader and elders.
func (h *SectHandler) HandleApply(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /sect_apply <宗门名或ID>")
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	sc, err := h.sectService.Apply(ctx, sender.ID, strings.Join(args, " "))
	if err != nil {
		return replyErr(c, err, "申请失败，请稍后重试")
	}
	return c.Reply(
		fmt.Sprintf("📨 %s 申请加入 %s\n请宗主或长老审批", displayName(sender), sc.Name),
		sect.BuildApplicationPanel(sender.ID),
	)
}

// HandleApplications handles the /sect_apps command.
func (h *SectHandler) HandleApplications(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	sc, apps, err := h.sectService.Applications(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "获取申请失败，请稍后重试")
	}
	if len(apps) == 0 {
		return c.Reply("📭 暂无入门申请")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📨 %s 入门申请\n", sc.Name)
	b.WriteString(divider + "\n")
	for _, a := range apps {
		fmt.Fprintf(&b, "%s (ID: %d) %s\n", a.Name, a.PlayerID, a.CreatedAt.Format("01-02 15:04"))
	}
	b.WriteString(divider + "\n")
	b.WriteString("/sect_approve <ID> 准许  /sect_reject <ID> 拒绝")
	return c.Reply(b.String())
}

func parseApplicant(c tele.Context) (int64, bool) {
	if id, _, _, ok := target(c); ok {
		return id, true
	}
	return 0, false
}

// HandleApprove handles the /sect_approve command.
func (h *SectHandler) HandleApprove(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	applicantID, ok := parseApplicant(c)
	if !ok {
		return c.Reply("❌ 用法: /sect_approve <申请人ID>")
	}

	p, err := h.sectService.Approve(ctx, sender.ID, applicantID)
	if err != nil {
		return replyErr(c, err, "审批失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🎊 欢迎 %s 拜入山门！", p.Name))
}

// HandleReject handles the /sect_reject command.
func (h *SectHandler) HandleReject(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	applicantID, ok := parseApplicant(c)
	if !ok {
		return c.Reply("❌ 用法: /sect_reject <申请人ID>")
	}

	if err := h.sectService.Reject(ctx, sender.ID, applicantID); err != nil {
		return replyErr(c, err, "审批失败，请稍后重试")
	}
	return c.Reply("🚫 已拒绝该申请")
}

// HandleCallback handles the approve/reject buttons.
func (h *SectHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	prefix, applicantID, err := sect.ParseCallback(strings.TrimPrefix(callback.Data, "\f"))
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring sect callback")
		return c.Respond()
	}

	switch prefix {
	case sect.CallbackApprove:
		p, err := h.sectService.Approve(ctx, sender.ID, applicantID)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: errorText(err, "审批失败"), ShowAlert: true})
		}
		_ = c.Respond(&tele.CallbackResponse{Text: "✅ 已准许"})
		return c.Edit(fmt.Sprintf("🎊 %s 准许 %s 拜入山门！", displayName(sender), p.Name))
	default:
		if err := h.sectService.Reject(ctx, sender.ID, applicantID); err != nil {
			return c.Respond(&tele.CallbackResponse{Text: errorText(err, "审批失败"), ShowAlert: true})
		}
		_ = c.Respond(&tele.CallbackResponse{Text: "🚫 已拒绝"})
		return c.Edit(fmt.Sprintf("🚫 %s 拒绝了该入门申请", displayName(sender)))
	}
}

// HandleLeave handles the /sect_leave command.
func (h *SectHandler) HandleLeave(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	disbanded, err := h.sectService.Leave(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "退出失败，请稍后重试")
	}
	if disbanded {
		return c.Reply("🍂 你离开了宗门，宗门随之解散")
	}
	return c.Reply("👋 你已退出宗门")
}

// HandleKick handles the /sect_kick command.
func (h *SectHandler) HandleKick(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	targetID, _, _, ok := target(c)
	if !ok {
		return c.Reply("❌ 用法: 回复对方消息 /sect_kick，或 /sect_kick <用户ID>")
	}

	p, err := h.sectService.Kick(ctx, sender.ID, targetID)
	if err != nil {
		return replyErr(c, err, "逐出失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🚪 %s 已被逐出宗门", p.Name))
}

// HandlePromote handles the /sect_promote command.
func (h *SectHandler) HandlePromote(c tele.Context) error {
	return h.setRole(c, model.RoleElder, "/sect_promote")
}

// HandleDemote handles the /sect_demote command.
func (h *SectHandler) HandleDemote(c tele.Context) error {
	return h.setRole(c, model.RoleDisciple, "/sect_demote")
}

func (h *SectHandler) setRole(c tele.Context, role model.SectRole, command string) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	targetID, _, _, ok := target(c)
	if !ok {
		return c.Reply(fmt.Sprintf("❌ 用法: 回复对方消息 %s，或 %s <用户ID>", command, command))
	}

	p, err := h.sectService.SetRole(ctx, sender.ID, targetID, role)
	if err != nil {
		return replyErr(c, err, "任命失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("📜 %s 现为%s", p.Name, sect.RoleName(role)))
}

// HandleTransfer handles the /sect_transfer command.
func (h *SectHandler) HandleTransfer(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	targetID, _, _, ok := target(c)
	if !ok {
		return c.Reply("❌ 用法: 回复对方消息 /sect_transfer，或 /sect_transfer <用户ID>")
	}

	p, err := h.sectService.Transfer(ctx, sender.ID, targetID)
	if err != nil {
		return replyErr(c, err, "传位失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("👑 宗主之位传于 %s，%s 退居长老", p.Name, displayName(sender)))
}

// HandleDonate handles the /sect_donate command.
func (h *SectHandler) HandleDonate(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /sect_donate <灵石数量>")
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ 数量格式错误，请输入正整数")
	}

	res, err := h.sectService.Donate(ctx, sender.ID, amount)
	if err != nil {
		return replyErr(c, err, "捐献失败，请稍后重试")
	}
	msg := fmt.Sprintf(
		"🙏 向 %s 捐献 %s\n📜 贡献: %s\n💰 宗门资金: %s",
		res.Sect.Name, catalog.FormatStones(amount),
		catalog.FormatNumber(res.Player.Contribution), catalog.FormatStones(res.Sect.Funds),
	)
	if res.LevelsGained > 0 {
		msg += fmt.Sprintf("\n🎉 宗门升至 %d 级！", res.Sect.Level)
	}
	return c.Reply(msg)
}

// HandleSign handles the /sect_sign command.
func (h *SectHandler) HandleSign(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	res, err := h.sectService.SignIn(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "签到失败，请稍后重试")
	}
	msg := fmt.Sprintf("✅ 宗门签到成功\n📜 贡献 +%d  宗门经验 +%d", service.SignInContribution, service.SignInSectExp)
	if res.Stones > 0 {
		msg += "\n🌾 灵田产出 " + catalog.FormatStones(res.Stones)
	}
	if res.LevelsGained > 0 {
		msg += fmt.Sprintf("\n🎉 宗门升至 %d 级！", res.Sect.Level)
	}
	return c.Reply(msg)
}

// HandleUpgrade handles the /sect_upgrade command.
func (h *SectHandler) HandleUpgrade(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /sect_upgrade <设施>\n设施: 藏经阁 炼器房 灵田")
	}

	sc, f, cost, err := h.sectService.Upgrade(ctx, sender.ID, args[0])
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) && cost > 0 {
			return c.Reply(fmt.Sprintf("❌ 宗门资金不足，升级需要 %s", catalog.FormatStones(cost)))
		}
		return replyErr(c, err, "升级失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf(
		"🏛️ %s 升至 %d 级\n💰 花费 %s，剩余资金 %s",
		f.Name(), sc.Facility(string(f)), catalog.FormatStones(cost), catalog.FormatStones(sc.Funds),
	))
}

// HandleAnnounce handles the /sect_announce command.
func (h *SectHandler) HandleAnnounce(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	text := strings.TrimSpace(c.Message().Payload)

	sc, err := h.sectService.Announce(ctx, sender.ID, text)
	if err != nil {
		return replyErr(c, err, "发布失败，请稍后重试")
	}
	if text == "" {
		return c.Reply("📢 已清除 " + sc.Name + " 的公告")
	}
	return c.Reply("📢 " + sc.Name + " 公告已更新")
}

// HandleDisband handles the /sect_disband command. It asks for 确认 first.
func (h *SectHandler) HandleDisband(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if args := c.Args(); len(args) < 1 || args[0] != "确认" {
		return c.Reply("⚠️ 解散后宗门资金与设施将全部清空\n确认请发送: /sect_disband 确认")
	}

	sc, err := h.sectService.Disband(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "解散失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🍂 %s 就此解散，众弟子各奔前程", sc.Name))
}
