// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/repository"
	"cultivation-bot/internal/sect"
	"cultivation-bot/internal/service"
)

const divider = "━━━━━━━━━━━━━━━"

var medals = []string{"🥇", "🥈", "🥉"}

// rankLabel returns a medal for the top three and "n." after.
func rankLabel(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

// displayName picks the username, then the first name.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// ensure creates the sender's player on first contact.
func ensure(ctx context.Context, players *service.PlayerService, c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return errors.New("no sender")
	}
	_, _, err := players.EnsurePlayer(ctx, sender.ID, displayName(sender))
	return err
}

// target resolves the user a command is aimed at: the author of the replied
// message, a text mention, or a numeric id as the first argument. rest holds
// the arguments left after the target.
func target(c tele.Context) (id int64, name string, rest []string, ok bool) {
	args := c.Args()
	msg := c.Message()

	if msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && !msg.ReplyTo.Sender.IsBot {
		u := msg.ReplyTo.Sender
		if len(args) > 0 && strings.HasPrefix(args[0], "@") {
			args = args[1:]
		}
		return u.ID, displayName(u), args, true
	}

	if msg != nil {
		for _, entity := range msg.Entities {
			if entity.Type == tele.EntityTMention && entity.User != nil {
				rest := args
				if len(rest) > 0 && !isNumber(rest[0]) {
					rest = rest[1:]
				}
				return entity.User.ID, displayName(entity.User), rest, true
			}
		}
	}

	if len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil && id > 0 {
			return id, args[0], args[1:], true
		}
	}
	return 0, "", args, false
}

func isNumber(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// formatDuration renders a wait time as 时/分/秒.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		d = time.Second
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%d小时%d分", h, m)
	case m > 0:
		return fmt.Sprintf("%d分%d秒", m, s)
	}
	return fmt.Sprintf("%d秒", s)
}

// errorMessages maps known errors to replies, checked in order.
var errorMessages = []struct {
	err error
	msg string
}{
	{repository.ErrPlayerNotFound, "道友尚未入道，请先发送 /start"},
	{repository.ErrInsufficientStones, "灵石不足"},
	{repository.ErrInsufficientItems, "物品数量不足"},
	{repository.ErrInsufficientFunds, "宗门资金不足"},
	{repository.ErrEquipmentNotFound, "找不到该装备，请用 /gear 查看编号"},
	{repository.ErrSectNotFound, "找不到该宗门"},
	{repository.ErrSectNameTaken, "宗门名称已被占用"},
	{repository.ErrAlreadyApplied, "已提交过申请，请耐心等待"},
	{service.ErrInvalidAmount, "数量必须大于 0"},
	{service.ErrUnknownItem, "没有这种物品"},
	{service.ErrSelfGift, "不能赠送给自己"},
	{service.ErrMaxRealm, "已至巅峰境界，无法再突破"},
	{service.ErrNotEnoughExp, "修为不足，无法突破"},
	{service.ErrNotUsable, "该物品无法使用"},
	{service.ErrRealmTooLow, "境界不足"},
	{service.ErrAmbiguousID, "编号匹配到多件装备，请多输入几位"},
	{service.ErrShortID, fmt.Sprintf("装备编号至少输入 %d 位", service.MinRefLen)},
	{service.ErrBadRef, "装备编号只能包含数字、a-f 和 -"},
	{service.ErrAlreadyEquipped, "该装备已穿戴"},
	{service.ErrEquipped, "请先卸下该装备"},
	{service.ErrSlotEmpty, "该部位没有装备"},
	{service.ErrNoProtection, "储物袋中没有护器符"},
	{service.ErrNoRefineStones, "炼器石不足"},
	{service.ErrUnknownMonster, "没有这种妖兽"},
	{service.ErrNoMonsters, "当前境界没有可狩猎的妖兽"},
	{service.ErrMonsterTooHigh, "该妖兽境界高于你，不可力敌"},
	{service.ErrUnknownBoss, "没有这个首领"},
	{service.ErrNotForSale, "该物品不出售"},
	{service.ErrMaxPurchase, fmt.Sprintf("单次最多购买 %d 个", service.MaxPurchaseQty)},
	{service.ErrAlreadyInSect, "你已加入宗门"},
	{service.ErrNotInSect, "你尚未加入宗门"},
	{service.ErrNotSameSect, "对方不是本宗弟子"},
	{service.ErrSectFull, "宗门人数已满"},
	{service.ErrElderCap, "长老席位已满"},
	{service.ErrApplicationNotFound, "没有找到该申请"},
	{service.ErrLeaderMustTransfer, "宗主须先传位才能退出宗门"},
	{service.ErrDonationCap, "今日捐献已达上限"},
	{service.ErrAlreadySigned, "今日已在宗门签到"},
	{service.ErrSelfTarget, "不能对自己操作"},
	{service.ErrRoleUnchanged, "对方已是该职位"},
	{service.ErrAnnouncementLength, fmt.Sprintf("公告最多 %d 字", service.AnnouncementMaxRune)},
	{forge.ErrMaxLevel, "装备已达最高精炼等级"},
	{forge.ErrBroken, "装备已损坏，请先修理"},
	{forge.ErrNothingToRepair, "装备耐久已满"},
	{forge.ErrNoSuchSocket, "没有这个镶嵌孔"},
	{forge.ErrSocketOccupied, "该孔已镶嵌宝石"},
	{forge.ErrSocketEmpty, "该孔没有宝石"},
	{forge.ErrNoFreeSocket, "没有空余的镶嵌孔"},
	{forge.ErrNotAGem, "该物品不是宝石"},
	{sect.ErrFacilityUnknown, "没有这种设施，可选: 藏经阁 炼器房 灵田"},
	{sect.ErrFacilityCapped, "设施等级不能超过宗门等级"},
	{sect.ErrNameLength, fmt.Sprintf("宗门名称须为 %d 到 %d 个字", sect.NameMinRunes, sect.NameMaxRunes)},
	{sect.ErrPermission, "职位不足，无权操作"},
}

// errorText translates err into a reply. Unknown errors are logged and
// answered with fallback.
func errorText(err error, fallback string) string {
	var cd *service.CooldownError
	if errors.As(err, &cd) {
		return "⏰ 冷却中，还需 " + formatDuration(cd.Remaining)
	}
	var dead *service.BossDeadError
	if errors.As(err, &dead) {
		return "💀 首领已被击杀，" + formatDuration(dead.RespawnIn) + " 后重生"
	}
	for _, e := range errorMessages {
		if errors.Is(err, e.err) {
			return "❌ " + e.msg
		}
	}
	log.Error().Err(err).Msg("Unhandled command error")
	return "❌ " + fallback
}

// replyErr answers a failed command.
func replyErr(c tele.Context, err error, fallback string) error {
	return c.Reply(errorText(err, fallback))
}
