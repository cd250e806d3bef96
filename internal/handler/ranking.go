package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/service"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleTop handles the /top command.
// Displays the top 10 cultivators by realm then exp.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()

	players, err := h.rankingService.TopPlayers(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	if len(players) == 0 {
		return c.Reply("📊 暂无排行数据")
	}

	msg := "🏆 天骄榜 TOP 10\n"
	msg += divider + "\n"

	for i, p := range players {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("道友%d", p.TelegramID)
		}
		msg += fmt.Sprintf("%s %s [%s] 修为 %s\n", rankLabel(i), name, realm.Name(p.Realm), catalog.FormatNumber(p.Exp))
	}

	msg += divider

	return c.Reply(msg)
}

// HandleSectTop handles the /sect_top command.
func (h *RankingHandler) HandleSectTop(c tele.Context) error {
	ctx := context.Background()

	sects, err := h.rankingService.TopSects(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	if len(sects) == 0 {
		return c.Reply("📊 暂无宗门")
	}

	msg := "🏯 宗门榜 TOP 10\n"
	msg += divider + "\n"

	for i, s := range sects {
		msg += fmt.Sprintf("%s %s Lv.%d 经验 %s 👥%d\n", rankLabel(i), s.Name, s.Level, catalog.FormatNumber(s.Exp), s.Members)
	}

	msg += divider

	return c.Reply(msg)
}

// HandleDailyTop handles the /daily_top command.
// Displays today's top stone earners from hunting, bosses and sign-ins.
func (h *RankingHandler) HandleDailyTop(c tele.Context) error {
	ctx := context.Background()

	earners, err := h.rankingService.DailyEarners(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	msg := "📊 今日收获榜\n"
	msg += divider + "\n"

	if len(earners) == 0 {
		msg += "暂无数据\n"
	} else {
		for i, e := range earners {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("道友%d", e.TelegramID)
			}
			msg += fmt.Sprintf("%s %s: +%s\n", rankLabel(i), name, catalog.FormatNumber(e.Earned))
		}
	}

	msg += divider

	return c.Reply(msg)
}
