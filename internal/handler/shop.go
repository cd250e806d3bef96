package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/service"
	"cultivation-bot/internal/shop"
)

// ShopHandler handles shop-related commands
type ShopHandler struct {
	shopService      *service.ShopService
	playerService    *service.PlayerService
	equipmentService *service.EquipmentService
	items            *catalog.Catalog
}

// NewShopHandler creates a new ShopHandler
func NewShopHandler(
	shopService *service.ShopService,
	playerService *service.PlayerService,
	equipmentService *service.EquipmentService,
	items *catalog.Catalog,
) *ShopHandler {
	return &ShopHandler{
		shopService:      shopService,
		playerService:    playerService,
		equipmentService: equipmentService,
		items:            items,
	}
}

// HandleShopStart handles /start in private chat to show shop
func (h *ShopHandler) HandleShopStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()

	if sender == nil || chat == nil {
		return nil
	}

	// Only show shop in private chat
	if chat.Type != tele.ChatPrivate {
		return nil
	}

	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	balance, err := h.shopService.Balance(ctx, sender.ID)
	if err != nil {
		balance = 0
	}

	return c.Send(shop.FormatShopMessage(balance), shop.BuildShopPanel(h.shopService.Items()))
}

func (h *ShopHandler) showShop(ctx context.Context, c tele.Context, playerID int64) error {
	balance, _ := h.shopService.Balance(ctx, playerID)
	return c.Edit(shop.FormatShopMessage(balance), shop.BuildShopPanel(h.shopService.Items()))
}

// HandleShopCallback handles shop button callbacks
func (h *ShopHandler) HandleShopCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()

	if callback == nil || sender == nil {
		return nil
	}

	data := strings.TrimPrefix(callback.Data, "\f")

	switch {
	case data == shop.CallbackShopRefresh, data == shop.CallbackShopCancel:
		return h.showShop(ctx, c, sender.ID)

	case data == shop.CallbackShopBag:
		bag, err := h.equipmentService.Bag(ctx, sender.ID)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ 获取储物袋失败", ShowAlert: true})
		}
		gear, err := h.equipmentService.Gear(ctx, sender.ID)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ 获取储物袋失败", ShowAlert: true})
		}
		return c.Edit(shop.FormatBagMessage(h.items, bag, gear), shop.BuildBagPanel())

	case strings.HasPrefix(data, shop.CallbackShopItem):
		def, err := h.shopService.Item(strings.TrimPrefix(data, shop.CallbackShopItem))
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ 商品不存在"})
		}
		balance, _ := h.shopService.Balance(ctx, sender.ID)
		return c.Edit(shop.FormatItemDetail(def, balance), shop.BuildConfirmPanel(def.ID))

	case strings.HasPrefix(data, shop.CallbackShopBuy):
		itemID := strings.TrimPrefix(data, shop.CallbackShopBuy)
		got, err := h.shopService.Buy(ctx, sender.ID, itemID, 1)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: errorText(err, "购买失败，请稍后重试"), ShowAlert: true})
		}

		_ = c.Respond(&tele.CallbackResponse{
			Text: "✅ 购买成功！" + shop.Emoji(got.Item.Kind) + " " + got.Item.Name,
		})
		return h.showShop(ctx, c, sender.ID)
	}

	return nil
}

// HandleBuy handles the /buy command for buying in bulk.
// Format: /buy <item> [qty]
func (h *ShopHandler) HandleBuy(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /buy <物品> [数量]\n私聊发送 /start 查看万宝阁")
	}
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Reply("❌ 数量格式错误，请输入正整数")
		}
		qty = n
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	got, err := h.shopService.Buy(ctx, sender.ID, args[0], qty)
	if err != nil {
		return replyErr(c, err, "购买失败，请稍后重试")
	}

	msg := fmt.Sprintf(
		"✅ 购买 %s %s x%d\n💰 花费 %s，剩余 %s",
		shop.Emoji(got.Item.Kind), got.Item.Name, got.Qty,
		catalog.FormatStones(got.Cost), catalog.FormatStones(got.Player.Stones),
	)
	for _, eq := range got.Pieces {
		msg += "\n" + shop.FormatEquipmentLine(h.items, eq)
	}
	return c.Reply(msg)
}
