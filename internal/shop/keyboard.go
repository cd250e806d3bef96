package shop

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
)

// Callback data prefixes
const (
	CallbackShopItem    = "shop_item:"   // shop_item:refine_stone
	CallbackShopBuy     = "shop_buy:"    // shop_buy:refine_stone
	CallbackShopCancel  = "shop_cancel"  // shop_cancel
	CallbackShopRefresh = "shop_refresh" // shop_refresh
	CallbackShopBag     = "shop_bag"     // shop_bag
)

// BuildShopPanel creates the main shop panel with one button per item,
// two per row.
func BuildShopPanel(items []*catalog.ItemDef) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var currentRow []tele.Btn
	for i, def := range items {
		btn := markup.Data(
			fmt.Sprintf("%s %s (%s)", Emoji(def.Kind), def.Name, catalog.FormatNumber(def.Price)),
			CallbackShopItem+def.ID,
		)
		currentRow = append(currentRow, btn)

		if len(currentRow) == 2 || i == len(items)-1 {
			rows = append(rows, markup.Row(currentRow...))
			currentRow = nil
		}
	}

	rows = append(rows, markup.Row(
		markup.Data("🎒 储物袋", CallbackShopBag),
		markup.Data("🔄 刷新", CallbackShopRefresh),
	))

	markup.Inline(rows...)
	return markup
}

// BuildConfirmPanel creates the purchase confirmation panel.
func BuildConfirmPanel(itemID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	buyBtn := markup.Data("✅ 购买", CallbackShopBuy+itemID)
	cancelBtn := markup.Data("❌ 取消", CallbackShopCancel)

	markup.Inline(
		markup.Row(buyBtn, cancelBtn),
	)
	return markup
}

// BuildBagPanel creates the button row shown under the bag.
func BuildBagPanel() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🏪 返回商店", CallbackShopCancel)))
	return markup
}
