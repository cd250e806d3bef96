// Package shop renders the private-chat shop and bag panels.
package shop

import (
	"fmt"
	"strings"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/model"
)

var kindEmoji = map[catalog.Kind]string{
	catalog.KindWeapon:     "🗡️",
	catalog.KindArmor:      "🛡️",
	catalog.KindAccessory:  "💍",
	catalog.KindMaterial:   "🪨",
	catalog.KindGem:        "💎",
	catalog.KindConsumable: "💊",
}

// Emoji returns the icon of an item kind.
func Emoji(k catalog.Kind) string {
	if e, ok := kindEmoji[k]; ok {
		return e
	}
	return "📦"
}

// Effect describes what an item does, one line.
func Effect(def *catalog.ItemDef) string {
	switch {
	case def.Kind.IsEquipment():
		var parts []string
		if def.Attack > 0 {
			parts = append(parts, fmt.Sprintf("攻击+%d", def.Attack))
		}
		if def.Defense > 0 {
			parts = append(parts, fmt.Sprintf("防御+%d", def.Defense))
		}
		if def.HP > 0 {
			parts = append(parts, fmt.Sprintf("气血+%d", def.HP))
		}
		parts = append(parts, fmt.Sprintf("耐久%d", def.Durability))
		if n := def.Quality.Sockets(); n > 0 {
			parts = append(parts, fmt.Sprintf("镶嵌孔%d", n))
		}
		return strings.Join(parts, " ")
	case def.Kind == catalog.KindGem && def.Gem != nil:
		return fmt.Sprintf("%d阶 %s+%d", def.Gem.Tier, catalog.StatName(def.Gem.Stat), def.Gem.Value)
	case def.Kind == catalog.KindConsumable && def.Exp > 0:
		return fmt.Sprintf("修为+%s", catalog.FormatNumber(def.Exp))
	}
	return def.Description
}

// FormatShopMessage creates the shop welcome message.
func FormatShopMessage(balance int64) string {
	var b strings.Builder
	b.WriteString("🏪 万宝阁\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 你的灵石: %s\n", catalog.FormatNumber(balance))
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString("点击下方按钮查看商品详情：")
	return b.String()
}

// FormatItemDetail creates the item detail message.
func FormatItemDetail(def *catalog.ItemDef, balance int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Emoji(def.Kind), def.Name)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📂 类别: %s", catalog.KindName(def.Kind))
	if def.Kind.IsEquipment() {
		fmt.Fprintf(&b, " · %s · %s", catalog.SlotName(def.Slot), catalog.QualityName(def.Quality))
	}
	b.WriteString("\n")
	if def.Realm > 0 {
		fmt.Fprintf(&b, "🧘 境界要求: %s\n", def.Realm)
	}
	fmt.Fprintf(&b, "💰 价格: %s\n", catalog.FormatStones(def.Price))
	fmt.Fprintf(&b, "📝 效果: %s\n", Effect(def))
	if def.Description != "" && def.Kind.IsEquipment() {
		fmt.Fprintf(&b, "📜 %s\n", def.Description)
	}
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 你的灵石: %s\n", catalog.FormatNumber(balance))

	if balance < def.Price {
		b.WriteString("❌ 灵石不足！")
	} else {
		b.WriteString("确认购买吗？")
	}
	return b.String()
}

// FormatBagMessage lists stackable items and unworn equipment.
func FormatBagMessage(items *catalog.Catalog, bag []*model.BagItem, gear []*model.Equipment) string {
	var loose []*model.Equipment
	for _, eq := range gear {
		if !eq.Equipped() {
			loose = append(loose, eq)
		}
	}
	if len(bag) == 0 && len(loose) == 0 {
		return "🎒 储物袋空空如也\n\n私聊我发送 /start 前往万宝阁"
	}

	var b strings.Builder
	b.WriteString("🎒 储物袋\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, it := range bag {
		def, ok := items.Item(it.ItemID)
		if !ok {
			fmt.Fprintf(&b, "📦 %s x%d\n", it.ItemID, it.Quantity)
			continue
		}
		fmt.Fprintf(&b, "%s %s x%d\n", Emoji(def.Kind), def.Name, it.Quantity)
	}
	if len(loose) > 0 {
		if len(bag) > 0 {
			b.WriteString("━━━━━━━━━━━━━━━\n")
		}
		for _, eq := range loose {
			b.WriteString(FormatEquipmentLine(items, eq))
			b.WriteString("\n")
		}
		b.WriteString("装备方法: /equip <编号>")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatEquipmentLine renders one piece: icon, name, refine, durability, id.
func FormatEquipmentLine(items *catalog.Catalog, eq *model.Equipment) string {
	name, emoji := eq.DefID, "📦"
	if def, ok := items.Item(eq.DefID); ok {
		name, emoji = def.Name, Emoji(def.Kind)
	}
	if eq.RefineLevel > 0 {
		name = fmt.Sprintf("%s +%d", name, eq.RefineLevel)
	}
	line := fmt.Sprintf("%s %s [%d/%d] #%s", emoji, name, eq.Durability, eq.MaxDurability, eq.ShortID())
	if eq.Broken() {
		line += " ⚠️已损坏"
	}
	return line
}
