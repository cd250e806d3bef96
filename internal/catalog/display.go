package catalog

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var kindNames = map[Kind]string{
	KindWeapon:     "武器",
	KindArmor:      "防具",
	KindAccessory:  "饰品",
	KindMaterial:   "材料",
	KindGem:        "宝石",
	KindConsumable: "丹药",
}

var slotNames = map[Slot]string{
	SlotWeapon: "武器",
	SlotHead:   "头盔",
	SlotBody:   "衣甲",
	SlotLegs:   "护腿",
	SlotFeet:   "靴子",
	SlotRing:   "戒指",
	SlotAmulet: "项链",
}

var qualityNames = [...]string{"凡品", "灵品", "宝品", "仙品", "神品"}

var qualityEmoji = [...]string{"⚪", "🟢", "🔵", "🟣", "🟠"}

var statNames = map[Stat]string{
	StatAttack:  "攻击",
	StatDefense: "防御",
	StatHP:      "气血",
}

// KindName translates an item kind.
func KindName(k Kind) string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return string(k)
}

// SlotName translates an equipment slot.
func SlotName(s Slot) string {
	if n, ok := slotNames[s]; ok {
		return n
	}
	return string(s)
}

// QualityName translates an equipment quality, with its colour marker.
func QualityName(q Quality) string {
	if q < QualityCommon || int(q) >= len(qualityNames) {
		return "未知"
	}
	return qualityEmoji[q] + qualityNames[q]
}

// StatName translates a gem stat.
func StatName(s Stat) string {
	if n, ok := statNames[s]; ok {
		return n
	}
	return string(s)
}

var printer = message.NewPrinter(language.Chinese)

// FormatNumber renders n with thousands separators.
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatStones renders an amount of spirit stones.
func FormatStones(n int64) string {
	return FormatNumber(n) + " 灵石"
}
