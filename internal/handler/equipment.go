package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/service"
	"cultivation-bot/internal/shop"
)

// EquipmentHandler handles bag and gear commands.
type EquipmentHandler struct {
	equipmentService *service.EquipmentService
	playerService    *service.PlayerService
	items            *catalog.Catalog
}

// NewEquipmentHandler creates a new EquipmentHandler.
func NewEquipmentHandler(
	equipmentService *service.EquipmentService,
	playerService *service.PlayerService,
	items *catalog.Catalog,
) *EquipmentHandler {
	return &EquipmentHandler{
		equipmentService: equipmentService,
		playerService:    playerService,
		items:            items,
	}
}

// HandleBag handles the /bag command.
func (h *EquipmentHandler) HandleBag(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 获取储物袋失败")
	}

	bag, err := h.equipmentService.Bag(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "获取储物袋失败")
	}
	gear, err := h.equipmentService.Gear(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "获取储物袋失败")
	}
	return c.Reply(shop.FormatBagMessage(h.items, bag, gear))
}

// HandleGear handles the /gear command.
func (h *EquipmentHandler) HandleGear(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := ensure(ctx, h.playerService, c); err != nil {
		return c.Reply("❌ 获取装备失败")
	}

	gear, err := h.equipmentService.Gear(ctx, sender.ID)
	if err != nil {
		return replyErr(c, err, "获取装备失败")
	}
	if len(gear) == 0 {
		return c.Reply("🗡️ 你还没有任何装备")
	}

	var b strings.Builder
	b.WriteString("🗡️ 我的装备\n")
	b.WriteString(divider + "\n")
	for _, eq := range gear {
		if eq.Equipped() {
			fmt.Fprintf(&b, "[%s] ", catalog.SlotName(catalog.Slot(eq.EquippedSlot)))
		}
		b.WriteString(shop.FormatEquipmentLine(h.items, eq))
		if len(eq.Sockets) > 0 {
			b.WriteString("\n    ")
			for i, gemID := range eq.Sockets {
				if i > 0 {
					b.WriteString(" ")
				}
				if gemID == "" {
					fmt.Fprintf(&b, "%d:◻️", i+1)
					continue
				}
				name := gemID
				if gem, ok := h.items.Item(gemID); ok {
					name = gem.Name
				}
				fmt.Fprintf(&b, "%d:💎%s", i+1, name)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(divider + "\n")
	b.WriteString("/equip /refine /socket /repair <编号>")
	return c.Reply(b.String())
}

// HandleEquip handles the /equip command.
func (h *EquipmentHandler) HandleEquip(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /equip <装备编号>")
	}

	eq, def, replaced, err := h.equipmentService.Equip(ctx, sender.ID, args[0])
	if err != nil {
		return replyErr(c, err, "穿戴失败，请稍后重试")
	}
	msg := fmt.Sprintf("✅ 已穿戴 %s 于%s", shop.FormatEquipmentLine(h.items, eq), catalog.SlotName(def.Slot))
	if replaced != nil {
		msg += "\n↩️ 卸下 " + shop.FormatEquipmentLine(h.items, replaced)
	}
	return c.Reply(msg)
}

// HandleUnequip handles the /unequip command.
func (h *EquipmentHandler) HandleUnequip(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /unequip <部位>\n部位: 武器 头盔 衣甲 护腿 靴子 戒指 项链")
	}
	slot, ok := catalog.ParseSlot(args[0])
	if !ok {
		return c.Reply("❌ 没有这个部位\n部位: 武器 头盔 衣甲 护腿 靴子 戒指 项链")
	}

	eq, err := h.equipmentService.Unequip(ctx, sender.ID, slot)
	if err != nil {
		return replyErr(c, err, "卸下失败，请稍后重试")
	}
	return c.Reply("↩️ 已卸下 " + shop.FormatEquipmentLine(h.items, eq))
}

// HandleRefine handles the /refine command.
// Format: /refine <id> [protect]
func (h *EquipmentHandler) HandleRefine(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /refine <装备编号> [保护]\n加上「保护」将在碎裂时消耗护器符保住装备")
	}
	protect := len(args) > 1 && (args[1] == "保护" || args[1] == "protect")

	rep, err := h.equipmentService.Refine(ctx, sender.ID, args[0], protect)
	if err != nil {
		return replyErr(c, err, "精炼失败，请稍后重试")
	}

	res := rep.Result
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 精炼 %s +%d (成功率 %d%%)\n", rep.Def.Name, res.From, res.Rate)
	b.WriteString(divider + "\n")
	switch res.Outcome {
	case forge.OutcomeSuccess:
		fmt.Fprintf(&b, "✨ %s！%s +%d → +%d\n", res.Outcome, rep.Def.Name, res.From, res.To)
	case forge.OutcomeFail:
		fmt.Fprintf(&b, "💨 %s，等级不变，耐久 -%d\n", res.Outcome, res.DurabilityLost)
	case forge.OutcomeDowngrade:
		fmt.Fprintf(&b, "📉 %s！+%d → +%d\n", res.Outcome, res.From, res.To)
		if res.ProtectionUsed {
			b.WriteString("🛡️ 护器符碎裂，保住了装备\n")
		}
	case forge.OutcomeShatter:
		fmt.Fprintf(&b, "💥 %s！%s 化为齑粉\n", res.Outcome, rep.Def.Name)
	}
	fmt.Fprintf(&b, "🪨 消耗炼器石 %d，%s", rep.Cost.RefineStones, catalog.FormatStones(rep.Cost.Stones))
	return c.Reply(b.String())
}

// HandleSocket handles the /socket command.
// Format: /socket <id> <gem> [hole]
func (h *EquipmentHandler) HandleSocket(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ 用法: /socket <装备编号> <宝石> [孔位]")
	}
	index := -1
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			return c.Reply("❌ 孔位格式错误")
		}
		index = n - 1
	}

	rep, err := h.equipmentService.Socket(ctx, sender.ID, args[0], args[1], index)
	if err != nil {
		return replyErr(c, err, "镶嵌失败，请稍后重试")
	}
	if rep.Result.Success {
		return c.Reply(fmt.Sprintf(
			"💎 镶嵌成功！\n%s 第%d孔 ← %s\n💰 花费 %s",
			rep.Def.Name, rep.Result.Index+1, rep.Gem.Name, catalog.FormatStones(rep.Cost),
		))
	}
	return c.Reply(fmt.Sprintf(
		"💔 镶嵌失败 (成功率 %d%%)，%s 碎裂\n💰 花费 %s",
		rep.Result.Rate, rep.Gem.Name, catalog.FormatStones(rep.Cost),
	))
}

// HandleUnsocket handles the /unsocket command.
func (h *EquipmentHandler) HandleUnsocket(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ 用法: /unsocket <装备编号> <孔位>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return c.Reply("❌ 孔位格式错误")
	}

	gem, cost, err := h.equipmentService.Unsocket(ctx, sender.ID, args[0], n-1)
	if err != nil {
		return replyErr(c, err, "拆除失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🔧 已拆下 %s 放回储物袋\n💰 花费 %s", gem.Name, catalog.FormatStones(cost)))
}

// HandleRepair handles the /repair command. Without an id it repairs every
// worn piece.
func (h *EquipmentHandler) HandleRepair(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()

	if len(args) == 0 {
		count, total, err := h.equipmentService.RepairAll(ctx, sender.ID)
		if err != nil {
			return replyErr(c, err, "修理失败，请稍后重试")
		}
		return c.Reply(fmt.Sprintf("🔨 修理了 %d 件装备\n💰 花费 %s", count, catalog.FormatStones(total)))
	}

	eq, _, cost, err := h.equipmentService.Repair(ctx, sender.ID, args[0])
	if err != nil {
		return replyErr(c, err, "修理失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🔨 修理完成 %s\n💰 花费 %s", shop.FormatEquipmentLine(h.items, eq), catalog.FormatStones(cost)))
}

// HandleDiscard handles the /discard command.
func (h *EquipmentHandler) HandleDiscard(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /discard <装备编号>")
	}

	def, err := h.equipmentService.Discard(ctx, sender.ID, args[0])
	if err != nil {
		return replyErr(c, err, "丢弃失败，请稍后重试")
	}
	return c.Reply("🗑️ 已丢弃 " + def.Name)
}
