package sect

import "cultivation-bot/internal/model"

var roleNames = map[model.SectRole]string{
	model.RoleLeader:   "宗主",
	model.RoleElder:    "长老",
	model.RoleDisciple: "弟子",
}

// RoleName returns the display name of a role.
func RoleName(r model.SectRole) string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "散修"
}

// rank orders roles; higher outranks lower.
func rank(r model.SectRole) int {
	switch r {
	case model.RoleLeader:
		return 3
	case model.RoleElder:
		return 2
	case model.RoleDisciple:
		return 1
	}
	return 0
}

// CanManage reports whether the role may approve applications and
// upgrade facilities.
func CanManage(r model.SectRole) bool {
	return rank(r) >= rank(model.RoleElder)
}

// CanKick reports whether actor may remove a member holding target.
// The leader removes anyone but itself; elders remove disciples.
func CanKick(actor, target model.SectRole) bool {
	if target == model.RoleLeader {
		return false
	}
	if actor == model.RoleLeader {
		return true
	}
	return actor == model.RoleElder && target == model.RoleDisciple
}

// CanAppoint reports whether the role may promote, demote, transfer
// leadership and disband.
func CanAppoint(r model.SectRole) bool {
	return r == model.RoleLeader
}
