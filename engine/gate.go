package engine

import "context"

// Role 標示呼叫者持有的能力
type Role string

const (
	// RoleSeller 可建立拍賣
	RoleSeller Role = "seller"
	// RoleAdmin 可解碼出價與更新管理錢包
	RoleAdmin Role = "admin"
)

// IGate 定義了存取控制的操作介面
// 任何 RBAC 或 ACL 實作皆可滿足此契約
type IGate interface {
	HasRole(ctx context.Context, address string, role Role) bool
}

// StaticGate 是以設定檔為來源的靜態角色表
type StaticGate map[string]map[Role]struct{}

// NewStaticGate 由賣家與管理者地址清單建立靜態角色表
func NewStaticGate(sellers, admins []string) StaticGate {
	gate := make(StaticGate)
	grant := func(addr string, role Role) {
		if _, ok := gate[addr]; !ok {
			gate[addr] = make(map[Role]struct{})
		}
		gate[addr][role] = struct{}{}
	}
	for _, addr := range sellers {
		grant(addr, RoleSeller)
	}
	for _, addr := range admins {
		grant(addr, RoleAdmin)
	}
	return gate
}

// HasRole 檢查地址是否持有指定角色
func (g StaticGate) HasRole(_ context.Context, address string, role Role) bool {
	roles, ok := g[address]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}
