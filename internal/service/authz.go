package service

import (
	"agrimarket/internal/model"
)

// Actor 发起操作的身份，由网关传入的用户 ID 在用户目录中解析得到
type Actor struct {
	ID   int64
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// SystemActor 后台任务（如支付超时）使用的身份
var SystemActor = Actor{ID: 0, Role: model.RoleAdmin}

type Action string

const (
	ActionPlaceOrder       Action = "order.place"
	ActionTransitionOrder  Action = "order.transition"
	ActionViewOrder        Action = "order.view"
	ActionListBuyerOrders  Action = "order.list_buyer"
	ActionListSellerOrders Action = "order.list_seller"
	ActionLedgerRead       Action = "ledger.read"
	ActionLedgerWrite      Action = "ledger.write"
	ActionLedgerAdjust     Action = "ledger.adjust"
)

// Resource 授权判断需要的资源归属信息
type Resource struct {
	BuyerID  int64
	SellerID int64
	UserID   int64
}

// Authorizer 能力检查，注入到各个服务里，业务逻辑不直接写角色判断
type Authorizer func(actor Actor, action Action, res Resource) bool

// DefaultAuthorizer 管理员可以做任何事；其他人只能操作自己是当事方的资源
func DefaultAuthorizer(actor Actor, action Action, res Resource) bool {
	if actor.IsAdmin() {
		return true
	}
	switch action {
	case ActionPlaceOrder, ActionListBuyerOrders:
		return actor.ID == res.BuyerID
	case ActionTransitionOrder, ActionListSellerOrders:
		return actor.ID == res.SellerID
	case ActionViewOrder:
		return actor.ID == res.BuyerID || actor.ID == res.SellerID
	case ActionLedgerRead, ActionLedgerWrite:
		return actor.ID == res.UserID
	}
	return false
}
