package model

import "strings"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 許可する遷移。ここに無いものは全部不正（同じステータスへの遷移も含む）
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// 文字列をステータスに変換する。大文字小文字と前後の空白は無視
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", false
	}
	return st, true
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := orderStatusTransitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, n := range orderStatusTransitions[s] {
		if n == target {
			return true
		}
	}
	return false
}

// キャンセル時に在庫を戻すかどうか（出荷前だけ）
func (s OrderStatus) HoldsReservedStock() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

func (s OrderStatus) String() string {
	return string(s)
}
