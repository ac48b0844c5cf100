package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文（1回の購入）。
// 作成後に変わるのは Status だけ。
type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string      `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	UserID      int64       `gorm:"not null;index;uniqueIndex:idx_orders_user_idem,priority:1" json:"user_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_total"`
	GrandTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"grand_total"`

	// 二重送信防止キー（任意）。NULLは何件でも入る
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idem,priority:2" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
