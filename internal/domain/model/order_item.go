package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。
// 価格・割引・表示用の商品情報は注文時点のスナップショット（商品とは連動しない）。
type OrderItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`

	ProductNameSnapshot  string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductSlugSnapshot  string `gorm:"type:varchar(255);not null;default:''" json:"product_slug_snapshot"`
	ProductImageSnapshot string `gorm:"type:text;not null;default:''" json:"product_image_snapshot"`

	Quantity     int64           `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	UnitDiscount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_discount"`
	LineTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// 1個あたりの支払額。割引が価格を超えても0未満にはしない
func NetUnitPrice(price, discount decimal.Decimal) decimal.Decimal {
	net := price.Sub(discount)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// quantity * (unitPrice - unitDiscount)
func LineTotal(quantity int64, price, discount decimal.Decimal) decimal.Decimal {
	return NetUnitPrice(price, discount).Mul(decimal.NewFromInt(quantity))
}
