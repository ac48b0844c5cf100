package usecase

import (
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderItemOutput struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	ImageURL     string          `json:"image_url"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	OrderNumber   string            `json:"order_number"`
	UserID        int64             `json:"user_id"`
	Status        string            `json:"status"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	DiscountTotal decimal.Decimal   `json:"discount_total"`
	GrandTotal    decimal.Decimal   `json:"grand_total"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Items         []OrderItemOutput `json:"items"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:    it.ProductID,
			Name:         it.ProductNameSnapshot,
			Slug:         it.ProductSlugSnapshot,
			ImageURL:     it.ProductImageSnapshot,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			UnitDiscount: it.UnitDiscount,
			LineTotal:    it.LineTotal,
		})
	}

	return OrderOutput{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		Subtotal:      o.Subtotal,
		DiscountTotal: o.DiscountTotal,
		GrandTotal:    o.GrandTotal,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Items:         outItems,
	}
}
