package repository

import (
	"context"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
)

// 商品カタログの参照だけを約束（価格・割引・在庫）。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
