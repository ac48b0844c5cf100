package repository

import "context"

type InventoryRepository interface {
	// 在庫が足りるときだけ減算（読み取り・判定・減算を1文で行う）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
