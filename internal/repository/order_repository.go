package repository

import (
	"context"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
)

type OrderRepository interface {
	// 他人の注文は ErrNotFound（存在しないのと区別しない）
	FindByIDForUser(ctx context.Context, orderID int64, userID int64) (model.Order, error)

	// 更新前の読み直し用。行ロックを取る
	FindByIDForUserForUpdate(ctx context.Context, orderID int64, userID int64) (model.Order, error)

	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)

	// 新しい順（created_at desc, id desc）。ページングなし
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)

	Create(ctx context.Context, order model.Order) (int64, error)

	// from のときだけ to に更新し updated_at を at にする。更新できなければ false
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
