package usecase

import (
	"context"
	"errors"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	repo "github.com/SambhavSinghChouhan-CN/canvas/internal/repository"

	"github.com/rs/zerolog"
)

// ステータス更新。
// 先に自分の注文を引いてからステータス値を見る（他人の注文は値に関係なく NotFound）。
// 行ロックを取って読み直した状態で遷移を判定する。CANCELLED への遷移で出荷前なら在庫を戻す
func (u *OrderUsecase) UpdateOrderStatus(ctx context.Context, userID int64, orderID int64, status string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, ErrOrderNotFound
	}

	var (
		out  OrderOutput
		prev model.OrderStatus
		next model.OrderStatus
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUserForUpdate(ctx, orderID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return internalError(err)
		}
		prev = o.Status

		st, ok := model.ParseOrderStatus(status)
		if !ok {
			return ErrInvalidStatus
		}
		next = st

		if o.Status.IsTerminal() {
			return withDetail(ErrIllegalStatusTransition, "order is already %s", o.Status)
		}
		if !o.Status.CanTransitionTo(next) {
			return withDetail(ErrIllegalStatusTransition, "cannot change status from %s to %s", o.Status, next)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(err)
		}

		// 在庫戻し
		if next == model.OrderStatusCancelled && o.Status.HoldsReservedStock() {
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return internalError(err)
				}
			}
		}

		updated, err := r.Orders().UpdateStatusIf(ctx, o.ID, o.Status, next, u.clock.Now())
		if err != nil {
			return internalError(err)
		}
		if !updated {
			return withDetail(ErrIllegalStatusTransition, "order status changed concurrently")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   auditJSON(auditStatusSnapshot{Status: o.Status}),
			AfterJSON:    auditJSON(auditStatusSnapshot{Status: next}),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return internalError(err)
		}

		// 更新後を読み直して返す
		fresh, err := r.Orders().FindByIDForUser(ctx, o.ID, userID)
		if err != nil {
			return internalError(err)
		}
		out = toOrderOutput(fresh, items)
		return nil
	})

	log := zerolog.Ctx(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("order_id", orderID).Str("status", status).Msg("update order status failed")
		return OrderOutput{}, err
	}

	u.metrics.ObserveTransition(prev, next)
	log.Info().
		Int64("order_id", out.ID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("order status changed")

	u.publish(ctx, model.OrderEvent{
		Type:           model.OrderEventStatusChanged,
		OrderID:        out.ID,
		OrderNumber:    out.OrderNumber,
		UserID:         userID,
		Status:         next,
		PreviousStatus: prev,
		GrandTotal:     out.GrandTotal,
		OccurredAt:     u.clock.Now(),
	})
	return out, nil
}
