package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	repo "github.com/SambhavSinghChouhan-CN/canvas/internal/repository"
)

// 1注文あたりの履歴の上限
const maxHistoryEntries = 200

type OrderHistoryEntryOutput struct {
	ID          int64           `json:"id"`
	Action      string          `json:"action"`
	ActorUserID int64           `json:"actor_user_id"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// 注文の履歴（作成・ステータス変更）。新しい順。他人の注文は「存在しない扱い」
func (u *OrderUsecase) GetMyOrderHistory(ctx context.Context, userID int64, orderID int64) ([]OrderHistoryEntryOutput, error) {
	if userID <= 0 {
		return []OrderHistoryEntryOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return []OrderHistoryEntryOutput{}, ErrOrderNotFound
	}

	var outs []OrderHistoryEntryOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUser(ctx, orderID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return internalError(err)
		}

		resourceType := model.AuditResourceOrder
		logs, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{
			ResourceType: &resourceType,
			ResourceID:   &o.ID,
			Limit:        maxHistoryEntries,
		})
		if err != nil {
			return internalError(err)
		}

		outs = make([]OrderHistoryEntryOutput, 0, len(logs))
		for _, l := range logs {
			outs = append(outs, OrderHistoryEntryOutput{
				ID:          l.ID,
				Action:      string(l.Action),
				ActorUserID: l.ActorUserID,
				Before:      rawJSON(l.BeforeJSON),
				After:       rawJSON(l.AfterJSON),
				CreatedAt:   l.CreatedAt,
			})
		}
		return nil
	})

	if err != nil {
		return []OrderHistoryEntryOutput{}, err
	}
	return outs, nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
