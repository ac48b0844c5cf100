package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	repo "github.com/SambhavSinghChouhan-CN/canvas/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 注文番号の重複チェックを何回までやり直すか
const maxOrderNumberAttempts = 5

const maxIdempotencyKeyLen = 255

type OrderUsecase struct {
	tx      repo.TransactionManager
	numbers OrderNumberGenerator
	clock   Clock
	events  EventPublisher
	metrics OrderMetrics
}

type OrderUsecaseOption func(*OrderUsecase)

func WithEventPublisher(p EventPublisher) OrderUsecaseOption {
	return func(u *OrderUsecase) { u.events = p }
}

func WithOrderMetrics(m OrderMetrics) OrderUsecaseOption {
	return func(u *OrderUsecase) { u.metrics = m }
}

func NewOrderUsecase(tx repo.TransactionManager, numbers OrderNumberGenerator, clock Clock, opts ...OrderUsecaseOption) *OrderUsecase {
	u := &OrderUsecase{
		tx:      tx,
		numbers: numbers,
		clock:   clock,
		events:  noopPublisher{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type PlaceOrderLine struct {
	ProductID int64
	Quantity  int64
}

type PlaceOrderInput struct {
	Items []PlaceOrderLine

	// 任意。同じキーの再送は最初の注文を返す
	IdempotencyKey string
}

// 注文確定。在庫の引当・注文・明細の保存は全部同じトランザクション
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	log := zerolog.Ctx(ctx)

	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if err := validatePlaceOrder(in); err != nil {
		u.metrics.ObservePlacement("invalid")
		return OrderOutput{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	var (
		out    OrderOutput
		placed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return internalError(err)
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return internalError(err)
				}
				out = toOrderOutput(existing, items)
				return nil
			}
		}

		now := u.clock.Now()
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		subtotal := decimal.Zero
		discountTotal := decimal.Zero
		grandTotal := decimal.Zero

		for _, line := range in.Items {
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return withDetail(ErrProductNotFound, "product %d not found", line.ProductID)
			}
			if err != nil {
				return internalError(err)
			}
			if line.Quantity > p.Stock {
				return withDetail(ErrInsufficientStock, "insufficient stock for product %d", line.ProductID)
			}

			//スナップショット
			qty := decimal.NewFromInt(line.Quantity)
			unitDiscount := decimal.Min(p.Discount, p.Price)
			lineTotal := model.LineTotal(line.Quantity, p.Price, p.Discount)

			orderItems = append(orderItems, model.OrderItem{
				ProductID:            p.ID,
				ProductNameSnapshot:  p.Name,
				ProductSlugSnapshot:  p.Slug,
				ProductImageSnapshot: p.ImageURL,
				Quantity:             line.Quantity,
				UnitPrice:            p.Price,
				UnitDiscount:         unitDiscount,
				LineTotal:            lineTotal,
				CreatedAt:            now,
			})

			subtotal = subtotal.Add(p.Price.Mul(qty))
			discountTotal = discountTotal.Add(unitDiscount.Mul(qty))
			grandTotal = grandTotal.Add(lineTotal)
		}

		//在庫減算は商品ID順（行ロックの取得順を揃える）。足りないなら false
		for _, line := range linesByProductID(in.Items) {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return internalError(err)
			}
			if !ok {
				return withDetail(ErrInsufficientStock, "insufficient stock for product %d", line.ProductID)
			}
		}

		orderNumber, err := u.allocateOrderNumber(ctx, r)
		if err != nil {
			return err
		}

		o := model.Order{
			OrderNumber:   orderNumber,
			UserID:        userID,
			Status:        model.OrderStatusPending,
			Subtotal:      subtotal,
			DiscountTotal: discountTotal,
			GrandTotal:    grandTotal,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if key != "" {
			o.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, o)
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicateOrder
		}
		if err != nil {
			return internalError(err)
		}
		o.ID = orderID

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return internalError(err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionPlaceOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			AfterJSON:    auditJSON(auditOrderSnapshot{OrderNumber: orderNumber, Status: o.Status, GrandTotal: grandTotal, Lines: len(orderItems)}),
			CreatedAt:    now,
		}); err != nil {
			return internalError(err)
		}

		out = toOrderOutput(o, orderItems)
		placed = true
		return nil
	})

	// 同じキーが同時に来て負けた側は、勝った側の注文を返す
	if errors.Is(err, ErrDuplicateOrder) && key != "" {
		if existing, ok := u.findByIdempotencyKey(ctx, userID, key); ok {
			u.metrics.ObservePlacement("replayed")
			return existing, nil
		}
	}
	if err != nil {
		u.metrics.ObservePlacement(placementResult(err))
		log.Warn().Err(err).Int64("user_id", userID).Msg("place order failed")
		return OrderOutput{}, err
	}

	if !placed {
		u.metrics.ObservePlacement("replayed")
		return out, nil
	}

	u.metrics.ObservePlacement("placed")
	log.Info().
		Int64("user_id", userID).
		Int64("order_id", out.ID).
		Str("order_number", out.OrderNumber).
		Str("grand_total", out.GrandTotal.StringFixed(2)).
		Msg("order placed")

	u.publish(ctx, model.OrderEvent{
		Type:        model.OrderEventPlaced,
		OrderID:     out.ID,
		OrderNumber: out.OrderNumber,
		UserID:      userID,
		Status:      model.OrderStatusPending,
		GrandTotal:  out.GrandTotal,
		OccurredAt:  out.CreatedAt,
	})
	return out, nil
}

func validatePlaceOrder(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, line := range in.Items {
		if line.ProductID <= 0 {
			return ErrInvalidProductID
		}
		if line.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	if len(strings.TrimSpace(in.IdempotencyKey)) > maxIdempotencyKeyLen {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

// ランダムな番号を作って既存と被らないか確認する。DBの一意制約が最後の砦
func (u *OrderUsecase) allocateOrderNumber(ctx context.Context, r repo.TxRepos) (string, error) {
	for i := 0; i < maxOrderNumberAttempts; i++ {
		n := u.numbers.Next()
		exists, err := r.Orders().ExistsByOrderNumber(ctx, n)
		if err != nil {
			return "", internalError(err)
		}
		if !exists {
			return n, nil
		}
	}
	return "", ErrOrderNumberExhausted
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, userID int64, key string) (OrderOutput, bool) {
	var out OrderOutput
	var found bool
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, ok, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil || !ok {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		found = true
		return nil
	})
	return out, err == nil && found
}

// 自分の注文一覧（新しい順、ページングなし）
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, ErrUnauthorized
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return internalError(err)
		}

		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
		if err != nil {
			return internalError(err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o, itemsByOrder[o.ID]))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// 注文詳細。他人の注文は「存在しない扱い」
func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, ErrOrderNotFound
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUser(ctx, orderID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return internalError(err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(err)
		}
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文番号から引く（追跡画面用）。他人の注文は「存在しない扱い」
func (u *OrderUsecase) GetMyOrderByNumber(ctx context.Context, userID int64, orderNumber string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" || len(orderNumber) > 40 {
		return OrderOutput{}, ErrInvalidOrderNumber
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByOrderNumber(ctx, orderNumber)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return internalError(err)
		}
		if o.UserID != userID {
			return ErrOrderNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internalError(err)
		}
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) publish(ctx context.Context, ev model.OrderEvent) {
	if err := u.events.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("event", string(ev.Type)).
			Int64("order_id", ev.OrderID).
			Msg("publish order event failed")
	}
}

func placementResult(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case AsError(err).Kind == KindInternal:
		return "error"
	default:
		return "rejected"
	}
}

type auditOrderSnapshot struct {
	OrderNumber string            `json:"order_number"`
	Status      model.OrderStatus `json:"status"`
	GrandTotal  decimal.Decimal   `json:"grand_total"`
	Lines       int               `json:"lines"`
}

type auditStatusSnapshot struct {
	Status model.OrderStatus `json:"status"`
}

func auditJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func linesByProductID(lines []PlaceOrderLine) []PlaceOrderLine {
	sorted := make([]PlaceOrderLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}
