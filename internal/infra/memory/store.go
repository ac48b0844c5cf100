// Package memory は全リポジトリをプロセス内で持つ実装。
// トランザクションは1本のロックで直列化し、失敗時は取り消しログで元に戻す。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	repo "github.com/SambhavSinghChouhan-CN/canvas/internal/repository"
)

type Store struct {
	mu sync.Mutex

	products map[int64]model.Product
	orders   map[int64]model.Order
	items    map[int64][]model.OrderItem
	audit    []model.AuditLog

	// order_number / (user_id, idempotency_key) の一意制約
	orderNumbers map[string]int64
	idemKeys     map[idemKey]int64

	nextProductID int64
	nextOrderID   int64
	nextItemID    int64
	nextAuditID   int64
}

type idemKey struct {
	userID int64
	key    string
}

func NewStore() *Store {
	return &Store{
		products:     map[int64]model.Product{},
		orders:       map[int64]model.Order{},
		items:        map[int64][]model.OrderItem{},
		orderNumbers: map[string]int64{},
		idemKeys:     map[idemKey]int64{},
	}
}

// AddProduct は商品を登録してIDを返す（開発用の初期データ・テスト用）。
func (s *Store) AddProduct(p model.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	p.ID = s.nextProductID
	s.products[p.ID] = p
	return p.ID
}

// Product は現在の商品を返す。
func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

// WithinTx は fn をロックの中で実行し、エラーなら変更を全部取り消す。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{s: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) onRollback(f func()) { t.undo = append(t.undo, f) }

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) Orders() repo.OrderRepository         { return orderRepo{t} }
func (t *tx) OrderItems() repo.OrderItemRepository { return orderItemRepo{t} }
func (t *tx) Inventory() repo.InventoryRepository  { return inventoryRepo{t} }
func (t *tx) Products() repo.ProductRepository     { return productRepo{t} }
func (t *tx) AuditLogs() repo.AuditLogRepository   { return auditLogRepo{t} }

type productRepo struct{ t *tx }

func (r productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.t.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

type inventoryRepo struct{ t *tx }

func (r inventoryRepo) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	s := r.t.s
	p, ok := s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	before := p
	p.Stock -= qty
	s.products[productID] = p
	r.t.onRollback(func() { s.products[productID] = before })
	return true, nil
}

func (r inventoryRepo) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	s := r.t.s
	p, ok := s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	before := p
	p.Stock += qty
	s.products[productID] = p
	r.t.onRollback(func() { s.products[productID] = before })
	return nil
}

type orderRepo struct{ t *tx }

func (r orderRepo) FindByIDForUser(_ context.Context, orderID int64, userID int64) (model.Order, error) {
	o, ok := r.t.s.orders[orderID]
	if !ok || o.UserID != userID {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// ストア全体がロック済みなので通常の参照と同じ
func (r orderRepo) FindByIDForUserForUpdate(ctx context.Context, orderID int64, userID int64) (model.Order, error) {
	return r.FindByIDForUser(ctx, orderID, userID)
}

func (r orderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (model.Order, error) {
	id, ok := r.t.s.orderNumbers[orderNumber]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.t.s.orders[id], nil
}

func (r orderRepo) ExistsByOrderNumber(_ context.Context, orderNumber string) (bool, error) {
	_, ok := r.t.s.orderNumbers[orderNumber]
	return ok, nil
}

func (r orderRepo) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range r.t.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r orderRepo) Create(_ context.Context, o model.Order) (int64, error) {
	s := r.t.s
	if _, dup := s.orderNumbers[o.OrderNumber]; dup {
		return 0, repo.ErrDuplicate
	}
	var ik idemKey
	if o.IdempotencyKey != nil {
		ik = idemKey{userID: o.UserID, key: *o.IdempotencyKey}
		if _, dup := s.idemKeys[ik]; dup {
			return 0, repo.ErrDuplicate
		}
	}

	s.nextOrderID++
	o.ID = s.nextOrderID
	s.orders[o.ID] = o
	s.orderNumbers[o.OrderNumber] = o.ID
	if o.IdempotencyKey != nil {
		s.idemKeys[ik] = o.ID
	}

	r.t.onRollback(func() {
		delete(s.orders, o.ID)
		delete(s.orderNumbers, o.OrderNumber)
		if o.IdempotencyKey != nil {
			delete(s.idemKeys, ik)
		}
	})
	return o.ID, nil
}

func (r orderRepo) UpdateStatusIf(_ context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error) {
	s := r.t.s
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	before := o
	o.Status = to
	o.UpdatedAt = at
	s.orders[orderID] = o
	r.t.onRollback(func() { s.orders[orderID] = before })
	return true, nil
}

func (r orderRepo) FindByIdempotencyKey(_ context.Context, userID int64, key string) (model.Order, bool, error) {
	id, ok := r.t.s.idemKeys[idemKey{userID: userID, key: key}]
	if !ok {
		return model.Order{}, false, nil
	}
	return r.t.s.orders[id], true, nil
}

type orderItemRepo struct{ t *tx }

func (r orderItemRepo) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	s := r.t.s
	before, had := s.items[orderID]

	stored := make([]model.OrderItem, 0, len(before)+len(items))
	stored = append(stored, before...)
	for i := range items {
		s.nextItemID++
		items[i].ID = s.nextItemID
		items[i].OrderID = orderID
		stored = append(stored, items[i])
	}
	s.items[orderID] = stored

	r.t.onRollback(func() {
		if had {
			s.items[orderID] = before
		} else {
			delete(s.items, orderID)
		}
	})
	return nil
}

func (r orderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	src := r.t.s.items[orderID]
	out := make([]model.OrderItem, len(src))
	copy(out, src)
	return out, nil
}

func (r orderItemRepo) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		items, _ := r.ListByOrderID(ctx, id)
		out[id] = items
	}
	return out, nil
}

type auditLogRepo struct{ t *tx }

func (r auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	s := r.t.s
	s.nextAuditID++
	log.ID = s.nextAuditID
	s.audit = append(s.audit, log)
	n := len(s.audit) - 1
	r.t.onRollback(func() { s.audit = s.audit[:n] })
	return nil
}

func (r auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []model.AuditLog{}
	for i := len(r.t.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		l := r.t.s.audit[i]
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
