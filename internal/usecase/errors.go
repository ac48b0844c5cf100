package usecase

import (
	"errors"
	"fmt"
)

// エラーの分類。handler はこれだけを見てステータスを決める
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// 同じ Code なら同じエラー扱い（errors.Is(err, ErrOrderNotFound) で判定できる）
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code string, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUnauthorized = newError(KindUnauthorized, "unauthorized", "unauthorized")

	ErrEmptyOrder            = newError(KindValidation, "empty_order", "order must contain at least one item")
	ErrInvalidQuantity       = newError(KindValidation, "invalid_quantity", "quantity must be at least 1")
	ErrInvalidProductID      = newError(KindValidation, "invalid_product_id", "invalid product_id")
	ErrInvalidOrderID        = newError(KindValidation, "invalid_order_id", "invalid id")
	ErrInvalidOrderNumber    = newError(KindValidation, "invalid_order_number", "invalid order number")
	ErrInvalidIdempotencyKey = newError(KindValidation, "invalid_idempotency_key", "invalid idempotency key")
	ErrInvalidStatus         = newError(KindValidation, "invalid_status", "invalid status")

	ErrProductNotFound = newError(KindNotFound, "product_not_found", "product not found")
	ErrOrderNotFound   = newError(KindNotFound, "order_not_found", "order not found")

	ErrInsufficientStock       = newError(KindConflict, "insufficient_stock", "insufficient stock")
	ErrIllegalStatusTransition = newError(KindConflict, "illegal_status_transition", "illegal status transition")
	ErrOrderNumberExhausted    = newError(KindConflict, "order_number_exhausted", "could not allocate order number")
	ErrDuplicateOrder          = newError(KindConflict, "duplicate_order", "duplicate order")
)

// DB等のインフラ失敗を包む（中身は外に出さない）
func internalError(err error) error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

// 詳細付きで返す（どの商品が足りないか等）。Is は Code で一致する
func withDetail(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// 分類済みのエラーを取り出す。分類されていなければ Internal 扱い
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}
