// internal/service/inventory/domain/result.go
package domain

import (
	"errors"
	"fmt"
)

// Kind 是库存操作失败的分类
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidSKU         Kind = "invalid_sku"
	KindInvalidRequest     Kind = "invalid_request"
	KindNotFound           Kind = "not_found"
	KindOutOfStock         Kind = "out_of_stock"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindReservationMissing Kind = "reservation_missing"
	KindOrderMissing       Kind = "order_missing"
	KindLockTimeout        Kind = "lock_timeout"
)

var (
	ErrInvalidSKU         = errors.New("invalid sku")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("product or variant not found")
	ErrOutOfStock         = errors.New("out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrReservationMissing = errors.New("reservation missing")
	ErrOrderMissing       = errors.New("order missing")
	ErrLockTimeout        = errors.New("lock acquisition timed out")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidSKU:
		return ErrInvalidSKU
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindNotFound:
		return ErrNotFound
	case KindOutOfStock:
		return ErrOutOfStock
	case KindInsufficientStock:
		return ErrInsufficientStock
	case KindReservationMissing:
		return ErrReservationMissing
	case KindOrderMissing:
		return ErrOrderMissing
	case KindLockTimeout:
		return ErrLockTimeout
	}
	return nil
}

// Error 是带分类的业务错误，可以用 errors.Is 匹配上面的哨兵错误
type Error struct {
	Kind   Kind
	SKU    string
	Reason string
}

func (e *Error) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("%s: %s (sku=%s)", e.Kind, e.Reason, e.SKU)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind.sentinel() }

// ReleaseOutcome 是释放操作对单个条目的处理结果
type ReleaseOutcome string

const (
	OutcomeReleased ReleaseOutcome = "released"
	OutcomeSkipped  ReleaseOutcome = "skipped"
	OutcomeFailed   ReleaseOutcome = "failed"
)

// ItemOutcome 记录释放时每个条目的结果
type ItemOutcome struct {
	SKU     string         `json:"sku"`
	Qty     int            `json:"qty"`
	Outcome ReleaseOutcome `json:"outcome"`
	Detail  string         `json:"detail,omitempty"`
}

// Result 是所有库存操作的返回值。
// 预期内的业务结果 (缺货、订单不存在、锁超时...) 都放在这里，error 只用于基础设施故障。
type Result struct {
	OK        bool           `json:"ok"`
	Kind      Kind           `json:"kind,omitempty"`
	Reason    string         `json:"reason"`
	SKU       string         `json:"sku,omitempty"`
	Available *int           `json:"available,omitempty"`
	Outcome   ReleaseOutcome `json:"outcome,omitempty"`
	Items     []ItemOutcome  `json:"items,omitempty"`
}

func Succeed(reason string) Result {
	return Result{OK: true, Reason: reason}
}

func Reject(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}

// RejectWith 把 *Error 转为失败结果；其他错误按非法请求处理
func RejectWith(err error) Result {
	var de *Error
	if errors.As(err, &de) {
		return Result{Kind: de.Kind, Reason: de.Reason, SKU: de.SKU}
	}
	return Result{Kind: KindInvalidRequest, Reason: err.Error()}
}

func (r Result) WithAvailable(n int) Result {
	r.Available = &n
	return r
}

func (r Result) WithSKU(sku string) Result {
	r.SKU = sku
	return r
}

// Err 失败时返回 *Error，成功时返回 nil
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, SKU: r.SKU, Reason: r.Reason}
}
