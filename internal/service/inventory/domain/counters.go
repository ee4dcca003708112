// internal/service/inventory/domain/counters.go
package domain

// Counters 指向 Product 或 Variant 上的一对计数器。
// 所有修改只允许在持锁的临界区内发生。
type Counters struct {
	Stock    *int
	Reserved *int
}

// Available = stock - reserved
func (c Counters) Available() int {
	return *c.Stock - *c.Reserved
}

// Reserve 预占 qty 个单位
func (c Counters) Reserve(qty int) {
	*c.Reserved += qty
}

// Unreserve 撤销预占，最低为 0，重复释放不会变成负数
func (c Counters) Unreserve(qty int) {
	*c.Reserved -= qty
	if *c.Reserved < 0 {
		*c.Reserved = 0
	}
}

// Deduct 把已预占的数量永久扣减
func (c Counters) Deduct(qty int) {
	*c.Reserved -= qty
	*c.Stock -= qty
}

// Restock 退款时回补库存
func (c Counters) Restock(qty int) {
	*c.Stock += qty
}
