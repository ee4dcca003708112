package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
	"marketbot/internal/service/inventory/infrastructure"
)

// memLedger 是内存账本，Load/Save 都做深拷贝，行为与真实存储一致
type memLedger struct {
	mu      sync.Mutex
	ds      domain.Dataset
	saves   int
	saveErr error
}

func newMemLedger(ds domain.Dataset) *memLedger {
	return &memLedger{ds: ds.Clone()}
}

func (m *memLedger) Load(context.Context) (domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.NormalizeDataset(m.ds.Clone()), nil
}

func (m *memLedger) Save(_ context.Context, ds domain.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.ds = ds.Clone()
	return nil
}

func (m *memLedger) counters(t *testing.T, raw string) (stock, reserved int) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	sku, err := domain.ParseSKU(raw)
	require.NoError(t, err)
	c, lookup := m.ds.Resolve(sku)
	require.Equal(t, domain.LookupFound, lookup, raw)
	return *c.Stock, *c.Reserved
}

func (m *memLedger) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// memOrders 是内存订单表。vanishOnUpdate 模拟订单在写回前被删除。
type memOrders struct {
	mu             sync.Mutex
	orders         map[string]domain.Order
	vanishOnUpdate map[string]bool
	updates        int
}

func newMemOrders(ids ...string) *memOrders {
	m := &memOrders{orders: map[string]domain.Order{}, vanishOnUpdate: map[string]bool{}}
	for _, id := range ids {
		m.orders[id] = domain.Order{OrderID: id}
	}
	return m
}

func (m *memOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, port.ErrOrderNotFound
	}
	o.Items = append([]domain.Item(nil), o.Items...)
	return &o, nil
}

func (m *memOrders) UpdateInventory(_ context.Context, id string, f domain.InventoryFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vanishOnUpdate[id] {
		delete(m.orders, id)
	}
	if _, ok := m.orders[id]; !ok {
		return port.ErrOrderNotFound
	}
	m.updates++
	f.Items = append([]domain.Item(nil), f.Items...)
	m.orders[id] = domain.Order{OrderID: id, InventoryFields: f}
	return nil
}

func (m *memOrders) ListReserved(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.Reserved {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) get(t *testing.T, id string) domain.Order {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	require.True(t, ok, "order %s", id)
	return o
}

func (m *memOrders) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = o
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.InventoryEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *domain.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc    *Service
	ledger *memLedger
	orders *memOrders
	events *recordingPublisher
	locker *infrastructure.LocalLocker
}

func shirtDataset() domain.Dataset {
	return domain.Dataset{
		"seller-1": {
			{BaseSKU: "shirt", Stock: 10, Variations: []domain.Variant{
				{VariantID: "red", Stock: 3},
				{VariantID: "blue", Stock: 0},
			}},
			{BaseSKU: "A", Stock: 3},
			{BaseSKU: "B", Stock: 10},
		},
		"seller-2": {
			{BaseSKU: "mug", Stock: 5},
		},
	}
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	h := &harness{
		ledger: newMemLedger(shirtDataset()),
		orders: newMemOrders(ids...),
		events: &recordingPublisher{},
		locker: infrastructure.NewLocalLocker(),
	}
	h.svc = NewService(h.ledger, h.orders, h.locker,
		WithEventPublisher(h.events),
		WithLockOptions(port.AcquireOptions{Timeout: 100 * time.Millisecond, PollInterval: 5 * time.Millisecond}),
	)
	return h
}

var errStoreDown = errors.New("store down")
