// Package orderbook tracks a trader's open orders on one instrument between
// polling cycles and surfaces lifecycle transitions as callbacks.
package orderbook

import (
	"sync"

	"github.com/blockex/tradeapi-go/pkg/sigchan"
	"github.com/blockex/tradeapi-go/pkg/tradeapi"
)

// ActiveOrderBook diffs successive order snapshots. An order entering the
// book fires the placed callbacks; an order leaving it fires filled or
// canceled depending on its final status. C signals after every change so a
// select loop can re-render without polling the book itself.
type ActiveOrderBook struct {
	InstrumentID int64

	mu     sync.RWMutex
	orders map[int64]tradeapi.Order

	placedCallbacks   []func(tradeapi.Order)
	filledCallbacks   []func(tradeapi.Order)
	canceledCallbacks []func(tradeapi.Order)

	C *sigchan.Chan
}

func NewActiveOrderBook(instrumentID int64) *ActiveOrderBook {
	return &ActiveOrderBook{
		InstrumentID: instrumentID,
		orders:       make(map[int64]tradeapi.Order),
		C:            sigchan.New(1),
	}
}

// OnPlaced registers a callback for orders newly observed in the book.
func (b *ActiveOrderBook) OnPlaced(cb func(tradeapi.Order)) {
	b.placedCallbacks = append(b.placedCallbacks, cb)
}

// OnFilled registers a callback for orders that left the book executed.
func (b *ActiveOrderBook) OnFilled(cb func(tradeapi.Order)) {
	b.filledCallbacks = append(b.filledCallbacks, cb)
}

// OnCanceled registers a callback for orders that left the book cancelled,
// rejected or failed.
func (b *ActiveOrderBook) OnCanceled(cb func(tradeapi.Order)) {
	b.canceledCallbacks = append(b.canceledCallbacks, cb)
}

func terminal(s tradeapi.OrderStatus) bool {
	switch s {
	case tradeapi.StatusExecuted, tradeapi.StatusCancelled,
		tradeapi.StatusRejected, tradeapi.StatusFailed:
		return true
	}
	return false
}

// Update reconciles the book against a fresh snapshot of the trader's orders
// for this instrument. Callbacks run outside the lock.
func (b *ActiveOrderBook) Update(snapshot []tradeapi.Order) {
	var placed, filled, canceled []tradeapi.Order

	b.mu.Lock()
	seen := make(map[int64]bool, len(snapshot))
	for _, order := range snapshot {
		if order.InstrumentID != b.InstrumentID {
			continue
		}
		seen[order.ID] = true
		_, tracked := b.orders[order.ID]

		if terminal(order.Status) {
			if tracked {
				delete(b.orders, order.ID)
				if order.Status == tradeapi.StatusExecuted {
					filled = append(filled, order)
				} else {
					canceled = append(canceled, order)
				}
			}
			continue
		}

		b.orders[order.ID] = order
		if !tracked {
			placed = append(placed, order)
		}
	}
	// Orders that vanished from the snapshot are no longer open. Their final
	// status is unknown here, so they are dropped without a callback.
	for id := range b.orders {
		if !seen[id] {
			delete(b.orders, id)
		}
	}
	b.mu.Unlock()

	for _, o := range placed {
		for _, cb := range b.placedCallbacks {
			cb(o)
		}
	}
	for _, o := range filled {
		for _, cb := range b.filledCallbacks {
			cb(o)
		}
	}
	for _, o := range canceled {
		for _, cb := range b.canceledCallbacks {
			cb(o)
		}
	}

	if len(placed)+len(filled)+len(canceled) > 0 {
		b.C.Emit()
	}
}

// Orders returns a copy of the open orders.
func (b *ActiveOrderBook) Orders() []tradeapi.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]tradeapi.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// Exists reports whether orderID is currently open in the book.
func (b *ActiveOrderBook) Exists(orderID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.orders[orderID]
	return ok
}

// Len returns the number of open orders.
func (b *ActiveOrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
