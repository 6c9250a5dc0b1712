package store

import "sync"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

const (
	TableProducts = "products"
	TableOrders   = "orders"
)

type ChangeEvent struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	RowID string    `json:"row_id"`
}

type ChangeHandler func(ChangeEvent)

// ChangeFeed delivers row-change notifications for a table to registered handlers.
type ChangeFeed interface {
	OnChange(table string, handler ChangeHandler) (unsubscribe func())
}

// Dispatcher is a ChangeFeed that fans events out to handlers synchronously.
// Backends embed it and call Publish after a write commits.
type Dispatcher struct {
	mu       sync.RWMutex
	next     int
	handlers map[string]map[int]ChangeHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]map[int]ChangeHandler)}
}

func (d *Dispatcher) OnChange(table string, handler ChangeHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers[table] == nil {
		d.handlers[table] = make(map[int]ChangeHandler)
	}
	id := d.next
	d.next++
	d.handlers[table][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers[table], id)
			d.mu.Unlock()
		})
	}
}

func (d *Dispatcher) Publish(ev ChangeEvent) {
	d.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(d.handlers[ev.Table]))
	for _, h := range d.handlers[ev.Table] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
