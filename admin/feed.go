package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/models"
	"storefront/store"
)

const (
	NotificationTitle = "New Order Received!"
	NotificationIcon  = "/icons/icon-192x192.png"
	NotificationSound = "/notification.mp3"

	refetchTimeout = 10 * time.Second
)

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Sound string `json:"sound"`
}

// FeedMessage is what dashboard clients receive for every change to orders.
type FeedMessage struct {
	Event        store.EventType `json:"event,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
	Orders       []models.Order  `json:"orders"`
	Error        string          `json:"error,omitempty"`
}

// Broadcaster delivers feed messages to dashboards.
type Broadcaster interface {
	Broadcast(msg interface{})
}

// Feed watches the orders table and pushes a fresh order list to dashboards
// on every change, with a notification for new orders.
type Feed struct {
	changes store.ChangeFeed
	orders  store.OrderRepository
	out     Broadcaster
	logger  logrus.FieldLogger
}

func NewFeed(changes store.ChangeFeed, orders store.OrderRepository, out Broadcaster, logger logrus.FieldLogger) *Feed {
	return &Feed{
		changes: changes,
		orders:  orders,
		out:     out,
		logger:  logger.WithField("component", "order-feed"),
	}
}

// Start subscribes to order changes. The returned function unsubscribes.
func (f *Feed) Start() func() {
	return f.changes.OnChange(store.TableOrders, f.handle)
}

// Snapshot is the message a newly connected dashboard starts from.
func (f *Feed) Snapshot(ctx context.Context) FeedMessage {
	orders, err := f.orders.GetAll(ctx)
	if err != nil {
		f.logger.WithError(err).Error("Error fetching orders")
		return FeedMessage{Orders: []models.Order{}, Error: MsgOrdersFetchFailed}
	}
	return FeedMessage{Orders: orders}
}

func (f *Feed) handle(ev store.ChangeEvent) {
	f.logger.WithFields(logrus.Fields{"event": ev.Type, "order_id": ev.RowID}).Debug("Order update received")

	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()

	msg := f.Snapshot(ctx)
	msg.Event = ev.Type
	msg.OrderID = ev.RowID
	if ev.Type == store.EventInsert {
		msg.Notification = NewOrderNotification(ev.RowID)
	}
	f.out.Broadcast(msg)
}

func NewOrderNotification(orderID string) *Notification {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return &Notification{
		Title: NotificationTitle,
		Body:  fmt.Sprintf("Order #%s has been placed.", short),
		Icon:  NotificationIcon,
		Sound: NotificationSound,
	}
}
