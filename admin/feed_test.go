package admin

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/store"
	"storefront/store/memory"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []FeedMessage
}

func (r *recordingBroadcaster) Broadcast(msg interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg.(FeedMessage))
}

func TestFeedRefetchesOnEveryEvent(t *testing.T) {
	ctx := context.Background()
	backend := memory.New().Backend()
	out := &recordingBroadcaster{}
	logger, _ := logtest.NewNullLogger()

	feed := NewFeed(backend.Feed, backend.Orders, out, logger)
	stop := feed.Start()

	order := &models.Order{UserID: "user-1", Total: decimal.NewFromInt(15000)}
	require.NoError(t, backend.Orders.Create(ctx, order))
	require.NoError(t, backend.Orders.UpdateStatus(ctx, order.ID, models.OrderCompleted))

	require.Len(t, out.msgs, 2)

	inserted := out.msgs[0]
	assert.Equal(t, store.EventInsert, inserted.Event)
	require.NotNil(t, inserted.Notification)
	assert.Equal(t, "New Order Received!", inserted.Notification.Title)
	assert.Equal(t, "Order #"+order.ID.String()[:8]+" has been placed.", inserted.Notification.Body)
	assert.Equal(t, "/icons/icon-192x192.png", inserted.Notification.Icon)
	assert.Equal(t, "/notification.mp3", inserted.Notification.Sound)
	require.Len(t, inserted.Orders, 1)

	updated := out.msgs[1]
	assert.Equal(t, store.EventUpdate, updated.Event)
	assert.Nil(t, updated.Notification)
	require.Len(t, updated.Orders, 1)
	assert.Equal(t, models.OrderCompleted, updated.Orders[0].Status)

	stop()
	require.NoError(t, backend.Orders.Create(ctx, &models.Order{UserID: "user-2"}))
	assert.Len(t, out.msgs, 2)
}

func TestNewOrderNotificationShortID(t *testing.T) {
	assert.Equal(t, "Order #abc has been placed.", NewOrderNotification("abc").Body)
}
