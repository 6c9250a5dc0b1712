package postgres

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"storefront/store"
)

// OrdersChannel is the NOTIFY channel the orders trigger publishes on.
const OrdersChannel = "orders_changes"

// Listener turns NOTIFY payloads into change events for registered handlers.
type Listener struct {
	*store.Dispatcher

	listener *pq.Listener
	logger   logrus.FieldLogger
	done     chan struct{}
	wg       sync.WaitGroup
}

func (db *DB) Listen(channels ...string) (*Listener, error) {
	if len(channels) == 0 {
		channels = []string{OrdersChannel}
	}
	logger := db.logger.WithField("component", "listener")

	pl := pq.NewListener(db.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.WithError(err).Warn("Change listener connection lost")
		case pq.ListenerEventReconnected:
			logger.Info("Change listener reconnected")
		}
	})
	for _, ch := range channels {
		if err := pl.Listen(ch); err != nil {
			pl.Close()
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}

	l := &Listener{
		Dispatcher: store.NewDispatcher(),
		listener:   pl,
		logger:     logger,
		done:       make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *Listener) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Sent after a reconnect; notifications may have been missed.
				continue
			}
			l.dispatch(n.Extra)
		case <-ticker.C:
			go l.listener.Ping()
		}
	}
}

func (l *Listener) dispatch(payload string) {
	var ev store.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.WithError(err).WithField("payload", payload).Warn("Malformed change notification")
		return
	}
	l.Publish(ev)
}

func (l *Listener) Close() error {
	close(l.done)
	err := l.listener.Close()
	l.wg.Wait()
	return err
}
