// Package realtime implements the change-feed side of the backend contract:
// one websocket connection multiplexing table-scoped subscriptions. Insert
// and update events are dispatched to per-subscription handlers; every
// subscription must be explicitly unsubscribed (or the feed closed) to avoid
// leaked listeners.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventType identifies the kind of row change an event carries.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one row change pushed by the backend.
type Event struct {
	SubscriptionID string          `json:"id"`
	Table          string          `json:"table"`
	Type           EventType       `json:"type"`
	New            json.RawMessage `json:"new"`
	Old            json.RawMessage `json:"old,omitempty"`
}

// Handler receives events for one subscription. Handlers run on the feed's
// read goroutine and must not block.
type Handler func(Event)

// frame is the client→server control message.
type frame struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	ID     string `json:"id"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"` // e.g. "conversation_id=eq.<id>"
}

// ErrFeedClosed is returned by Subscribe after Close.
var ErrFeedClosed = errors.New("realtime: feed closed")

// Feed owns the websocket connection and the live subscription set. The
// connection is dialed lazily on first Subscribe and redialed with
// exponential backoff after read failures; live subscriptions are replayed
// on every reconnect.
type Feed struct {
	wsURL  string
	apiKey string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]*Subscription
	closed bool
	done   chan struct{}
}

// Subscription is a scoped handle to one table+filter stream. Its lifetime
// is tied to the owning component; Unsubscribe is idempotent.
type Subscription struct {
	ID     string
	Table  string
	Filter string

	feed    *Feed
	handler Handler
	once    sync.Once
}

// New builds a feed for the backend at baseURL. The websocket endpoint is
// derived from the REST base URL.
func New(baseURL, apiKey string, log zerolog.Logger) *Feed {
	return &Feed{
		wsURL:  wsEndpoint(baseURL),
		apiKey: apiKey,
		dialer: websocket.DefaultDialer,
		log:    log.With().Str("component", "realtime").Logger(),
		subs:   make(map[string]*Subscription),
		done:   make(chan struct{}),
	}
}

func wsEndpoint(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime/v1/websocket"
}

// Subscribe registers a handler for changes on table rows matching filter
// (empty filter means the whole table). The first subscription dials the
// connection.
func (f *Feed) Subscribe(ctx context.Context, table, filter string, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, errors.New("realtime: nil handler")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}

	if f.conn == nil {
		if err := f.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		Table:   table,
		Filter:  filter,
		feed:    f,
		handler: h,
	}
	if err := f.conn.WriteJSON(frame{Action: "subscribe", ID: sub.ID, Table: table, Filter: filter}); err != nil {
		return nil, fmt.Errorf("realtime: subscribe %s: %w", table, err)
	}
	f.subs[sub.ID] = sub
	f.log.Debug().Str("table", table).Str("filter", filter).Str("sub", sub.ID).Msg("subscribed")
	return sub, nil
}

// Unsubscribe deregisters the handler and tells the backend to stop the
// stream. Safe to call on every exit path; later events for the ID are
// dropped.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		f := s.feed
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, s.ID)
		if f.conn != nil && !f.closed {
			// Best effort; a failed unsubscribe frame is corrected by the
			// local deregistration above.
			if err := f.conn.WriteJSON(frame{Action: "unsubscribe", ID: s.ID}); err != nil {
				f.log.Debug().Err(err).Str("sub", s.ID).Msg("unsubscribe frame failed")
			}
		}
	})
}

// Close tears down the connection and drops all subscriptions. Idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)
	f.subs = make(map[string]*Subscription)
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

// ------------------------- internals -------------------------

func (f *Feed) dialLocked(ctx context.Context) error {
	u, err := url.Parse(f.wsURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("apikey", f.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := f.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	f.conn = conn
	go f.readLoop(conn)
	return nil
}

// readLoop dispatches incoming events until the connection breaks, then
// hands off to the reconnect loop.
func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			select {
			case <-f.done:
				return
			default:
			}
			f.log.Debug().Err(err).Msg("read failed, reconnecting")
			f.reconnect(conn)
			return
		}
		f.dispatch(ev)
	}
}

func (f *Feed) dispatch(ev Event) {
	f.mu.Lock()
	sub := f.subs[ev.SubscriptionID]
	f.mu.Unlock()
	if sub == nil {
		// Late event for an unsubscribed stream.
		eventsDroppedTotal.Inc()
		return
	}
	eventsTotal.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	sub.handler(ev)
}

// reconnect redials with exponential backoff and replays subscribe frames
// for every live subscription. Gives up only when the feed is closed.
func (f *Feed) reconnect(old *websocket.Conn) {
	_ = old.Close()

	f.mu.Lock()
	if f.conn == old {
		f.conn = nil
	}
	f.mu.Unlock()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0 // retry until closed

	for {
		select {
		case <-f.done:
			return
		case <-time.After(exp.NextBackOff()):
		}

		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		err := f.dialLocked(context.Background())
		if err == nil {
			for _, sub := range f.subs {
				if werr := f.conn.WriteJSON(frame{Action: "subscribe", ID: sub.ID, Table: sub.Table, Filter: sub.Filter}); werr != nil {
					err = werr
					break
				}
			}
		}
		f.mu.Unlock()

		if err == nil {
			f.log.Debug().Msg("reconnected")
			return
		}
		f.log.Debug().Err(err).Msg("reconnect attempt failed")
		reconnectsTotal.Inc()
	}
}
