package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// heartbeatInterval keeps the realtime channel alive.
var heartbeatInterval = 25 * time.Second

// phxMessage is one frame of the realtime channel protocol.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type changePayload struct {
	Data struct {
		Type   string          `json:"type"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// NotificationFeed delivers notifications inserted for one recipient while the
// channel is open. Nothing inserted while it is closed is replayed.
type NotificationFeed struct {
	conn    *websocket.Conn
	topic   string
	userID  uuid.UUID
	events  chan domain.Notification
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	writeMu sync.Mutex
	ref     atomic.Int64

	errMu sync.Mutex
	err   error
}

// SubscribeNotifications opens the realtime channel for notifications
// inserted with user_id = userID.
func (c *Client) SubscribeNotifications(ctx context.Context, userID uuid.UUID) (*NotificationFeed, error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, fmt.Errorf("client.SubscribeNotifications: %w", err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("client.SubscribeNotifications: dial: %w", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	f := &NotificationFeed{
		conn:   conn,
		topic:  "realtime:notifications:" + userID.String(),
		userID: userID,
		events: make(chan domain.Notification, 16),
		cancel: cancel,
	}

	var join joinPayload
	join.Config.PostgresChanges = []changeFilter{{
		Event:  "INSERT",
		Schema: "public",
		Table:  tableNotifications,
		Filter: "user_id=eq." + userID.String(),
	}}
	join.AccessToken = c.token
	if err := f.write(f.topic, "phx_join", join); err != nil {
		cancel()
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("client.SubscribeNotifications: join: %w", err)
	}

	f.wg.Add(2)
	go f.readLoop(feedCtx)
	go f.heartbeatLoop(feedCtx)
	return f, nil
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + realtimePrefix + "websocket"
	q := url.Values{}
	q.Set("apikey", c.anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// C returns the channel of arriving notifications. It is closed when the feed ends.
func (f *NotificationFeed) C() <-chan domain.Notification {
	return f.events
}

// Err returns the error that ended the feed, if any.
func (f *NotificationFeed) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// Close stops the feed and waits for its goroutines to exit.
func (f *NotificationFeed) Close() error {
	if f.cancel == nil {
		return nil
	}
	f.cancel()
	f.wg.Wait()
	return nil
}

func (f *NotificationFeed) setErr(err error) {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *NotificationFeed) write(topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := phxMessage{Topic: topic, Event: event, Payload: data, Ref: strconv.FormatInt(f.ref.Add(1), 10)}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
	return f.conn.WriteJSON(msg)
}

func (f *NotificationFeed) readLoop(ctx context.Context) {
	defer f.wg.Done()
	defer close(f.events)
	defer f.cancel()

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				f.setErr(fmt.Errorf("realtime read: %w", err))
			}
			return
		}
		var msg phxMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Topic != f.topic {
			continue
		}
		switch msg.Event {
		case "phx_reply":
			var reply replyPayload
			if json.Unmarshal(msg.Payload, &reply) == nil && reply.Status == "error" {
				f.setErr(fmt.Errorf("realtime join rejected: %s", string(reply.Response)))
				return
			}
		case "phx_error", "phx_close":
			f.setErr(errors.New("realtime channel closed by server"))
			return
		case "postgres_changes":
			n, ok := f.decodeInsert(msg.Payload)
			if !ok {
				continue
			}
			select {
			case f.events <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *NotificationFeed) decodeInsert(payload json.RawMessage) (domain.Notification, bool) {
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil || change.Data.Type != "INSERT" {
		return domain.Notification{}, false
	}
	var n domain.Notification
	if err := json.Unmarshal(change.Data.Record, &n); err != nil {
		return domain.Notification{}, false
	}
	if n.UserID != f.userID {
		return domain.Notification{}, false
	}
	return n, true
}

func (f *NotificationFeed) heartbeatLoop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.writeMu.Lock()
			f.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // best-effort close frame
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			f.writeMu.Unlock()
			f.conn.Close() //nolint:errcheck
			return
		case <-ticker.C:
			if err := f.write("phoenix", "heartbeat", struct{}{}); err != nil {
				f.setErr(fmt.Errorf("realtime heartbeat: %w", err))
				f.cancel()
			}
		}
	}
}
