// Package feed implements the streaming quote feed client. Quotes are
// keyed by exchange:symbol and delivered last-value-wins; the transport
// gives no ordering guarantee.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gopinathshiva/spikewatch/internal/models"
)

const (
	pingInterval   = 30 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// Handler receives one quote update per feed message.
type Handler func(key string, quote models.Quote)

// Stream is the subscription surface the monitoring session uses.
type Stream interface {
	Subscribe(keys ...string) error
	Unsubscribe(keys ...string) error
}

// Client is a websocket quote feed client with automatic reconnect.
// Subscriptions are replayed after every reconnect.
type Client struct {
	url     string
	logger  *log.Logger
	handler Handler

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]struct{}
}

// Ensure Client implements Stream at compile time.
var _ Stream = (*Client)(nil)

// NewClient creates a feed client. The handler may be set later with
// SetHandler but must be set before Run.
func NewClient(url string, logger *log.Logger) *Client {
	return &Client{
		url:    url,
		logger: logger,
		subs:   make(map[string]struct{}),
	}
}

// SetHandler installs the quote handler.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

type controlMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Keys   []string `json:"keys"`
}

type quoteMessage struct {
	Key            string  `json:"key"`
	LTP            float64 `json:"ltp"`
	LastUpdateTime int64   `json:"lastUpdateTime"` // unix milliseconds, 0 if absent
}

// Subscribe registers keys and, when connected, sends the subscription.
func (c *Client) Subscribe(keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		c.subs[k] = struct{}{}
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil // replayed on connect
	}
	return c.writeControl(conn, controlMessage{Action: "subscribe", Keys: keys})
}

// Unsubscribe removes keys and, when connected, sends the unsubscription.
func (c *Client) Unsubscribe(keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.subs, k)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.writeControl(conn, controlMessage{Action: "unsubscribe", Keys: keys})
}

func (c *Client) writeControl(conn *websocket.Conn, msg controlMessage) error {
	if len(msg.Keys) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// Run connects and pumps quotes to the handler until ctx is cancelled.
// Lost connections are re-dialed with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Printf("feed dial error: %v, retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		c.mu.Lock()
		c.conn = conn
		pending := make([]string, 0, len(c.subs))
		for k := range c.subs {
			pending = append(pending, k)
		}
		c.mu.Unlock()

		c.logger.Printf("feed connected to %s, resubscribing %d keys", c.url, len(pending))
		if err := c.writeControl(conn, controlMessage{Action: "subscribe", Keys: pending}); err != nil {
			c.logger.Printf("feed resubscribe error: %v", err)
		}

		err = c.pump(ctx, conn)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Printf("feed connection lost: %v, reconnecting", err)
	}
}

// pump reads messages until the connection fails or ctx is cancelled.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			c.dispatch(message)
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return ctx.Err()
		case err := <-readErr:
			if _, ok := err.(*net.OpError); ok {
				return err
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Printf("feed unexpected close: %v", err)
			}
			return err
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) dispatch(message []byte) {
	var msg quoteMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Printf("feed: dropping unparseable message: %v", err)
		return
	}
	if msg.Key == "" {
		return
	}

	updated := time.Now()
	if msg.LastUpdateTime > 0 {
		updated = time.UnixMilli(msg.LastUpdateTime)
	}

	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(msg.Key, models.Quote{LTP: msg.LTP, LastUpdateTime: updated})
	}
}
