package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
	maxAttempts    = 3
)

// ErrQueueFull is returned by Publish when the delivery queue has no room
var ErrQueueFull = errors.New("events: publish queue full")

// Client publishes ledger events to a durable topic exchange. Publish only
// queues the event; a single worker delivers it so callers never wait on
// the broker.
type Client struct {
	url          string
	exchangeName string
	keyPrefix    string
	logger       *slog.Logger

	queue chan LedgerEvent
	done  chan struct{}

	// swapped in tests
	dial    func() error
	send    func(ctx context.Context, e LedgerEvent, body []byte) error
	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	closed  bool
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// ClientOption configures a Client
type ClientOption func(*Client)

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient dials the broker, declares the exchange and starts the
// delivery worker
func NewClient(url, exchangeName, keyPrefix string, opts ...ClientOption) (*Client, error) {
	c := newClient(url, exchangeName, keyPrefix, opts...)
	if err := c.dial(); err != nil {
		return nil, err
	}
	go c.run()
	return c, nil
}

func newClient(url, exchangeName, keyPrefix string, opts ...ClientOption) *Client {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		keyPrefix:    keyPrefix,
		logger:       slog.Default(),
		queue:        make(chan LedgerEvent, queueSize),
		done:         make(chan struct{}),
		backoff:      exponentialBackoff,
	}
	c.dial = c.connect
	c.send = c.publish
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	return nil
}

// Publish queues e for delivery and returns at once. It fails only when the
// client is closed or the queue is full.
func (c *Client) Publish(ctx context.Context, e LedgerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp091.ErrClosed
	}

	select {
	case c.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Client) run() {
	defer close(c.done)
	for e := range c.queue {
		c.deliver(e)
	}
}

// deliver sends e as a persistent JSON message. A dropped connection is
// redialed with backoff before the event is given up.
func (c *Client) deliver(e LedgerEvent) {
	body, err := e.ToJSON()
	if err != nil {
		c.logger.Error("Failed to marshal ledger event", "event_id", e.ID, "error", err)
		return
	}

	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = c.send(ctx, e, body)
		cancel()
		if err == nil {
			break
		}
		if !isConnectionError(err) || attempt+1 >= maxAttempts {
			c.logger.Error("Failed to publish ledger event",
				"event_id", e.ID,
				"type", e.Type,
				"attempts", attempt+1,
				"error", err)
			return
		}

		c.logger.Warn("AMQP connection lost, reconnecting",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(c.backoff(attempt))
		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
		if err := c.dial(); err != nil {
			c.logger.Warn("AMQP reconnect failed", "error", err)
		}
	}

	c.logger.Debug("Published ledger event",
		"event_id", e.ID,
		"type", e.Type,
		"user_id", e.UserID,
		"exchange", c.exchangeName)
}

func (c *Client) publish(ctx context.Context, e LedgerEvent, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return amqp091.ErrClosed
	}
	return channel.PublishWithContext(
		ctx,
		c.exchangeName,            // exchange
		e.RoutingKey(c.keyPrefix), // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.ID.String(),
			Type:         string(e.Type),
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close stops accepting events, waits for the queued ones to be delivered
// and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// exponentialBackoff doubles from one second and caps at thirty
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
