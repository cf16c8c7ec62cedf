// Package realtime shares one pub/sub connection between any number of
// in-process listeners.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/shared/backoff"
	"notify-service/internal/shared/logging"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("realtime: feed closed")

// Conn is an open subscription to the change channel. Messages closes when
// the connection is closed.
type Conn interface {
	Messages() <-chan []byte
	Close() error
}

// Connector opens a new Conn. It must be safe to call again after a failure.
type Connector func(ctx context.Context) (Conn, error)

type Listener func(msg []byte)

// Feed is a reference-counted subscription: the first Subscribe opens the
// connection, the last dispose closes it.
type Feed struct {
	connect     Connector
	maxAttempts int
	baseDelay   time.Duration

	mu        sync.Mutex
	conn      Conn
	gen       uint64
	nextID    uint64
	listeners map[uint64]Listener
	closed    bool
}

type Option func(*Feed)

// WithRetry sets the connect backoff.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(f *Feed) {
		f.maxAttempts = maxAttempts
		f.baseDelay = baseDelay
	}
}

func NewFeed(connect Connector, opts ...Option) *Feed {
	f := &Feed{
		connect:     connect,
		maxAttempts: 5,
		baseDelay:   500 * time.Millisecond,
		listeners:   map[uint64]Listener{},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Subscribe registers fn and returns its disposer. Calling the disposer more
// than once is a no-op. When the connection cannot be opened within the
// retry budget the error wraps backoff.ErrExhausted and fn is not registered.
func (f *Feed) Subscribe(ctx context.Context, fn Listener) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.conn == nil {
		conn, err := backoff.WithBackoff(ctx, f.maxAttempts, f.baseDelay, func(ctx context.Context) (Conn, error) {
			return f.connect(ctx)
		})
		if err != nil {
			lg := logging.Component("realtime")
			lg.Error().Err(err).Msg("feed connect failed")
			return nil, err
		}
		f.conn = conn
		f.gen++
		go f.pump(conn, f.gen)
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn

	var once sync.Once
	return func() { once.Do(func() { f.release(id) }) }, nil
}

func (f *Feed) release(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
	if len(f.listeners) == 0 {
		f.disconnect()
	}
}

// Refs reports the number of live listeners.
func (f *Feed) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Close drops every listener and the connection.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.listeners)
	f.disconnect()
}

// disconnect requires f.mu.
func (f *Feed) disconnect() {
	if f.conn == nil {
		return
	}
	if err := f.conn.Close(); err != nil {
		lg := logging.Component("realtime")
		lg.Warn().Err(err).Msg("feed close failed")
	}
	f.conn = nil
}

func (f *Feed) pump(conn Conn, gen uint64) {
	for msg := range conn.Messages() {
		f.mu.Lock()
		if f.gen != gen || f.conn == nil {
			f.mu.Unlock()
			continue
		}
		ls := make([]Listener, 0, len(f.listeners))
		for _, l := range f.listeners {
			ls = append(ls, l)
		}
		f.mu.Unlock()
		for _, l := range ls {
			l(msg)
		}
	}
}

type redisConn struct {
	ps  *redis.PubSub
	out chan []byte
}

func (c *redisConn) Messages() <-chan []byte { return c.out }
func (c *redisConn) Close() error            { return c.ps.Close() }

// RedisConnector subscribes to one Redis pub/sub channel.
func RedisConnector(rdb *redis.Client, channel string) Connector {
	return func(ctx context.Context) (Conn, error) {
		ps := rdb.Subscribe(ctx, channel)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
		c := &redisConn{ps: ps, out: make(chan []byte, 64)}
		go func() {
			defer close(c.out)
			for m := range ps.Channel() {
				c.out <- []byte(m.Payload)
			}
		}()
		return c, nil
	}
}
