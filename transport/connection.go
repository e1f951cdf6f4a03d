// Package transport wraps a single websocket connection behind a pair of
// pump goroutines, so the rest of the system only ever sees ordered
// inbound frames and a thread-safe outbound Send.
package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// FrameHandler is called for every inbound text frame, in arrival order.
type FrameHandler func(ctx context.Context, connID uuid.UUID, frame []byte)

// CloseHandler fires exactly once per connection, whatever combination of
// close, error or timeout ended it.
type CloseHandler func(connID uuid.UUID, err error)

type Config struct {
	// ReadTimeout bounds the wait for a single inbound frame; zero
	// disables the idle timeout.
	ReadTimeout time.Duration
	// SendBuffer is the capacity of the outbound frame queue.
	SendBuffer int
}

// Connection binds one websocket to one authenticated user for its whole
// lifetime. Inbound frames reach the handler strictly in the order the
// client sent them; outbound frames are queued and written by a single
// writer goroutine.
type Connection struct {
	id   uuid.UUID
	ws   *websocket.Conn
	cfg  Config
	send chan []byte

	onFrame FrameHandler
	onClose CloseHandler

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	log *slog.Logger
}

func NewConnection(parent context.Context, ws *websocket.Conn, cfg Config, onFrame FrameHandler, onClose CloseHandler, log *slog.Logger) *Connection {
	id := uuid.New()
	ctx, cancel := context.WithCancel(parent)
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}

	return &Connection{
		id:      id,
		ws:      ws,
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendBuffer),
		onFrame: onFrame,
		onClose: onClose,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log.With(slog.String("conn_id", id.String())),
	}
}

// Run starts both pumps. It returns immediately; use Done to wait.
func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()
	c.log.Debug("Connection established")
}

// readPump delivers inbound frames to the handler in order. Any read
// failure (client close, timeout, network drop) tears the connection down.
func (c *Connection) readPump() {
	var readErr error
	defer func() { c.Close(readErr) }()

	for {
		readCtx := c.ctx
		cancelRead := context.CancelFunc(func() {})
		if c.cfg.ReadTimeout > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, c.cfg.ReadTimeout)
		}

		typ, frame, err := c.ws.Read(readCtx)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if c.onFrame != nil {
			c.onFrame(c.ctx, c.id, frame)
		}
	}
}

// writePump is the single writer on the websocket.
func (c *Connection) writePump() {
	var writeErr error
	defer func() { c.Close(writeErr) }()

	for {
		select {
		case frame := <-c.send:
			if err := c.ws.Write(c.ctx, websocket.MessageText, frame); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues an outbound frame. Safe for concurrent use. Frames are
// dropped once the connection is closing or the queue is full; offline
// and slow clients get no delivery guarantee beyond the live session.
func (c *Connection) Send(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.ctx.Done():
	default:
		c.log.Warn("Outbound queue full, dropping frame")
	}
}

// Close tears the connection down exactly once, regardless of how many
// paths (read error, write error, explicit close) reach it. The close
// handler therefore fires at most once per connection, which is what
// keeps presence unregistration idempotent upstream.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		close(c.done)
		c.log.Debug("Connection closed", slog.Any("reason", err))
	})
}

// Done is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) ID() uuid.UUID {
	return c.id
}
