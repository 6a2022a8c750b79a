package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxMessageBytes = 16 << 20

var errBadMessage = errors.New("net: malformed message")

// Conn wraps one websocket with a single writer goroutine fed by a bounded
// queue, and request/response correlation for messages that expect a reply.
type Conn struct {
	ws           *websocket.Conn
	out          chan Message
	quit         chan struct{}
	quitOnce     sync.Once
	done         chan struct{}
	writeTimeout time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan Message
}

func newConn(ws *websocket.Conn, queueSize int, writeTimeout time.Duration, log zerolog.Logger) *Conn {
	ws.SetReadLimit(maxMessageBytes)
	c := &Conn{
		ws:           ws,
		out:          make(chan Message, queueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log,
		pending:      make(map[string]chan Message),
	}
	go c.writeLoop()
	return c
}

// Send queues msg for delivery. It blocks at most writeTimeout when the
// queue is full.
func (c *Conn) Send(msg Message) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()
	select {
	case c.out <- msg:
		return nil
	case <-c.quit:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("%w: %s queue full", ErrDeliveryTimeout, msg.Type)
	}
}

// Call sends msg with a fresh id and waits for the matching reply.
func (c *Conn) Call(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	ch := make(chan Message, 1)
	c.mu.Lock()
	c.pending[msg.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.Send(msg); err != nil {
		return Message{}, err
	}
	select {
	case resp := <-ch:
		return resp, errorFromReply(resp)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Message{}, fmt.Errorf("%w: %s", ErrDeliveryTimeout, msg.Type)
		}
		return Message{}, ctx.Err()
	case <-c.quit:
		return Message{}, ErrClosed
	}
}

// Resolve hands a reply to the waiting Call. It reports whether anyone was
// waiting.
func (c *Conn) Resolve(msg Message) bool {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Read blocks for the next message. Frames that fail to decode return
// errBadMessage and leave the connection usable.
func (c *Conn) Read() (Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errBadMessage, err)
	}
	return msg, nil
}

// Close flushes queued messages and then closes the socket.
func (c *Conn) Close() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// Done is closed once the socket has been released.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) writeLoop() {
	defer close(c.done)
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				c.log.Debug().Err(err).Str("type", string(msg.Type)).Msg("write failed")
				c.Close()
				return
			}
		case <-c.quit:
			c.drain()
			deadline := time.Now().Add(c.writeTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

func (c *Conn) drain() {
	for {
		select {
		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(msg Message) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}
