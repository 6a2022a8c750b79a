package net

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"SharedBoard/internal/state"
)

// Handler receives the coordinator's callbacks on the peer side. Calls for
// one connection arrive in wire order on a single goroutine, except
// ApproveJoin and Snapshot which each run on their own.
type Handler interface {
	SetRole(role state.Role, name string)
	ApproveJoin(name string) bool
	SetAccess(granted bool)
	SyncMembers(members []state.PeerInfo)
	SyncDraw(e state.DrawEvent)
	SyncChat(line string)
	SyncChatHistory(lines []string)
	OverrideCanvas(img []byte)
	ClearCanvas()
	ForceQuit()
	Snapshot() ([]byte, error)
}

type ClientConfig struct {
	QueueSize      int
	WriteTimeout   time.Duration
	ConnectTimeout time.Duration
	// RequestTimeout bounds every request except Login, which waits for the
	// Owner's decision.
	RequestTimeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		QueueSize:      256,
		WriteTimeout:   5 * time.Second,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

// Client is one peer's connection to the coordinator.
type Client struct {
	conn *Conn
	h    Handler
	cfg  ClientConfig
	log  zerolog.Logger
	done chan struct{}
}

// Endpoint builds the websocket URL of a coordinator.
func Endpoint(host string, port int, service string) string {
	if service == "" {
		service = ServiceName
	}
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/" + service}
	return u.String()
}

// Dial connects to the coordinator at endpoint and starts delivering
// callbacks to h.
func Dial(ctx context.Context, endpoint string, h Handler, cfg ClientConfig, log zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, endpoint, err)
	}
	c := &Client{
		conn: newConn(ws, cfg.QueueSize, cfg.WriteTimeout, log),
		h:    h,
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed when the connection to the coordinator is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.conn.Close()
	for {
		msg, err := c.conn.Read()
		if errors.Is(err, errBadMessage) {
			c.log.Warn().Err(err).Msg("dropping message")
			continue
		}
		if err != nil {
			c.log.Debug().Err(err).Msg("coordinator connection closed")
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case MsgReply:
		c.conn.Resolve(msg)
	case MsgSetRole:
		c.h.SetRole(msg.Role, msg.Name)
	case MsgApproveJoin:
		go func() {
			ok := c.h.ApproveJoin(msg.Name)
			c.reply(msg, Message{OK: ok}, nil)
		}()
	case MsgSetAccess:
		c.h.SetAccess(msg.OK)
	case MsgSyncMembers:
		c.h.SyncMembers(msg.Members)
	case MsgSyncDraw:
		if msg.Event != nil {
			c.h.SyncDraw(*msg.Event)
		}
	case MsgSyncChat:
		c.h.SyncChat(msg.Text)
	case MsgSyncHistory:
		c.h.SyncChatHistory(msg.Lines)
	case MsgOverrideCanvas:
		c.h.OverrideCanvas(msg.Image)
	case MsgClearCanvas:
		c.h.ClearCanvas()
	case MsgForceQuit:
		c.h.ForceQuit()
	case MsgSnapshot:
		go func() {
			img, err := c.h.Snapshot()
			c.reply(msg, Message{Image: img}, err)
		}()
	default:
		c.log.Warn().Str("type", string(msg.Type)).Msg("unknown message")
	}
}

func (c *Client) reply(req Message, resp Message, err error) {
	if sendErr := c.conn.Send(replyTo(req, resp, err)); sendErr != nil {
		c.log.Debug().Err(sendErr).Str("type", string(req.Type)).Msg("reply failed")
	}
}

func (c *Client) call(ctx context.Context, msg Message) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	return c.conn.Call(ctx, msg)
}

// Login asks to join the session. It blocks until the Owner decides, the
// session is created, or ctx ends. It returns the name and role assigned.
func (c *Client) Login(ctx context.Context, name string, create bool) (string, state.Role, error) {
	resp, err := c.conn.Call(ctx, Message{Type: MsgLogin, Name: name, Create: create})
	if err != nil {
		return "", state.Editor, err
	}
	return resp.Name, resp.Role, nil
}

func (c *Client) UsernameTaken(ctx context.Context, name string) (bool, error) {
	resp, err := c.call(ctx, Message{Type: MsgUsernameTaken, Name: name})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (c *Client) Members(ctx context.Context) ([]state.PeerInfo, error) {
	resp, err := c.call(ctx, Message{Type: MsgMembers})
	if err != nil {
		return nil, err
	}
	return resp.Members, nil
}

func (c *Client) Quit(ctx context.Context, name string) error {
	_, err := c.call(ctx, Message{Type: MsgQuit, Name: name})
	return err
}

func (c *Client) Kick(ctx context.Context, name string) error {
	_, err := c.call(ctx, Message{Type: MsgKick, Name: name})
	return err
}

func (c *Client) EndSession(ctx context.Context) error {
	_, err := c.call(ctx, Message{Type: MsgEndSession})
	return err
}

// BroadcastDraw is fire-and-forget; the coordinator echoes the event back
// with the origin stamped.
func (c *Client) BroadcastDraw(e state.DrawEvent) error {
	return c.conn.Send(Message{Type: MsgDraw, Event: &e})
}

func (c *Client) BroadcastChat(text string) error {
	return c.conn.Send(Message{Type: MsgChat, Text: text})
}

func (c *Client) RequestSnapshot(ctx context.Context) ([]byte, error) {
	resp, err := c.call(ctx, Message{Type: MsgRequestSnapshot})
	if err != nil {
		return nil, err
	}
	return resp.Image, nil
}

func (c *Client) PushSnapshot(ctx context.Context, img []byte) error {
	_, err := c.call(ctx, Message{Type: MsgPushSnapshot, Image: img})
	return err
}

func (c *Client) ClearCanvas(ctx context.Context) error {
	_, err := c.call(ctx, Message{Type: MsgClearCanvas})
	return err
}
