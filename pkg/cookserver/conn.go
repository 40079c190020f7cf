package cookserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/dialogue"
)

var errNotConnected = errors.New("cookserver: not connected")

// conn serves one websocket. Three goroutines run per connection: the
// reader decodes frames, the worker runs session commands in arrival order,
// and the writer owns every write to the socket.
type conn struct {
	srv  *Server
	ws   *websocket.Conn
	out  chan ServerMessage
	cmds chan ClientMessage
	stop <-chan struct{}

	mu   sync.Mutex
	sess *controller.Session
}

func newConn(srv *Server, ws *websocket.Conn) *conn {
	return &conn{
		srv:  srv,
		ws:   ws,
		out:  make(chan ServerMessage, srv.cfg.QueueSize),
		cmds: make(chan ClientMessage, srv.cfg.QueueSize),
	}
}

func (c *conn) serve(ctx context.Context) error {
	defer c.ws.Close()
	defer c.release()

	g, ctx := errgroup.WithContext(ctx)
	c.stop = ctx.Done()
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.workLoop(ctx) })
	g.Go(func() error { return c.writeLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.srv.cfg.WriteTimeout))
		// Unblocks the reader.
		c.ws.Close()
		return nil
	})
	return g.Wait()
}

func (c *conn) session() *controller.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// release closes an attached session without clearing its memory.
func (c *conn) release() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess != nil {
		c.srv.cfg.Logger.Info("cookserver: connection dropped", "session", sess.ID())
		c.srv.detach(sess)
	}
}

func (c *conn) readLoop(ctx context.Context) error {
	c.ws.SetReadLimit(c.srv.cfg.ReadLimit)
	deadline := 2 * c.srv.cfg.PingInterval
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(deadline))
		if typ != websocket.TextMessage {
			c.send(errorMessage("", fmt.Errorf("cookserver: expected a text frame")))
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(errorMessage("", fmt.Errorf("cookserver: decode message: %w", err)))
			continue
		}
		if msg.Type == TypeDisconnect {
			// Bypasses the queue so it interrupts the command in flight.
			c.disconnect(ctx, msg)
			continue
		}
		select {
		case c.cmds <- msg:
		default:
			c.send(errorMessage(msg.ID, controller.ErrBusy))
		}
	}
}

func (c *conn) workLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.cmds:
			if err := c.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.send(errorMessage(msg.ID, err))
			}
		}
	}
}

func (c *conn) writeLoop(ctx context.Context) error {
	ping := time.NewTicker(c.srv.cfg.PingInterval)
	defer ping.Stop()
	timeout := c.srv.cfg.WriteTimeout
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("cookserver: ping: %w", err)
			}
		case msg := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				return fmt.Errorf("cookserver: write: %w", err)
			}
		}
	}
}

// send queues msg for the writer. It gives up once the connection ends.
func (c *conn) send(msg ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.stop:
	}
}

// pushOutcome forwards outcomes of the session's own timers. It runs on
// the session goroutine and never blocks it.
func (c *conn) pushOutcome(o controller.Outcome) {
	if o.Status == controller.StatusNoChange {
		return
	}
	select {
	case c.out <- ServerMessage{Type: TypeOutcome, Outcome: &o}:
	case <-c.stop:
	default:
		c.srv.cfg.Logger.Warn("cookserver: outcome dropped, client too slow",
			"status", o.Status, "event", o.Event)
	}
}

func (c *conn) sendOutcome(id string, o controller.Outcome) {
	c.send(ServerMessage{Type: TypeOutcome, ID: id, Outcome: &o})
}

func (c *conn) handle(ctx context.Context, msg ClientMessage) error {
	if msg.Type == TypeConnect {
		return c.connect(ctx, msg)
	}
	sess := c.session()
	if sess == nil {
		return errNotConnected
	}
	switch msg.Type {
	case TypeUtterance:
		o, err := sess.Utter(ctx, msg.Text)
		if err != nil {
			return err
		}
		c.sendOutcome(msg.ID, o)
	case TypeEvent:
		if msg.Event == nil || !msg.Event.Valid() {
			return fmt.Errorf("cookserver: event message needs a known event")
		}
		o, err := sess.Submit(ctx, *msg.Event, msg.Text)
		if err != nil {
			return err
		}
		c.sendOutcome(msg.ID, o)
	case TypeImage:
		if len(msg.Data) == 0 {
			return fmt.Errorf("cookserver: image message without data")
		}
		return sess.SetImage(ctx, msg.Data, msg.MIMEType)
	case TypeTick:
		o, err := sess.Tick(ctx)
		if err != nil {
			return err
		}
		c.sendOutcome(msg.ID, o)
	case TypeReset:
		o, err := sess.Reset(ctx)
		if err != nil {
			return err
		}
		c.sendOutcome(msg.ID, o)
		return c.sendState(ctx, msg.ID, sess)
	default:
		return fmt.Errorf("cookserver: unknown message type %q", msg.Type)
	}
	return nil
}

func (c *conn) connect(ctx context.Context, msg ClientMessage) error {
	if sess := c.session(); sess != nil {
		return fmt.Errorf("cookserver: already connected to session %s", sess.ID())
	}
	sess, err := c.srv.attach(msg.Session, c.pushOutcome)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	o, err := sess.Connect(ctx)
	if err != nil {
		return err
	}
	c.srv.cfg.Logger.Info("cookserver: session attached", "session", sess.ID())
	c.sendOutcome(msg.ID, o)
	return c.sendState(ctx, msg.ID, sess)
}

// disconnect ends the session for good: its memory is cleared and the id
// is released.
func (c *conn) disconnect(ctx context.Context, msg ClientMessage) {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		c.send(errorMessage(msg.ID, errNotConnected))
		return
	}
	o, err := sess.Disconnect(ctx)
	c.srv.detach(sess)
	if err != nil {
		c.send(errorMessage(msg.ID, err))
		return
	}
	c.sendOutcome(msg.ID, o)
	state := dialogue.StateAwaitingConnection
	c.send(ServerMessage{Type: TypeState, ID: msg.ID, Session: sess.ID(), State: &state})
}

func (c *conn) sendState(ctx context.Context, id string, sess *controller.Session) error {
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return err
	}
	c.send(stateMessage(id, snap))
	return nil
}
