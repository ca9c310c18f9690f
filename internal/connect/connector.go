package connect

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

const defaultOutboundCapacity = 1024

// HeaderGenerator returns extra headers for the connection handshake. Headers
// usually carry a time-bound signature, so the generator is re-invoked on
// every attempt, reconnects included.
type HeaderGenerator func() (http.Header, error)

// Conn is the duplex connection surface the connector drives.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one connection attempt.
type Dialer interface {
	Dial(ctx context.Context, uri string, header http.Header) (Conn, error)
}

type wsDialer struct {
	d *websocket.Dialer
}

func (w wsDialer) Dial(ctx context.Context, uri string, header http.Header) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, uri, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrap(err, "dial").With("status", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "dial")
	}
	return conn, nil
}

// Connector maintains one long-lived connection to a venue and bridges it to
// the bus: inbound frames become payload-in events on the adapter-scoped
// topic, outbound payloads pass through a buffered queue that keeps accepting
// while the socket is down.
type Connector struct {
	uri      string
	adapter  enum.AdapterName
	ps       *bus.PubSub
	headers  HeaderGenerator
	dialer   Dialer
	backoff  Backoff
	out      chan []byte
	attempts atomic.Int64
}

// NewConnector creates a connector for one adapter. headers may be nil when
// the venue needs no handshake auth.
func NewConnector(uri string, adapter enum.AdapterName, ps *bus.PubSub, headers HeaderGenerator) *Connector {
	return &Connector{
		uri:     uri,
		adapter: adapter,
		ps:      ps,
		headers: headers,
		dialer:  wsDialer{d: websocket.DefaultDialer},
		backoff: DefaultBackoff(),
		out:     make(chan []byte, defaultOutboundCapacity),
	}
}

// WithDialer replaces the websocket dialer, for tests.
func (c *Connector) WithDialer(d Dialer) *Connector {
	c.dialer = d
	return c
}

// WithBackoff replaces the reconnect backoff window.
func (c *Connector) WithBackoff(b Backoff) *Connector {
	c.backoff = b
	return c
}

// OnPayloadOut enqueues an opaque payload for the wire. It is the bus handler
// for the adapter's payload-out topic. Submission order is preserved.
func (c *Connector) OnPayloadOut(ctx context.Context, payload any) error {
	switch p := payload.(type) {
	case []byte:
		c.out <- p
	case string:
		c.out <- []byte(p)
	default:
		return errors.Errorf("payload out must be bytes or string, got %T", payload)
	}
	return nil
}

// Attempts returns the consecutive failed connection attempts since the last
// successful connect.
func (c *Connector) Attempts() int {
	return int(c.attempts.Load())
}

// Connect runs the reconnect loop until ctx is done. Every attempt regenerates
// headers and dials; on success it publishes a connection-established event
// and runs the send/receive loops until the connection drops. Every
// connection-level failure is converted into a jittered backoff and a retry;
// none escapes.
func (c *Connector) Connect(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		attempt := c.attempts.Add(1)
		sleep := c.backoff.Next()
		logs.Infof("disconnected from %s: %+v. reconnecting in %s... attempt no. %d",
			c.uri, err, sleep, attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (c *Connector) connectOnce(ctx context.Context) error {
	var header http.Header
	if c.headers != nil {
		var err error
		header, err = c.headers()
		if err != nil {
			return errors.Wrap(err, "generate headers")
		}
	}
	conn, err := c.dialer.Dial(ctx, c.uri, header)
	if err != nil {
		return err
	}
	c.attempts.Store(0)
	c.ps.Publish(model.ConnectorScoped{Topic: enum.TopicConnectionEstablished, Adapter: c.adapter}, nil)
	return c.runSocket(ctx, conn)
}

func (c *Connector) runSocket(ctx context.Context, conn Conn) error {
	errCh := make(chan error, 2)
	stop := make(chan struct{})
	go c.runSend(conn, errCh, stop)
	go c.runReceive(conn, errCh)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}
	close(stop)
	_ = conn.Close()
	return err
}

// runSend drains the outbound queue to the wire in submission order. It only
// runs while a connection is up; between sessions the queue just buffers.
func (c *Connector) runSend(conn Conn, errCh chan<- error, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case payload := <-c.out:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				errCh <- errors.Wrap(err, "write payload")
				return
			}
		}
	}
}

// runReceive republishes every inbound frame as a payload-in event.
func (c *Connector) runReceive(conn Conn, errCh chan<- error) {
	topic := model.ConnectorScoped{Topic: enum.TopicPayloadIn, Adapter: c.adapter}
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			errCh <- errors.Wrap(err, "read payload")
			return
		}
		c.ps.Publish(topic, payload)
	}
}
