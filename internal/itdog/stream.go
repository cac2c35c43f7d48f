package itdog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/probe"
)

// State is a step of one probe's lifecycle.
type State int

const (
	StateNegotiating State = iota
	StateConnecting
	StateUpgrading
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnecting:
		return "connecting"
	case StateUpgrading:
		return "upgrading"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connector opens the transport the stream runs on.
type Connector interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	Handshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
}

// NegotiateFunc produces the session a stream presents in its first frame.
type NegotiateFunc func(ctx context.Context) (Session, error)

// maxFrameBytes bounds a single measurement frame.
const maxFrameBytes = 1 << 20

// StreamClient runs the stream side of a probe: connect, TLS, websocket
// upgrade, then read measurement frames until the service says it is done.
type StreamClient struct {
	Host      string
	Port      int
	Path      string
	Origin    string
	UserAgent string
	Connector Connector
	Log       zerolog.Logger

	// OnState, when set, observes every state change. It runs on the probe goroutine.
	OnState func(State)
}

// Addr is the host:port the client connects to.
func (c *StreamClient) Addr() string {
	return net.JoinHostPort(c.host(), strconv.Itoa(c.port()))
}

func (c *StreamClient) host() string {
	if c.Host == "" {
		return DefaultSocketHost
	}
	return c.Host
}

func (c *StreamClient) port() int {
	if c.Port == 0 {
		return DefaultSocketPort
	}
	return c.Port
}

func (c *StreamClient) path() string {
	if c.Path == "" {
		return DefaultSocketPath
	}
	return c.Path
}

func (c *StreamClient) enter(s State) {
	c.Log.Debug().Stringer("state", s).Msg("stream state")
	if c.OnState != nil {
		c.OnState(s)
	}
}

// Run drives one probe. Records go to out in the order the service sends
// them. On success or cancellation the end marker follows them, flagged when
// the stop came from cancel; on failure the error is returned and no end
// marker is sent.
func (c *StreamClient) Run(ctx context.Context, negotiate NegotiateFunc, cancel <-chan struct{}, out chan<- probe.Event) error {
	c.enter(StateNegotiating)
	if probe.Cancelled(cancel) {
		return c.close(ctx, out, true)
	}
	session, err := negotiate(ctx)
	if err != nil {
		c.enter(StateClosed)
		return err
	}

	c.enter(StateConnecting)
	if probe.Cancelled(cancel) {
		return c.close(ctx, out, true)
	}
	conn, err := c.connect(ctx)
	if err != nil {
		c.enter(StateClosed)
		return err
	}

	c.enter(StateUpgrading)
	if probe.Cancelled(cancel) {
		conn.Close()
		return c.close(ctx, out, true)
	}
	ws, err := c.upgrade(ctx, conn)
	if err != nil {
		conn.Close()
		c.enter(StateClosed)
		return err
	}
	ws.SetReadLimit(maxFrameBytes)

	c.enter(StateStreaming)
	if probe.Cancelled(cancel) {
		c.closeSocket(ws)
		return c.close(ctx, out, true)
	}
	if err := ws.Write(ctx, websocket.MessageText, session.Payload()); err != nil {
		ws.CloseNow()
		c.enter(StateClosed)
		return fmt.Errorf("%w: sending task payload: %v", probe.ErrTransport, err)
	}

	cancelled, err := c.readLoop(ctx, ws, cancel, out)
	if err != nil {
		ws.CloseNow()
		c.enter(StateClosed)
		return err
	}

	c.enter(StateDraining)
	c.closeSocket(ws)
	return c.close(ctx, out, cancelled)
}

func (c *StreamClient) connect(ctx context.Context) (net.Conn, error) {
	if c.Connector == nil {
		return nil, fmt.Errorf("%w: no connector configured", probe.ErrTransport)
	}
	addr := c.Addr()
	raw, err := c.Connector.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", probe.ErrTransport, addr, err)
	}
	conn, err := c.Connector.Handshake(ctx, raw, c.host())
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: TLS handshake with %s: %v", probe.ErrTransport, addr, err)
	}
	return conn, nil
}

// upgrade performs the websocket handshake over conn, which already carries
// the TLS session.
func (c *StreamClient) upgrade(ctx context.Context, conn net.Conn) (*websocket.Conn, error) {
	pending := make(chan net.Conn, 1)
	pending <- conn
	transport := &http.Transport{
		DialTLSContext: func(context.Context, string, string) (net.Conn, error) {
			select {
			case pc := <-pending:
				return pc, nil
			default:
				return nil, errors.New("stream connection already used")
			}
		},
		DisableKeepAlives: true,
	}

	header := http.Header{}
	if c.Origin != "" {
		header.Set("Origin", c.Origin)
	}
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}

	target := url.URL{Scheme: "wss", Host: c.Addr(), Path: c.path()}
	if c.port() == DefaultSocketPort {
		target.Host = c.host()
	}

	ws, resp, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: transport},
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s answered %s: %v", probe.ErrHandshake, target.String(), resp.Status, err)
		}
		return nil, fmt.Errorf("%w: upgrading %s: %v", probe.ErrTransport, target.String(), err)
	}
	return ws, nil
}

func (c *StreamClient) readLoop(ctx context.Context, ws *websocket.Conn, cancel <-chan struct{}, out chan<- probe.Event) (bool, error) {
	frames := 0
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.Log.Debug().Int("frames", frames).Msg("service closed the stream")
				return false, nil
			}
			if ctx.Err() != nil {
				return false, fmt.Errorf("%w: %v", probe.ErrChannelClosed, context.Cause(ctx))
			}
			return false, fmt.Errorf("%w: reading frame: %v", probe.ErrTransport, err)
		}
		frames++

		switch typ {
		case websocket.MessageText:
			c.Log.Trace().Int("frame", frames).Bytes("text", data).Msg("frame")
			if IsFinished(data) {
				c.Log.Debug().Int("frames", frames).Msg("task finished")
				return false, nil
			}
			rec, err := DecodeFrame(data)
			if err != nil {
				return false, err
			}
			if err := probe.Send(ctx, out, probe.RecordEvent(rec)); err != nil {
				return false, err
			}
		default:
			c.Log.Debug().Int("frame", frames).Int("bytes", len(data)).Msg("ignoring binary frame")
		}

		if probe.Cancelled(cancel) {
			c.Log.Debug().Int("frames", frames).Msg("cancelled while streaming")
			return true, nil
		}
	}
}

// closeSocket sends a close frame. The peer may already be gone.
func (c *StreamClient) closeSocket(ws *websocket.Conn) {
	if err := ws.Close(websocket.StatusNormalClosure, ""); err != nil && !isAlreadyClosed(err) {
		c.Log.Debug().Err(err).Msg("closing stream")
	}
}

func (c *StreamClient) close(ctx context.Context, out chan<- probe.Event, cancelled bool) error {
	c.enter(StateClosed)
	if cancelled {
		return probe.Send(ctx, out, probe.CancelledEvent())
	}
	return probe.Send(ctx, out, probe.EndEvent())
}

func isAlreadyClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1
}
