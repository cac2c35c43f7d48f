package itdog

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	coderws "github.com/coder/websocket"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/core/tlsconf"
	"github.com/sadopc/httping/internal/probe"
)

func frame(name string, code int) string {
	return fmt.Sprintf(`{"ip":"10.0.0.1","http_code":%d,"all_time":"0.321","dns_time":"0.012",`+
		`"connect_time":"0.100","download_time":"0.209","redirect":0,"redirect_time":"0.000","name":%q}`, code, name)
}

// fakeService is a TLS server speaking the service's websocket protocol via
// gorilla's Upgrader. script runs after the task payload has been read.
type fakeService struct {
	srv      *httptest.Server
	payloads chan string
}

func newFakeService(t *testing.T, script func(c *websocket.Conn)) *fakeService {
	t.Helper()
	f := &fakeService{payloads: make(chan string, 1)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/http/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>task_id='ABC123';</script>`))
	})
	mux.HandleFunc("/websockets", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		f.payloads <- string(msg)
		script(c)
		// Answer the client's close frame.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	f.srv = httptest.NewTLSServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func testConnector(srv *httptest.Server) *tlsconf.Dialer {
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return &tlsconf.Dialer{TLS: &tls.Config{RootCAs: pool}, Timeout: 5 * time.Second}
}

func testStreamClient(srv *httptest.Server, conn Connector) *StreamClient {
	addr := srv.Listener.Addr().(*net.TCPAddr)
	return &StreamClient{
		Host:      "127.0.0.1",
		Port:      addr.Port,
		Origin:    "https://www.itdog.cn",
		Connector: conn,
		Log:       zerolog.Nop(),
	}
}

func fixedSession(context.Context) (Session, error) {
	return Derive("ABC123", DefaultKey, 8, 24)
}

// runStreamEvents runs c and returns every event it sent.
func runStreamEvents(t *testing.T, c *StreamClient, cancel chan struct{}) ([]probe.Event, error) {
	t.Helper()
	if cancel == nil {
		cancel = make(chan struct{})
	}
	out := make(chan probe.Event, 64)
	ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	err := c.Run(ctx, fixedSession, cancel, out)
	close(out)

	var events []probe.Event
	for ev := range out {
		events = append(events, ev)
	}
	return events, err
}

// runStream runs c and collects what it sent, split into records and
// whether the end marker arrived.
func runStream(t *testing.T, c *StreamClient, cancel chan struct{}) ([]probe.Record, bool, error) {
	t.Helper()
	events, err := runStreamEvents(t, c, cancel)

	var records []probe.Record
	ended := false
	for _, ev := range events {
		if ended {
			t.Fatal("event after end marker")
		}
		if ev.End {
			ended = true
			continue
		}
		records = append(records, ev.Record)
	}
	return records, ended, err
}

// endMarker returns the last event, which must be the end marker.
func endMarker(t *testing.T, events []probe.Event) probe.Event {
	t.Helper()
	if len(events) == 0 || !events[len(events)-1].End {
		t.Fatalf("no end marker in %d events", len(events))
	}
	return events[len(events)-1]
}

func TestStreamFinishedMarker(t *testing.T) {
	f := newFakeService(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(frame("Beijing", 200)))
		c.WriteMessage(websocket.TextMessage, []byte(frame("Shanghai", 301)))
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"finished"}`))
		c.WriteMessage(websocket.TextMessage, []byte(frame("late", 200)))
	})

	var states []State
	client := testStreamClient(f.srv, testConnector(f.srv))
	client.OnState = func(s State) { states = append(states, s) }

	events, err := runStreamEvents(t, client, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if endMarker(t, events).Cancelled {
		t.Error("finished stream flagged as cancelled")
	}
	var records []probe.Record
	for _, ev := range events[:len(events)-1] {
		records = append(records, ev.Record)
	}
	if len(records) != 2 || records[0].Loc() != "Beijing" || records[1].Loc() != "Shanghai" {
		t.Fatalf("records = %+v", records)
	}
	if records[1].Status() != 301 || records[0].TotalCost() != "0.321" {
		t.Errorf("record fields not carried: %+v", records[1])
	}
	if names := records[0].PhaseNames(); len(names) != 3 || names[0] != PhaseDNS || names[1] != PhaseConnect || names[2] != PhaseDownload {
		t.Errorf("PhaseNames() = %v", names)
	}

	want := []State{StateNegotiating, StateConnecting, StateUpgrading, StateStreaming, StateDraining, StateClosed}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}

	select {
	case p := <-f.payloads:
		if p != `{"task_id":"ABC123","task_token":"65c1557bc8debc17"}` {
			t.Errorf("payload = %s", p)
		}
	default:
		t.Error("service never received the payload")
	}
}

func TestStreamCloseFrameEndsStream(t *testing.T) {
	f := newFakeService(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(frame("a", 200)))
		c.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		c.WriteMessage(websocket.TextMessage, []byte(frame("b", 200)))
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	records, ended, err := runStream(t, testStreamClient(f.srv, testConnector(f.srv)), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !ended || len(records) != 2 {
		t.Fatalf("ended=%v records=%d, want ended with 2 records", ended, len(records))
	}
}

func TestStreamDecodeFailure(t *testing.T) {
	f := newFakeService(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(frame("a", 200)))
		c.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		c.WriteMessage(websocket.TextMessage, []byte(frame("b", 200)))
	})

	records, ended, err := runStream(t, testStreamClient(f.srv, testConnector(f.srv)), nil)
	if !errors.Is(err, probe.ErrDecode) {
		t.Fatalf("Run() error = %v, want ErrDecode", err)
	}
	if ended {
		t.Fatal("end marker sent on failure")
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
}

func TestStreamRejectsNonMeasurementFrame(t *testing.T) {
	f := newFakeService(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","done":3}`))
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"finished"}`))
	})

	records, ended, err := runStream(t, testStreamClient(f.srv, testConnector(f.srv)), nil)
	if !errors.Is(err, probe.ErrDecode) {
		t.Fatalf("Run() error = %v, want ErrDecode", err)
	}
	if ended || len(records) != 0 {
		t.Fatalf("ended=%v records=%d, want no events", ended, len(records))
	}
}

func TestStreamHandshakeRejected(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, ended, err := runStream(t, testStreamClient(srv, testConnector(srv)), nil)
	if !errors.Is(err, probe.ErrHandshake) {
		t.Fatalf("Run() error = %v, want ErrHandshake", err)
	}
	if ended {
		t.Fatal("end marker sent on failure")
	}
}

func TestStreamUntrustedServer(t *testing.T) {
	f := newFakeService(t, func(*websocket.Conn) {})

	conn := &tlsconf.Dialer{TLS: &tls.Config{RootCAs: x509.NewCertPool()}}
	_, ended, err := runStream(t, testStreamClient(f.srv, conn), nil)
	if !errors.Is(err, probe.ErrTransport) {
		t.Fatalf("Run() error = %v, want ErrTransport", err)
	}
	if ended {
		t.Fatal("end marker sent on failure")
	}
}

type countingConnector struct {
	Connector
	dials int
}

func (c *countingConnector) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	c.dials++
	return c.Connector.DialContext(ctx, network, addr)
}

func TestStreamCancelBeforeConnecting(t *testing.T) {
	f := newFakeService(t, func(*websocket.Conn) {})
	conn := &countingConnector{Connector: testConnector(f.srv)}

	cancel := make(chan struct{})
	close(cancel)
	events, err := runStreamEvents(t, testStreamClient(f.srv, conn), cancel)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(events) != 1 || !endMarker(t, events).Cancelled {
		t.Fatalf("events = %+v, want a single cancelled end marker", events)
	}
	if conn.dials != 0 {
		t.Fatalf("dials = %d, want 0", conn.dials)
	}
}

func TestStreamCancelWhileStreaming(t *testing.T) {
	cancel := make(chan struct{})
	f := newFakeService(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(frame("a", 200)))
		close(cancel)
		c.WriteMessage(websocket.TextMessage, []byte(frame("b", 200)))
		c.WriteMessage(websocket.TextMessage, []byte(frame("c", 200)))
	})

	events, err := runStreamEvents(t, testStreamClient(f.srv, testConnector(f.srv)), cancel)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !endMarker(t, events).Cancelled {
		t.Fatal("end marker after cancel is not flagged as cancelled")
	}
	if n := len(events) - 1; n == 0 || n > 2 {
		t.Fatalf("len(records) = %d, want 1 or 2", n)
	}
}

// The stream client is also exercised against coder/websocket's server side.
func TestStreamInvalidUTF8WithCoderServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := coderws.Accept(w, r, &coderws.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
		c.Write(ctx, coderws.MessageText, []byte(frame("ok", 200)))
		c.Write(ctx, coderws.MessageText, []byte{0xff, 0xfe, '{', '}'})
		c.Read(ctx)
	}))
	defer srv.Close()

	records, ended, err := runStream(t, testStreamClient(srv, testConnector(srv)), nil)
	if !errors.Is(err, probe.ErrDecode) {
		t.Fatalf("Run() error = %v, want ErrDecode", err)
	}
	if ended || len(records) != 1 {
		t.Fatalf("ended=%v records=%d, want 1 record and no end marker", ended, len(records))
	}
}

func TestBackendPing(t *testing.T) {
	f := newFakeService(t, func(c *websocket.Conn) {
		for i := 0; i < 5; i++ {
			c.WriteMessage(websocket.TextMessage, []byte(frame(fmt.Sprintf("loc-%d", i), 200)))
		}
		c.WriteMessage(websocket.TextMessage, []byte(`{"message":"x","type":"finished"}`))
	})
	addr := f.srv.Listener.Addr().(*net.TCPAddr)

	b := New(Config{
		NegotiateURL: f.srv.URL + "/http/",
		HTTPClient:   f.srv.Client(),
		SocketHost:   "127.0.0.1",
		SocketPort:   addr.Port,
		Connector:    testConnector(f.srv),
		Log:          zerolog.Nop(),
	})

	c := probe.NewCoordinator(context.Background(), probe.Options{Logger: zerolog.Nop()})
	defer c.Close()
	c.Register(b)
	task, err := c.StartByName("itdog", "example.com")
	if err != nil {
		t.Fatalf("StartByName() error: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !task.Ended() {
		if time.Now().After(deadline) {
			t.Fatal("task did not end")
		}
		c.Poll()
		time.Sleep(5 * time.Millisecond)
	}

	if task.Err() != nil {
		t.Fatalf("task Err() = %v", task.Err())
	}
	records := task.Records()
	if len(records) != 5 {
		t.Fatalf("len(Records()) = %d, want 5", len(records))
	}
	for i, r := range records {
		if r.Loc() != fmt.Sprintf("loc-%d", i) {
			t.Fatalf("record %d out of order: %s", i, r.Loc())
		}
	}
	if task.Status() != probe.StatusFinished {
		t.Fatalf("Status() = %v", task.Status())
	}
}
