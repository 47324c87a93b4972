package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/herdparty/broadcast"
	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/room"
	"github.com/wfunc/herdparty/session"
)

// MockCounter counts received packets.
type MockCounter struct{ n int }

func (m *MockCounter) IncMessagesReceived() { m.n++ }

type testServer struct {
	http     *httptest.Server
	sessions *session.Manager
	cancel   context.CancelFunc
	done     chan error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sessions := session.NewManager()
	r := room.New(room.DefaultConfig(), room.Deps{Broadcaster: broadcast.NewSessionBroadcaster(sessions, nil)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	gs := NewGameServer("127.0.0.1:0", r, sessions, Options{Heartbeat: 5 * time.Second})
	ts := &testServer{
		http:     httptest.NewServer(gs.Routes()),
		sessions: sessions,
		cancel:   cancel,
		done:     done,
	}
	t.Cleanup(func() {
		ts.http.Close()
		cancel()
		<-done
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, msgID uint16, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := network.EncodePacket(msgID, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

// await reads packets until match accepts one or the deadline passes.
func await(t *testing.T, c *websocket.Conn, match func(p *network.Packet) bool) *network.Packet {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed while waiting: %v", err)
		}
		p, err := network.DecodePacket(raw)
		if err != nil {
			t.Fatalf("Bad packet: %v", err)
		}
		if match(p) {
			return p
		}
	}
}

func TestGameServer_HelloWelcomeAndReady(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	send(t, c, network.MsgTypeHello, network.HelloRequest{Name: "Ann"})
	p := await(t, c, func(p *network.Packet) bool { return p.MsgID == network.MsgTypeWelcome })
	var welcome network.WelcomeMessage
	if err := json.Unmarshal(p.Data, &welcome); err != nil {
		t.Fatalf("Bad welcome: %v", err)
	}
	if welcome.ClientID != 1 || welcome.Phase != "lobby" || welcome.SessionID == "" {
		t.Errorf("Unexpected welcome %+v", welcome)
	}

	send(t, c, network.MsgTypeSetReady, network.ReadyRequest{Ready: true})
	await(t, c, func(p *network.Packet) bool {
		if p.MsgID != network.MsgTypeFieldChange {
			return false
		}
		var fc network.FieldChangeMessage
		json.Unmarshal(p.Data, &fc)
		return fc.Field == "phase" && fc.Value == "playing"
	})
}

func TestGameServer_MalformedIntentGetsError(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	send(t, c, network.MsgTypeHello, network.HelloRequest{})
	await(t, c, func(p *network.Packet) bool { return p.MsgID == network.MsgTypeWelcome })

	raw, _ := network.EncodePacket(network.MsgTypeSetReady, []byte("{not json"))
	c.WriteMessage(websocket.BinaryMessage, raw)
	await(t, c, func(p *network.Packet) bool { return p.MsgID == network.MsgTypeError })
}

func TestGameServer_DisconnectLeavesRoom(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	send(t, c, network.MsgTypeHello, network.HelloRequest{Name: "Bo"})
	await(t, c, func(p *network.Packet) bool { return p.MsgID == network.MsgTypeWelcome })
	c.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		var snap network.WorldSnapshot
		resp, err := http.Get(ts.http.URL + "/api/state")
		if err != nil {
			t.Fatalf("GET /api/state failed: %v", err)
		}
		json.NewDecoder(resp.Body).Decode(&snap)
		resp.Body.Close()
		if len(snap.Players) == 0 && ts.sessions.Count() == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Player still present after disconnect: %+v", snap.Players)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGameServer_HealthAndState(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.http.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state failed: %v", err)
	}
	defer resp.Body.Close()
	var snap network.WorldSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Bad state body: %v", err)
	}
	if snap.Phase != "lobby" {
		t.Errorf("Expected lobby, got %q", snap.Phase)
	}
}

func TestGameServer_CountsPackets(t *testing.T) {
	sessions := session.NewManager()
	r := room.New(room.DefaultConfig(), room.Deps{Broadcaster: broadcast.NewSessionBroadcaster(sessions, nil)})
	counter := &MockCounter{}
	gs := NewGameServer("", r, sessions, Options{Metrics: counter})
	sess := session.NewSession("s", 1, nil)

	gs.handlePacket(context.Background(), sess, &network.Packet{MsgID: network.MsgTypeHeartbeat})
	gs.handlePacket(context.Background(), sess, &network.Packet{MsgID: 9999})
	if counter.n != 2 {
		t.Errorf("Expected 2 counted packets, got %d", counter.n)
	}
}
