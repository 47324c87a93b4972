package session

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/wfunc/herdparty/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []network.Packet
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, network.Packet{MsgID: msgID, Data: data, Length: uint16(len(data))})
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, manager.NextClientID(), &MockConnection{})

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_ClientIDs(t *testing.T) {
	manager := NewManager()

	first := manager.NextClientID()
	second := manager.NextClientID()
	if first != 1 || second != 2 {
		t.Fatalf("Expected ids 1 and 2, got %d and %d", first, second)
	}

	manager.Add(NewSession("b", second, &MockConnection{}))
	manager.Add(NewSession("a", first, &MockConnection{}))

	sess, ok := manager.GetByClientID(2)
	if !ok || sess.ID != "b" {
		t.Errorf("Expected session b for client 2, got %v", sess)
	}
	if _, ok := manager.GetByClientID(3); ok {
		t.Error("Expected no session for client 3")
	}

	all := manager.All()
	if len(all) != 2 || all[0].ClientID != 1 || all[1].ClientID != 2 {
		t.Errorf("All should be ordered by client id, got %v", all)
	}
}

func TestSession_SendJSON(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", 1, conn)
	before := sess.LastActive()
	time.Sleep(time.Millisecond)

	if err := sess.SendJSON(network.MsgTypeToast, network.ToastMessage{Message: "hi"}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0].MsgID != network.MsgTypeToast {
		t.Fatalf("Expected one toast packet, got %+v", conn.sent)
	}
	var msg network.ToastMessage
	if err := json.Unmarshal(conn.sent[0].Data, &msg); err != nil || msg.Message != "hi" {
		t.Errorf("Unexpected payload %s (%v)", conn.sent[0].Data, err)
	}
	if !sess.LastActive().After(before) {
		t.Error("Send should refresh LastActive")
	}

	if err := sess.SendJSON(network.MsgTypeToast, func() {}); err == nil {
		t.Error("Expected a marshal error for a func value")
	}
}
