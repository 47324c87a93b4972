// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/session"
)

var (
	ErrClientNotFound = errors.New("client not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToAll(msgID uint16, data []byte) error
	SendTo(clientID replicated.ClientID, msgID uint16, data []byte) error
}

// Recorder receives a copy of every outbound message.
type Recorder interface {
	Record(kind string, v any)
}

// 基于会话的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
	recorder       Recorder
}

func NewSessionBroadcaster(sessionManager *session.Manager, recorder Recorder) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
		recorder:       recorder,
	}
}

// BroadcastToAll sends to every session and keeps going past failed sends.
func (b *SessionBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	var errs []error
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败由读协程负责清理连接
			logger.Log.Debugw("broadcast send failed", "client", s.ClientID, "msg", msgID, "err", err)
			errs = append(errs, fmt.Errorf("client %d: %w", s.ClientID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *SessionBroadcaster) SendTo(clientID replicated.ClientID, msgID uint16, data []byte) error {
	s, ok := b.sessionManager.GetByClientID(clientID)
	if !ok {
		return ErrClientNotFound
	}
	return s.Send(msgID, data)
}

func (b *SessionBroadcaster) broadcastJSON(kind string, msgID uint16, v any) {
	if b.recorder != nil {
		b.recorder.Record(kind, v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorw("failed to marshal broadcast", "kind", kind, "err", err)
		return
	}
	if err := b.BroadcastToAll(msgID, data); err != nil {
		logger.Log.Warnw("broadcast incomplete", "kind", kind, "msg", msgID, "err", err)
	}
}

// Publish sends a replicated field change to every client.
func (b *SessionBroadcaster) Publish(c replicated.Change) {
	b.broadcastJSON("field", network.MsgTypeFieldChange, network.FieldChangeMessage{Field: c.Field, Value: c.Value})
}

func (b *SessionBroadcaster) Toast(msg string) {
	b.broadcastJSON("toast", network.MsgTypeToast, network.ToastMessage{Message: msg})
}

func (b *SessionBroadcaster) Signal(name string) {
	b.broadcastJSON("signal", network.MsgTypeSignal, network.SignalMessage{Name: name})
}

func (b *SessionBroadcaster) Snapshot(s network.WorldSnapshot) {
	b.broadcastJSON("snapshot", network.MsgTypeWorldSnapshot, s)
}
