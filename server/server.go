package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/room"
	"github.com/wfunc/herdparty/session"
)

const (
	DefaultHeartbeat = 30 * time.Second

	helloTimeout    = 10 * time.Second
	leaveTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Room is the part of the simulation the transport talks to.
type Room interface {
	Join(ctx context.Context, id replicated.ClientID, name string) (room.JoinResult, error)
	Submit(ctx context.Context, cmd any) error
	Snapshot(ctx context.Context) (network.WorldSnapshot, error)
}

// Counter is told about every received packet.
type Counter interface {
	IncMessagesReceived()
}

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	room           Room
	sessionManager *session.Manager
	metrics        Counter
	metricsHandler http.Handler
	heartbeat      time.Duration
	httpServer     *http.Server
}

type Options struct {
	Heartbeat      time.Duration
	Metrics        Counter
	MetricsHandler http.Handler
}

func NewGameServer(addr string, r Room, sessions *session.Manager, opts Options) *GameServer {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	s := &GameServer{
		addr:           addr,
		room:           r,
		sessionManager: sessions,
		metrics:        opts.Metrics,
		metricsHandler: opts.MetricsHandler,
		heartbeat:      opts.Heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes sets up the HTTP routes.
func (s *GameServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/state", s.handleState)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	return r
}

// Serve listens until ctx is cancelled, then shuts down and closes every open session.
func (s *GameServer) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Infof("Game server listening on %s", s.addr)
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	// Hijacked websocket connections are not tracked by http.Server.
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *GameServer) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.room.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, network.ErrorMessage{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(r.Context(), network.NewWSConnection(conn))
}

// handleConnection owns one client for its lifetime. The first packet may be a hello carrying a
// name; anything else is handled as a normal intent after the implicit join.
func (s *GameServer) handleConnection(ctx context.Context, conn network.Connection) {
	conn.SetHeartbeat(helloTimeout / 2)
	first, err := conn.ReadPacket()
	if err != nil {
		conn.Close()
		return
	}
	conn.SetHeartbeat(s.heartbeat)

	var hello network.HelloRequest
	if first.MsgID == network.MsgTypeHello {
		if err := json.Unmarshal(first.Data, &hello); err != nil {
			logger.Log.Debugw("bad hello", "remote", conn.RemoteAddr(), "err", err)
		}
		first = nil
	}

	sess := session.NewSession(uuid.NewString(), s.sessionManager.NextClientID(), conn)
	// 先加入会话, 自己入场产生的字段变化也能收到
	s.sessionManager.Add(sess)
	defer func() {
		logger.Log.Infow("connection closed", "remote", conn.RemoteAddr(), "session", sess.GetID(), "client", sess.ClientID)
		s.sessionManager.Remove(sess.GetID())
		leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := s.room.Submit(leaveCtx, room.Leave{ClientID: sess.ClientID}); err != nil {
			logger.Log.Debugw("leave not delivered", "client", sess.ClientID, "err", err)
		}
		conn.Close()
	}()

	res, err := s.room.Join(ctx, sess.ClientID, hello.Name)
	if err != nil {
		logger.Log.Warnw("join failed", "client", sess.ClientID, "err", err)
		return
	}
	if err := sess.SendJSON(network.MsgTypeWelcome, network.WelcomeMessage{
		ClientID:  uint64(res.ClientID),
		SessionID: sess.GetID(),
		Phase:     res.Phase,
	}); err != nil {
		return
	}
	logger.Log.Infow("new connection", "remote", conn.RemoteAddr(), "session", sess.GetID(), "client", sess.ClientID, "name", hello.Name)

	if first != nil {
		s.handlePacket(ctx, sess, first)
	}
	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(ctx, sess, packet)
	}
}

func (s *GameServer) handlePacket(ctx context.Context, sess *session.Session, packet *network.Packet) {
	sess.Touch()
	if s.metrics != nil {
		s.metrics.IncMessagesReceived()
	}

	id := sess.ClientID
	var cmd any
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		return
	case network.MsgTypeHello, network.MsgTypeSetName:
		var req network.NameRequest
		if !s.decode(sess, packet, &req) {
			return
		}
		cmd = room.SetName{ClientID: id, Name: req.Name}
	case network.MsgTypeReportName:
		var req network.NameRequest
		if !s.decode(sess, packet, &req) {
			return
		}
		cmd = room.ReportName{ClientID: id, Name: req.Name}
	case network.MsgTypeSetReady:
		var req network.ReadyRequest
		if !s.decode(sess, packet, &req) {
			return
		}
		cmd = room.SetReady{ClientID: id, Ready: req.Ready}
	case network.MsgTypePlayAgain:
		cmd = room.PlayAgain{ClientID: id}
	case network.MsgTypeInput:
		var req network.InputRequest
		if !s.decode(sess, packet, &req) {
			return
		}
		cmd = room.Input{ClientID: id, Input: arena.Input{MoveX: req.MoveX, MoveZ: req.MoveZ, Run: req.Run, Jump: req.Jump}}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return
	}

	if err := s.room.Submit(ctx, cmd); err != nil {
		logger.Log.Debugw("intent not delivered", "client", id, "msg", packet.MsgID, "err", err)
	}
}

func (s *GameServer) decode(sess *session.Session, packet *network.Packet, v any) bool {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		sess.SendJSON(network.MsgTypeError, network.ErrorMessage{Error: "malformed message"})
		logger.Log.Debugw("malformed message", "client", sess.ClientID, "msg", packet.MsgID, "err", err)
		return false
	}
	return true
}
