package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/models"
	"github.com/wfunc/herdparty/network"
)

const callTimeout = 2 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers every receiver under its type name.
func NewServer(addr string, receivers ...any) (*Server, error) {
	srv := rpc.NewServer()
	for _, r := range receivers {
		if err := srv.Register(r); err != nil {
			return nil, fmt.Errorf("register rpc receiver: %w", err)
		}
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start begins listening for RPC requests and returns once the listener is closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Serve runs Start until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		s.Stop()
	case <-done:
	}
	<-done
	return nil
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

type Snapshotter interface {
	Snapshot(ctx context.Context) (network.WorldSnapshot, error)
}

type RoundLoader interface {
	Load(ctx context.Context, roundID string) (models.RoundRecord, error)
}

// AdminService is the struct that exposes RPC methods.
type AdminService struct {
	room   Snapshotter
	rounds RoundLoader
}

// NewAdminService creates a new AdminService. rounds may be nil when no archive is configured.
func NewAdminService(room Snapshotter, rounds RoundLoader) *AdminService {
	return &AdminService{room: room, rounds: rounds}
}

// SnapshotArgs names the caller for the log; gob cannot encode an empty struct.
type SnapshotArgs struct {
	Caller string
}

type SnapshotReply struct {
	Snapshot network.WorldSnapshot
}

// Snapshot returns the current world state as seen by the room goroutine.
func (a *AdminService) Snapshot(args *SnapshotArgs, reply *SnapshotReply) error {
	logger.Log.Debugw("admin snapshot", "caller", args.Caller)
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	s, err := a.room.Snapshot(ctx)
	if err != nil {
		return err
	}
	reply.Snapshot = s
	return nil
}

type RoundArgs struct {
	RoundID string
}

type RoundReply struct {
	Round models.RoundRecord
}

// Round returns an archived round.
func (a *AdminService) Round(args *RoundArgs, reply *RoundReply) error {
	if a.rounds == nil {
		return errors.New("round archive disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	rec, err := a.rounds.Load(ctx, args.RoundID)
	if err != nil {
		return err
	}
	reply.Round = rec
	return nil
}
