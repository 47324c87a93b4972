package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/herdparty/broadcast"
	"github.com/wfunc/herdparty/config"
	"github.com/wfunc/herdparty/journal"
	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/monitor"
	"github.com/wfunc/herdparty/persistence"
	"github.com/wfunc/herdparty/room"
	"github.com/wfunc/herdparty/rpc"
	"github.com/wfunc/herdparty/server"
	"github.com/wfunc/herdparty/services"
	"github.com/wfunc/herdparty/session"
	"github.com/wfunc/herdparty/state"
)

func main() {
	configDir := flag.String("config", "config", "directory holding config.yaml")
	flag.Parse()

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	layout, err := cfg.Layout()
	if err != nil {
		logger.Log.Fatalf("Failed to load arena layout: %v", err)
	}

	// Round archive
	db, err := persistence.Open(cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		logger.Log.Fatalf("Failed to open round archive: %v", err)
	}
	rounds := services.NewRoundService(db, cfg.Archive.QueueSize, cfg.Archive.WriteTimeout)
	defer func() {
		if err := rounds.Close(); err != nil {
			logger.Log.Warnw("failed to close round archive", "err", err)
		}
	}()
	logger.Log.Infow("round archive ready", "driver", cfg.Archive.Driver)

	// Event journal
	var recorder broadcast.Recorder
	var journalWriter *journal.Writer
	if cfg.Journal.Dir != "" {
		var skip []string
		if cfg.Journal.SkipSnapshots {
			skip = append(skip, "snapshot")
		}
		journalWriter = journal.NewWriter(cfg.Journal.Dir, "events", nil, skip...)
		recorder = journalWriter
		defer journalWriter.Close()
	}

	mon := monitor.NewMonitor("herdparty", prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	sessions := session.NewManager()
	bc := broadcast.NewSessionBroadcaster(sessions, recorder)

	gameRoom := room.New(cfg.Room(layout), room.Deps{
		Broadcaster: bc,
		Metrics:     mon,
		OnRoundEnd: func(s state.RoundSummary) {
			rounds.Enqueue(s)
			if journalWriter != nil {
				journalWriter.RecordRound(s)
			}
		},
	})

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, gameRoom, sessions, server.Options{
		Heartbeat:      cfg.Server.HeartbeatInterval,
		Metrics:        mon,
		MetricsHandler: mon.Handler(),
	})

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(gameRoom, rounds))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	health, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create health server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		health.SetServing(true)
		defer health.SetServing(false)
		return gameRoom.Run(ctx)
	})
	g.Go(func() error { return gameServer.Serve(ctx) })
	g.Go(func() error { return rpcServer.Serve(ctx) })
	g.Go(func() error { return health.Serve(ctx) })

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := g.Wait(); err != nil {
		logger.Log.Errorw("server stopped with error", "err", err)
	}
	logger.Log.Info("server stopped")
}
