package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ringctl/internal/bucket"
	"github.com/danmuck/ringctl/internal/fabric"
	"github.com/danmuck/ringctl/internal/observability"
	"github.com/danmuck/ringctl/internal/ring"
	"github.com/danmuck/ringctl/internal/server"
	"github.com/danmuck/ringctl/internal/statefile"
)

func main() {
	configPath := flag.String("config", "", "path to the node config (toml)")
	memPeers := flag.Int("mem", 0, "run an in-memory demo ring with N peers instead of serving")
	flag.Parse()

	cfg := defaultNodeConfig()
	if *configPath != "" {
		loaded, err := loadNodeConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ringctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := observability.InitLogger("ringctl", cfg.LogLevel)

	if *memPeers > 0 {
		if err := runMemDemo(*memPeers, cfg, logger); err != nil {
			logger.Fatal().Err(err).Msg("demo ring failed")
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("ringctl stopped")
	}
}

func run(cfg nodeConfig, logger zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := statefile.Load(cfg.StatePath)
	if err != nil {
		return err
	}
	stDelay, err := st.DelayDuration()
	if err != nil {
		return err
	}

	settings := ring.NewSettings(logger)
	settings.OnChange(func(maxCycles *int, delay time.Duration) {
		next := statefile.State{MaxCycles: maxCycles}.WithDelay(delay)
		if err := statefile.Save(cfg.StatePath, next); err != nil {
			logger.Error().Err(err).Str("path", cfg.StatePath).Msg("state save failed")
		}
	})

	store := bucket.NewStore(cfg.ID)
	transport := fabric.NewTCP(fabric.TCPConfig{
		Self:       cfg.ID,
		ListenAddr: cfg.FabricAddr,
		Peers:      cfg.Peers,
		Logger:     logger,
	}, store)

	recorder := &server.StatusRecorder{}
	engine := ring.NewEngine(ring.Config{
		Self:     cfg.ID,
		Peers:    store.Peers,
		Publish:  transport.Publish,
		Settings: settings,
		Logger:   logger,
		OnStatus: recorder.Record,
	})
	loop := fabric.NewLoop(cfg.ID, engine, settings, logger)
	store.Subscribe(func(ch bucket.Change) {
		loop.TokenArrived(ch.Peer, ch.Record.Token)
	})

	if err := transport.Start(ctx); err != nil {
		return err
	}
	go loop.Run(ctx)

	// Seed the tunable cache: persisted state first, explicit config file
	// values take precedence.
	maxCycles := st.MaxCycles
	delay := stDelay
	if cfg.MaxCycles != nil {
		maxCycles = cfg.MaxCycles
	}
	if cfg.Delay > 0 {
		delay = cfg.Delay
	}
	loop.ConfigChanged(maxCycles, delay)

	srv := server.New(server.Config{
		Node:        cfg.ID,
		CorsOrigins: cfg.CorsOrigins,
		Control:     loop,
		Status:      recorder,
		Peers:       store.Peers,
		Logger:      logger,
	})
	logger.Info().
		Str("id", cfg.ID).
		Str("http_addr", cfg.HTTPAddr).
		Str("fabric_addr", cfg.FabricAddr).
		Int("peers", len(cfg.Peers)).
		Msg("ring peer started")
	return srv.Serve(cfg.HTTPAddr)
}

// runMemDemo wires N peers over the in-memory hub, injects a token at the
// first peer, and waits for the ring to halt.
func runMemDemo(n int, cfg nodeConfig, logger zerolog.Logger) error {
	if n < 2 {
		return fmt.Errorf("demo ring needs at least 2 peers")
	}
	limit := 3
	if cfg.MaxCycles != nil {
		limit = *cfg.MaxCycles
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub := fabric.NewHub()
	recorders := make([]*server.StatusRecorder, n)
	var first *fabric.Loop
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ring-%d", i)
		peerLogger := logger.With().Str("peer", id).Logger()
		port, err := hub.Join(id)
		if err != nil {
			return err
		}
		settings := ring.NewSettings(peerLogger)
		settings.Update(&limit, cfg.Delay)
		recorder := &server.StatusRecorder{}
		recorders[i] = recorder
		engine := ring.NewEngine(ring.Config{
			Self:     id,
			Peers:    port.Peers,
			Publish:  port.Publish,
			Settings: settings,
			Logger:   peerLogger,
			OnStatus: recorder.Record,
		})
		loop := fabric.NewLoop(id, engine, settings, peerLogger)
		port.Store().Subscribe(func(ch bucket.Change) {
			loop.TokenArrived(ch.Peer, ch.Record.Token)
		})
		go loop.Run(ctx)
		if i == 0 {
			first = loop
		}
	}

	logger.Info().Int("peers", n).Int("max_cycles", limit).Msg("demo ring running")
	first.Inject("hello")

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("demo ring did not halt: %w", ctx.Err())
		case <-ticker.C:
			state, line := recorders[0].Snapshot()
			if state == ring.StateHalted {
				logger.Info().Str("status", line).Msg("demo ring halted")
				return nil
			}
		}
	}
}
