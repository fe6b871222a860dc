// pnfserver serves chart events over websocket and REST without running
// the charting engine itself: it follows the Redis pubsub feed written
// by pnfengine, primes its replay buffers from the event streams, and
// fans out to browser clients.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pnf-systemv1/config"
	"pnf-systemv1/internal/gateway"
	"pnf-systemv1/internal/logger"
	"pnf-systemv1/internal/model"
	redisstore "pnf-systemv1/internal/store/redis"
)

func main() {
	godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[pnfserver] %v", err)
	}

	logger.Init("pnfserver", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", "symbols", cfg.Symbols, "addr", cfg.GatewayAddr)

	reader, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("[pnfserver] redis: %v", err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processStart := time.Now()
	hub := gateway.NewHub(cfg.ReplayDepth)

	// Prime the replay rings and latest cache from the persisted streams
	// so clients connecting right away still get history.
	seedCtx, seedCancel := context.WithTimeout(ctx, 10*time.Second)
	seeded := 0
	for _, sym := range cfg.Symbols {
		events, err := reader.RecentEvents(seedCtx, sym, int64(cfg.ReplayDepth))
		if err != nil {
			slog.Warn("replay seed", "symbol", sym, "err", err)
			continue
		}
		for _, ev := range events {
			hub.Seed(ev)
		}
		seeded += len(events)
	}
	seedCancel()
	slog.Info("replay primed", "events", seeded)

	// Live events arrive over pubsub.
	eventCh := make(chan model.ChartEvent, 5000)
	go func() {
		if err := reader.SubscribeEvents(ctx, eventCh); err != nil && ctx.Err() == nil {
			slog.Error("pubsub subscription ended", "err", err)
		}
	}()
	go hub.Run(ctx, eventCh)
	go hub.StartMetricsBroadcast(ctx, processStart)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, reader, cfg.Symbols, processStart)
	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("serving", "addr", cfg.GatewayAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[pnfserver] server error: %v", err)
		}
	}()

	<-sigCh
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	slog.Info("shutdown complete")
}
