package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"pnf-systemv1/config"
	"pnf-systemv1/internal/bus"
	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/engine"
	"pnf-systemv1/internal/export"
	"pnf-systemv1/internal/gateway"
	"pnf-systemv1/internal/indicator"
	"pnf-systemv1/internal/ingest"
	"pnf-systemv1/internal/logger"
	"pnf-systemv1/internal/metrics"
	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/notification"
	"pnf-systemv1/internal/resample"
	redisstore "pnf-systemv1/internal/store/redis"
	sqlitestore "pnf-systemv1/internal/store/sqlite"
)

func main() {
	// .env is optional; config comes from YAML + environment.
	godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[pnfengine] %v", err)
	}

	logger.Init("pnfengine", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting",
		"symbols", cfg.Symbols,
		"source", cfg.Source.Mode,
		"construction", cfg.Chart.Construction,
		"box_mode", cfg.Chart.BoxMode,
		"box_param", cfg.Chart.BoxParam,
		"reversal", cfg.Chart.Reversal,
	)

	// ---- Chart engine ----
	construction, boxMode, err := cfg.Chart.Modes()
	if err != nil {
		log.Fatalf("[pnfengine] chart config: %v", err)
	}
	runner, err := engine.New(engine.Config{
		Construction: construction,
		BoxMode:      boxMode,
		BoxParam:     cfg.Chart.BoxParam,
		Reversal:     cfg.Chart.Reversal,
	})
	if err != nil {
		log.Fatalf("[pnfengine] %v", err)
	}

	// ---- Pipeline channels ----
	rawCh := make(chan model.Observation, 10000)
	engineCh := make(chan model.Observation, 10000)
	sqliteObsCh := make(chan model.Observation, 5000)
	eventCh := make(chan model.ChartEvent, 5000)
	fanoutCh := make(chan model.ChartEvent, 5000)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Symbols)
	health.SetLiveSource(cfg.Source.Mode == "binance")
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	runner.OnProcessed = func(symbol string, changed bool, took time.Duration) {
		prom.ObservationsTotal.Inc()
		if !changed {
			prom.UnchangedTotal.Inc()
		}
		prom.ProcessDur.Observe(took.Seconds())
	}
	runner.OnDroppedEvent = func() {
		prom.FanoutDropsTotal.WithLabelValues("engine_out").Inc()
	}

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite writer (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[pnfengine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(events int, took time.Duration) {
		prom.SQLiteCommitDur.Observe(took.Seconds())
	}
	health.SetSQLiteOK(true)

	// ---- Redis writer behind a circuit breaker ----
	var redisWriter *redisstore.Writer
	var buffered *redisstore.BufferedWriter
	redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, continuing without it", "err", err)
		redisWriter = nil
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		redisWriter.OnWrite = func(took time.Duration) {
			prom.RedisWriteDur.Observe(took.Seconds())
		}
		cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
			slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		}
		buffered = redisstore.NewBufferedWriter(ctx, redisWriter, cb, 10000)
		buffered.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
	}

	// ---- Periodic liveness checks ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Restore charts from the last snapshot (live mode only; CSV
	// replay always starts fresh) ----
	resumeAfter := make(map[string]time.Time)
	if cfg.Source.Mode == "binance" {
		sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			slog.Warn("snapshot restore skipped", "err", err)
		} else {
			for _, sym := range cfg.Symbols {
				snap, err := sqlReader.ReadLatestSnapshot(sym)
				if err != nil || snap == nil {
					continue
				}
				if err := runner.Restore(sym, snap); err != nil {
					slog.Warn("snapshot restore", "symbol", sym, "err", err)
					continue
				}
				resumeAfter[sym] = snap.LastProcessed
				slog.Info("chart restored", "symbol", sym,
					"columns", len(snap.Columns), "as_of", snap.LastProcessed)
			}
			sqlReader.Close()
		}
	}

	// ---- Event fan-out: sqlite / redis / websocket hub ----
	fanout := bus.New(5000)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	sqliteEvCh := fanout.Subscribe()
	var redisEvCh <-chan model.ChartEvent
	if buffered != nil {
		redisEvCh = fanout.Subscribe()
	}
	hubCh := fanout.Subscribe()

	// ---- Signal alerts (optional) ----
	var alerter *notification.Alerter
	var alertCh <-chan model.ChartEvent
	if cfg.AlertWebhookURL != "" || cfg.TelegramBotToken != "" {
		var backends []notification.Notifier
		if cfg.AlertWebhookURL != "" {
			backends = append(backends, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
		}
		if cfg.TelegramBotToken != "" {
			backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		}
		alerter = notification.NewAlerter(backends...)
		alertCh = fanout.Subscribe()
		slog.Info("signal alerts enabled", "backends", len(backends))
	}

	// Count events by type on their way into the fan-out.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-eventCh:
				if !ok {
					return
				}
				switch ev.Type {
				case model.EventColumn:
					prom.ColumnsTotal.WithLabelValues(ev.Kind).Inc()
					if ev.ColumnIdx > 0 {
						prom.ReversalsTotal.Inc()
					}
				case model.EventSignal:
					prom.SignalsTotal.WithLabelValues(ev.Kind).Inc()
				case model.EventPattern:
					prom.PatternsTotal.WithLabelValues(ev.Kind).Inc()
				}
				select {
				case fanoutCh <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	go fanout.Run(ctx, fanoutCh)

	go sqlWriter.Run(ctx, sqliteEvCh)
	go sqlWriter.RunObservations(ctx, sqliteObsCh)
	if buffered != nil && redisEvCh != nil {
		go buffered.Run(redisEvCh)
	}
	if alerter != nil {
		go alerter.Run(ctx, alertCh)
	}

	// ---- Websocket hub (in-process gateway) ----
	processStart := time.Now()
	hub := gateway.NewHub(cfg.ReplayDepth)
	go hub.Run(ctx, hubCh)
	go hub.StartMetricsBroadcast(ctx, processStart)

	// ---- Channel saturation sampler ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i, s := range fanout.ChannelStats() {
					if s.Cap > 0 {
						pct := float64(s.Len) / float64(s.Cap) * 100
						prom.ChannelSaturationPct.WithLabelValues("fanout_" + strconv.Itoa(i)).Set(pct)
					}
				}
				prom.ChannelSaturationPct.WithLabelValues("engine_in").
					Set(float64(len(engineCh)) / float64(cap(engineCh)) * 100)
				prom.ReplayRingOverflow.Set(float64(hub.ReplayOverflow()))
			}
		}
	}()

	wsMux := http.NewServeMux()
	gateway.RegisterRoutes(wsMux, hub, nil, cfg.Symbols, processStart)
	wsSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: wsMux}
	go func() {
		slog.Info("gateway listening", "addr", cfg.GatewayAddr)
		if err := wsSrv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("gateway server", "err", err)
		}
	}()

	// ---- Observation pump: health/lag bookkeeping, then engine +
	// best-effort raw persistence ----
	obsCh := rawCh
	if cfg.Resample != "" {
		period, _ := config.ParsePeriod(cfg.Resample)
		rs, err := resample.New(period)
		if err != nil {
			log.Fatalf("[pnfengine] resample: %v", err)
		}
		rs.OnDrop = func() { prom.LateObservations.Inc() }
		resampledCh := make(chan model.Observation, 10000)
		go rs.Run(ctx, rawCh, resampledCh)
		obsCh = resampledCh
		slog.Info("resampling enabled", "period", period.String())
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case o, ok := <-obsCh:
				if !ok {
					slog.Info("observation stream ended")
					return
				}
				health.SetLastObservationTime(o.Time)
				prom.ObservationLag.Set(time.Since(o.Time).Seconds())
				select {
				case engineCh <- o:
				case <-ctx.Done():
					return
				}
				select {
				case sqliteObsCh <- o:
				default:
				}
			}
		}
	}()

	go runner.Run(ctx, engineCh, eventCh)

	// ---- Scheduled jobs: snapshots + XLSX export ----
	excel := export.NewExcelWriter(cfg.ExportDir)
	crn := cron.New()
	if _, err := crn.AddFunc(cfg.SnapshotCron, func() {
		saveSnapshots(ctx, runner, sqlWriter, redisWriter)
	}); err != nil {
		log.Fatalf("[pnfengine] snapshot cron %q: %v", cfg.SnapshotCron, err)
	}
	if _, err := crn.AddFunc(cfg.ExportCron, func() {
		exportCharts(runner, excel)
	}); err != nil {
		log.Fatalf("[pnfengine] export cron %q: %v", cfg.ExportCron, err)
	}
	crn.Start()
	slog.Info("cron started", "snapshot", cfg.SnapshotCron, "export", cfg.ExportCron)

	// ---- Observation source ----
	switch cfg.Source.Mode {
	case "csv":
		go replayCSV(ctx, cfg, rawCh)
	case "binance":
		for _, sym := range cfg.Symbols {
			go streamBinance(ctx, sym, cfg, rawCh, resumeAfter[sym], health, prom)
		}
	case "sim":
		for _, sym := range cfg.Symbols {
			go streamSim(ctx, sym, cfg, rawCh)
		}
	}

	slog.Info("pipeline ready")

	// ---- Wait for shutdown ----
	<-sigCh
	slog.Info("shutdown signal received")

	<-crn.Stop().Done()
	cancel()

	// Give pipeline goroutines time to flush their batches.
	time.Sleep(1 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	saveSnapshots(shutdownCtx, runner, sqlWriter, redisWriter)

	wsSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if redisWriter != nil {
		redisWriter.Close()
	}
	slog.Info("shutdown complete")
}

// saveSnapshots persists every live chart and refreshes the Redis
// summary. Snapshots are taken under the chart lock; writes happen
// outside it.
func saveSnapshots(ctx context.Context, runner *engine.Runner, sqlWriter *sqlitestore.Writer, redisWriter *redisstore.Writer) {
	start := time.Now()
	saved := 0
	for _, sym := range runner.Symbols() {
		var snap *chart.Snapshot
		var summary string
		runner.WithChart(sym, func(c *chart.Chart, s *indicator.Suite) {
			snap = c.Snapshot()
			summary = s.Summary()
		})
		if snap == nil || len(snap.Columns) == 0 {
			continue
		}
		if err := sqlWriter.SaveSnapshot(sym, snap); err != nil {
			slog.Warn("snapshot save", "symbol", sym, "err", err)
			continue
		}
		if redisWriter != nil {
			if err := redisWriter.WriteSummary(ctx, sym, summary); err != nil {
				slog.Warn("summary write", "symbol", sym, "err", err)
			}
		}
		saved++
	}
	if saved > 0 {
		slog.Info("snapshots saved", "charts", saved,
			"took", time.Since(start).Round(time.Millisecond).String())
	}
}

// exportCharts writes one XLSX grid per live chart. Each chart is
// rebuilt from a snapshot first so the file write never holds the
// chart lock.
func exportCharts(runner *engine.Runner, excel *export.ExcelWriter) {
	for _, sym := range runner.Symbols() {
		var snap *chart.Snapshot
		runner.WithChart(sym, func(c *chart.Chart, _ *indicator.Suite) {
			snap = c.Snapshot()
		})
		if snap == nil || len(snap.Columns) == 0 {
			continue
		}
		detached, err := chart.Restore(snap)
		if err != nil {
			slog.Warn("export restore", "symbol", sym, "err", err)
			continue
		}
		path, err := excel.Write(detached, sym+".xlsx")
		if err != nil {
			slog.Warn("export write", "symbol", sym, "err", err)
			continue
		}
		slog.Info("chart exported", "symbol", sym, "path", path)
	}
}

// replayCSV feeds <CSVDir>/<SYMBOL>.csv files through the pipeline,
// symbol by symbol, and closes the channel when done so the resampler
// can flush its tail bars.
func replayCSV(ctx context.Context, cfg *config.Config, out chan<- model.Observation) {
	defer close(out)
	total, skipped := 0, 0
	for _, sym := range cfg.Symbols {
		path := filepath.Join(cfg.Source.CSVDir, sym+".csv")
		loader := ingest.NewCSVLoader(path, sym)
		obs, err := loader.Load()
		if err != nil {
			slog.Error("csv load", "symbol", sym, "path", path, "err", err)
			continue
		}
		for _, o := range obs {
			select {
			case out <- o:
			case <-ctx.Done():
				return
			}
		}
		total += len(obs)
		skipped += loader.Skipped()
	}
	slog.Info("csv replay complete", "observations", total, "skipped_rows", skipped)
}

// streamBinance warms a symbol up over REST, then streams closed klines
// until shutdown, reconnecting with a fixed delay. Warmup observations
// at or before resumeAfter are already in the restored chart and are
// skipped.
func streamBinance(ctx context.Context, symbol string, cfg *config.Config, out chan<- model.Observation, resumeAfter time.Time, health *metrics.HealthStatus, prom *metrics.Metrics) {
	feed := ingest.NewBinanceFeed(ingest.BinanceConfig{
		Symbol:      symbol,
		Interval:    cfg.Source.Interval,
		WarmupLimit: cfg.Source.WarmupLimit,
	})
	feed.OnDisconnect = func() { health.SetWSConnected(false) }

	warm, err := feed.Warmup(ctx)
	if err != nil {
		slog.Warn("warmup failed, streaming from live only", "symbol", symbol, "err", err)
	}
	fed := 0
	for _, o := range warm {
		if !o.Time.After(resumeAfter) {
			continue
		}
		select {
		case out <- o:
			fed++
		case <-ctx.Done():
			return
		}
	}
	slog.Info("warmup complete", "symbol", symbol, "klines", fed)

	for {
		health.SetWSConnected(true)
		err := feed.Stream(ctx, out)
		health.SetWSConnected(false)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("kline stream ended, reconnecting", "symbol", symbol, "err", err)
		prom.WSReconnects.Inc()
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

// streamSim backfills a synthetic random walk and keeps emitting bars
// until shutdown. No credentials, no network.
func streamSim(ctx context.Context, symbol string, cfg *config.Config, out chan<- model.Observation) {
	interval, _ := config.ParsePeriod(cfg.Source.Interval) // validated at load
	feed := ingest.NewSimFeed(ingest.SimConfig{
		Symbol:   symbol,
		Interval: interval,
	})

	warm := feed.Warmup(cfg.Source.WarmupLimit)
	for _, o := range warm {
		select {
		case out <- o:
		case <-ctx.Done():
			return
		}
	}
	slog.Info("warmup complete", "symbol", symbol, "bars", len(warm))

	feed.Stream(ctx, out)
}
