package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/persistence/indexdb"
	persistlog "navmotion.ai/internal/persistence/log"
	"navmotion.ai/internal/sim/boot"
	"navmotion.ai/internal/sim/tuning"
	"navmotion.ai/internal/sim/world"
	"navmotion.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "grid layout fixing the tile grid (default: <configs>/layout.yaml)")
		tilesDir   = flag.String("tiles", "", "directory of baked .navtile.zst files (default: bake the layout in memory)")
		scenario   = flag.String("scenario", "", "scenario file (default: <configs>/scenario.yaml)")
		wpYAML     = flag.String("waypoints", "", "waypoint yaml imported on start (default: <configs>/waypoints.yaml)")
		logLevel   = flag.String("log_level", "", "override tuning logging.level")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite movement index")
		loopback   = flag.Bool("observer_loopback_only", false, "accept observers from loopback addresses only")
	)
	flag.Parse()

	in := boot.Inputs{
		ConfigDir:     *configDir,
		TuningPath:    strings.TrimSpace(*tuningPath),
		LayoutPath:    strings.TrimSpace(*layoutPath),
		TilesDir:      strings.TrimSpace(*tilesDir),
		ScenarioPath:  strings.TrimSpace(*scenario),
		WaypointsYAML: strings.TrimSpace(*wpYAML),
	}.Resolve()

	// The log config lives in tuning, so read it once before anything logs.
	logCfg := tuning.Defaults().Logging
	if t, err := tuning.Load(in.TuningPath); err == nil {
		logCfg = t.Logging
	}
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("server")

	ctx, cancel := signalContext()
	defer cancel()

	in.WaypointsDB = filepath.Join(*dataDir, "waypoints.db")
	rt, err := boot.Build(ctx, in, logger)
	if err != nil {
		logger.Fatal("build world", zap.Error(err))
	}
	defer rt.Close()
	w := rt.World

	worldDir := filepath.Join(*dataDir, "worlds", w.ID())
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatal("data dir", zap.Error(err))
	}

	mirror, err := openArchiveMirror(*dataDir, w.ID(), logger)
	if err != nil {
		logger.Fatal("archive mirror", zap.Error(err))
	}
	var logOpts []persistlog.Option
	if mirror != nil {
		defer mirror.Close()
		logOpts = append(logOpts, persistlog.WithOnClose(mirror.Enqueue))
	}

	tickLog := persistlog.NewTickLogger(worldDir, logOpts...)
	launchLog := persistlog.NewLaunchLogger(worldDir, logOpts...)
	defer tickLog.Close()
	defer launchLog.Close()
	sinks := []world.TickLogger{tickLog, launchLog}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"), logger.Named("indexdb"))
		if err != nil {
			logger.Fatal("open movement index", zap.Error(err))
		}
		defer idx.Close()
		if err := idx.UpsertTuning(ctx, rt.Tuning); err != nil {
			logger.Warn("record tuning", zap.Error(err))
		}
		sinks = append(sinks, idx)
	}
	w.SetTickLogger(persistlog.Tee(sinks...))

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", zap.Error(err))
		}
	}()

	obs := ws.NewServer(w, logger.Named("ws"))
	obs.LoopbackOnly = *loopback

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx, mirror))
	mux.HandleFunc("/v1/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observe", obs.Handler())
	if envBool("NM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Debug("pprof endpoints disabled (NM_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", *addr), zap.String("world", w.ID()), zap.Int("units", w.UnitCount()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
	cancel()
	<-worldDone
	logger.Info("stopped", zap.Uint64("tick", w.CurrentTick()))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
