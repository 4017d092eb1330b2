package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"dealdesk/internal/retention"
	"dealdesk/pkg/analysis"
	"dealdesk/pkg/api"
	"dealdesk/pkg/auth"
	"dealdesk/pkg/banner"
	"dealdesk/pkg/config"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/shutdown"
	"dealdesk/pkg/store"
	"dealdesk/pkg/telemetry"
	"dealdesk/pkg/templates"
	"dealdesk/pkg/validation"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, backendKeys, signingKeys, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err, "", 0)
	}

	logger.InitWithLevel(cfg.Logging.Level)

	// flags win over config/env when explicitly provided
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := dbVal
	if !setFlags["db"] && cfg.Storage.DBPath != "" {
		dbPath = cfg.Storage.DBPath
	}

	// contract payload validation rules
	vr := validation.Rules{Types: map[string]string{}, MaxLen: map[string]int{}, Enums: map[string][]string{}}
	vr.Required = append(vr.Required, cfg.Validation.Required...)
	for _, t := range cfg.Validation.Types {
		vr.Types[t.Path] = t.Type
	}
	for _, ml := range cfg.Validation.MaxLen {
		vr.MaxLen[ml.Path] = ml.Max
	}
	for _, e := range cfg.Validation.Enums {
		vr.Enums[e.Path] = append([]string{}, e.Values...)
	}
	for _, wt := range cfg.Validation.WhenThen {
		vr.WhenThen = append(vr.WhenThen, validation.WhenThenRule{
			WhenPath: wt.When.Path,
			Equals:   wt.When.Equals,
			ThenReq:  append([]string{}, wt.Then.Required...),
		})
	}
	validation.SetRules(vr)

	if err := store.Open(dbPath); err != nil {
		shutdown.Abort("failed to open pebble", err, dbPath)
	}

	if err := templates.Seed(); err != nil {
		shutdown.Abort("failed to seed templates", err, dbPath)
	}

	telemetry.SetDir(filepath.Join(dbPath, "state", "telemetry"))
	if cfg.Telemetry.SampleRate > 0 {
		telemetry.SetSampleRate(cfg.Telemetry.SampleRate)
	}
	if d := cfg.Telemetry.SlowRequestThreshold.Duration(); d > 0 {
		telemetry.SetSlowThreshold(d)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	// analysis pipeline: queue + workers
	queueCap := cfg.Analysis.QueueCapacity
	if queueCap <= 0 {
		queueCap = 8 * 1024
	}
	queue := analysis.NewQueue(queueCap)
	analysis.SetDefaultQueue(queue)
	analysis.SetMaxPooledBuffer(int(cfg.Analysis.MaxPooledBufferBytes))

	var scorer analysis.Scorer = analysis.LexiconScorer{}
	if key := cfg.Analysis.Gemini.APIKey; key != "" {
		gs, err := analysis.NewGeminiScorer(ctx, key, cfg.Analysis.Gemini.Model)
		if err != nil {
			shutdown.Abort("failed to init gemini scorer", err, dbPath)
		}
		scorer = gs
		logger.Info("analysis_scorer", "kind", "gemini", "model", cfg.Analysis.Gemini.Model)
	} else {
		logger.Info("analysis_scorer", "kind", "lexicon")
	}

	workers := cfg.Analysis.Workers
	if workers <= 0 {
		workers = 2
	}
	stopWorkers := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analysis.RunWorker(queue, scorer, stopWorkers)
		}()
	}
	logger.Info("analysis_workers_started", "workers", workers, "queue_capacity", queueCap)

	// retention sweeper for soft-deleted contracts
	retention.SetConfig(cfg)
	retCancel, err := retention.Start(ctx, cfg, filepath.Join(dbPath, "state", "retention"))
	if err != nil {
		shutdown.Abort("failed to start retention", err, dbPath)
	}

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.Print(cfg, addr, dbPath, strings.Join(srcs, ", "), verStr)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", api.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())

	secCfg := auth.SecConfig{
		BackendKeys:  map[string]struct{}{},
		FrontendKeys: map[string]struct{}{},
		AdminKeys:    map[string]struct{}{},
	}
	secCfg.AllowedOrigins = append(secCfg.AllowedOrigins, cfg.Security.CORS.AllowedOrigins...)
	if cfg.Security.RateLimit.RPS > 0 {
		secCfg.RPS = cfg.Security.RateLimit.RPS
	}
	if cfg.Security.RateLimit.Burst > 0 {
		secCfg.Burst = cfg.Security.RateLimit.Burst
	}
	if len(cfg.Security.IPWhitelist) > 0 {
		secCfg.IPWhitelist = append(secCfg.IPWhitelist, cfg.Security.IPWhitelist...)
	}
	for k := range backendKeys {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Frontend {
		secCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Admin {
		secCfg.AdminKeys[k] = struct{}{}
	}

	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for k := range backendKeys {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	for k := range signingKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	wrapped := telemetry.Middleware(auth.AuthenticateRequestMiddleware(secCfg)(mux))

	srv := &http.Server{Addr: addr, Handler: wrapped}
	errCh := make(chan error, 1)
	go func() {
		cert := cfg.Server.TLS.CertFile
		key := cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- srv.ListenAndServeTLS(cert, key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server_started", "addr", addr, "tls", cfg.Server.TLS.CertFile != "")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			shutdown.Abort("server failed", err, dbPath, 0)
		}
	case <-ctx.Done():
	}

	// graceful shutdown: stop accepting, drain analysis, close store
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)

	retCancel()
	close(stopWorkers)
	wg.Wait()
	queue.CloseAndDrain()

	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}
