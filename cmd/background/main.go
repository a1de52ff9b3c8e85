package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/you/extraneous/internal/background"
	"github.com/you/extraneous/internal/config"
	"github.com/you/extraneous/internal/dearrow"
	"github.com/you/extraneous/internal/router"
	"github.com/you/extraneous/internal/store"
)

const serverShutdownTimeout = 5 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		httpAddr      string
		dbPath        string
		sessionCap    int
		thumbnailURL  string
		brandingURL   string
		configFile    string
		httpRateRPS   int
		httpRateBurst int
		httpMetrics   bool
	)

	flag.StringVar(&httpAddr, "http-addr", "", "Channel/metrics listen address (e.g., 127.0.0.1:8427)")
	flag.StringVar(&dbPath, "sqlite", "", "Path to SQLite database file")
	flag.IntVar(&sessionCap, "session-cap", 0, "Maximum session cache entries")
	flag.StringVar(&thumbnailURL, "thumbnail-url", "", "DeArrow thumbnail service base URL")
	flag.StringVar(&brandingURL, "branding-url", "", "DeArrow branding service base URL")
	flag.StringVar(&configFile, "config-file", "", "JSON extension-config override file to load and watch")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 0, "Maximum HTTP requests per second per client")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 0, "Burst size for HTTP rate limiter")
	flag.BoolVar(&httpMetrics, "http-metrics", true, "Expose Prometheus metrics endpoint")
	flag.Parse()

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	settings := config.LoadSettings()
	if overrides["http-addr"] {
		settings.HTTPAddr = strings.TrimSpace(httpAddr)
	}
	if overrides["sqlite"] {
		settings.SQLitePath = strings.TrimSpace(dbPath)
	}
	if overrides["session-cap"] {
		settings.SessionCap = sessionCap
	}
	if overrides["thumbnail-url"] {
		settings.ThumbnailBaseURL = strings.TrimRight(strings.TrimSpace(thumbnailURL), "/")
	}
	if overrides["branding-url"] {
		settings.BrandingBaseURL = strings.TrimRight(strings.TrimSpace(brandingURL), "/")
	}
	if overrides["config-file"] {
		settings.ConfigFile = strings.TrimSpace(configFile)
	}
	if overrides["http-rate-rps"] {
		settings.RateRPS = httpRateRPS
	}
	if overrides["http-rate-burst"] {
		settings.RateBurst = httpRateBurst
	}
	if overrides["http-metrics"] {
		settings.Metrics = httpMetrics
	}

	log.Printf("settings: %s", settings.SummaryJSON())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	durable, err := store.OpenDurable(settings.SQLitePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer durable.Close()

	extCfg, err := config.Load(ctx, durable)
	if err != nil {
		log.Fatalf("load extension config: %v", err)
	}
	holder := background.NewConfigHolder(extCfg)

	if settings.ConfigFile != "" {
		if err := background.LoadOverrideFile(ctx, durable, holder, settings.ConfigFile); err != nil {
			slog.Warn("config override not applied", "path", settings.ConfigFile, "err", err)
		}
		if err := background.WatchConfigFile(ctx, durable, holder, settings.ConfigFile); err != nil {
			slog.Warn("config watch not started", "path", settings.ConfigFile, "err", err)
		}
	}

	session := store.NewSession(settings.SessionCap)
	metrics := router.NewMetrics()

	resolver := dearrow.NewResolver(session)
	resolver.ThumbnailBase = settings.ThumbnailBaseURL
	resolver.BrandingBase = settings.BrandingBaseURL
	resolver.Observer = metrics

	handler := &router.Handler{
		Store:    durable,
		Resolver: resolver,
		Config:   holder.Current,
		Metrics:  metrics,
	}

	server := router.NewServer(handler, router.Options{
		Addr:      settings.HTTPAddr,
		RateRPS:   settings.RateRPS,
		RateBurst: settings.RateBurst,
		Metrics:   settings.Metrics,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
