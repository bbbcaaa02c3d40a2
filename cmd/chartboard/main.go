package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chartboard/internal/config"
	"chartboard/internal/feed"
	"chartboard/internal/metrics"
	"chartboard/internal/metrics/datadog"
	"chartboard/internal/server"
)

// main is the entry point for the chartboard server. It loads the
// service config, optionally initializes a metrics backend and the feed
// poller, and serves the API until interrupted.
func main() {
	var (
		cfgPath           string
		listenFlg         string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "service config JSON path (empty uses defaults)")
	flag.StringVar(&listenFlg, "listen", "", "listen address (overrides config)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	var (
		cfg config.Service
		err error
	)
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
	} else {
		cfg.Normalize()
	}
	if listenFlg != "" {
		cfg.Listen = listenFlg
	}

	issues := config.ValidateService(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default off.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			ServiceName: "chartboard",
			Tags:        extraTags,
			FlushEvery:  60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
			metrics.SetBackend(b)
			// Close() stops the flush loop and performs a final Flush().
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	var src server.VehicleSource
	if cfg.Feed.URL != "" {
		p := feed.NewPoller(cfg.Feed)
		defer p.Close()
		src = p
		if *verbose {
			log.Printf("feed: polling %s every %ds (mode=%s)", cfg.Feed.URL, cfg.Feed.IntervalSeconds, cfg.Feed.Mode)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(cfg, src).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
