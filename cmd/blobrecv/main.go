package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alxayo/blobxfer/internal/config"
	"github.com/alxayo/blobxfer/internal/logger"
	"github.com/alxayo/blobxfer/internal/metrics"
	"github.com/alxayo/blobxfer/internal/receiver"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "blobrecv")

	listenAddr := cfg.listenAddr
	metricsAddr := cfg.metricsAddr
	var cfgWatcher *config.Watcher
	if cfg.configPath != "" {
		fileCfg, err := config.Load(cfg.configPath)
		if err != nil {
			log.Error("failed to load config file", "path", cfg.configPath, "error", err)
			os.Exit(1)
		}
		store := config.NewStore(fileCfg)
		cfgWatcher, err = config.WatchFile(cfg.configPath, store, func(err error) {
			log.Warn("config reload failed, keeping last-good config", "error", err)
		})
		if err != nil {
			log.Error("failed to watch config file", "path", cfg.configPath, "error", err)
			os.Exit(1)
		}
		defer cfgWatcher.Close()
		if fileCfg.Endpoint != "" {
			listenAddr = fileCfg.Endpoint
		}
		if fileCfg.MetricsAddr != "" {
			metricsAddr = fileCfg.MetricsAddr
		}
		log.Info("watching config file for live reload", "path", cfg.configPath)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewReceiverMetrics(reg)

	cb := receiver.Callbacks{
		OnReady: func(size uint64) bool {
			log.Info("admitting transfer", "size", size)
			return true
		},
		OnInfo: func(text string) {
			log.Info(text)
		},
	}
	if cfg.azureURL != "" {
		sink, err := newAzureSink(cfg.azureURL, cfg.azureContainer, log)
		if err != nil {
			log.Error("failed to initialize azure sink", "error", err)
			os.Exit(1)
		}
		cb.OnComplete = sink.onComplete
	} else {
		cb.OnComplete = func(senderID string, data []byte) {
			log.Info("transfer complete", "sender_id", senderID, "bytes", len(data))
		}
	}

	r, err := receiver.New(listenAddr, 0, cb, m)
	if err != nil {
		log.Error("failed to bind receiver", "error", err)
		os.Exit(1)
	}
	log.Info("receiver listening", "addr", r.Addr(), "version", version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	stop := make(chan struct{})
	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(stop) }()

	ctx, cancelSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelSig()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		close(stop)
		<-runDone
	case err := <-runDone:
		if err != nil {
			log.Error("receiver loop exited with error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := r.Close(); err != nil {
		log.Error("receiver close error", "error", err)
		os.Exit(1)
	}
	log.Info("receiver stopped cleanly")
}
