package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alxayo/blobxfer/internal/logger"
	"github.com/alxayo/blobxfer/internal/sender"
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
	log := logger.Logger().With("component", "blobsend")

	data, err := os.ReadFile(cfg.filePath)
	if err != nil {
		log.Error("failed to read file", "path", cfg.filePath, "error", err)
		os.Exit(1)
	}

	res, err := sender.SendBlob(context.Background(), []byte(cfg.blobID), data, sender.Options{
		Endpoint:   cfg.endpoint,
		Timeout:    cfg.timeout,
		Consistent: cfg.consistent,
		OnProgress: func(text string) {
			log.Info(text)
		},
	})
	if err != nil {
		log.Error("transfer failed", "error", err)
		os.Exit(1)
	}

	log.Info("transfer complete", "bytes_sent", len(data))
	if cfg.consistent {
		log.Info("consistent-mode result", "bytes", len(res.ConsistentBytes))
	}
}
