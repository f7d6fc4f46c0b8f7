package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

var version = "dev"

type cliConfig struct {
	endpoint    string
	blobID      string
	filePath    string
	timeout     time.Duration
	logLevel    string
	consistent  bool
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("blobsend", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.endpoint, "endpoint", "", "Receiver endpoint (tcp://host:port or ipc://path)")
	fs.StringVar(&cfg.blobID, "blob-id", "", "Application tag identifying this blob")
	fs.StringVar(&cfg.filePath, "file", "", "Path to the file to send")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "Overall transfer deadline")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.consistent, "consistent", false, "Request the consistent-mode tail reply")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.showVersion {
		return cfg, nil
	}
	if cfg.endpoint == "" {
		return nil, errors.New("-endpoint is required")
	}
	if cfg.blobID == "" {
		return nil, errors.New("-blob-id is required")
	}
	if cfg.filePath == "" {
		return nil, errors.New("-file is required")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	return cfg, nil
}
