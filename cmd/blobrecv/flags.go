package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

var version = "dev"

type cliConfig struct {
	configPath     string
	listenAddr     string
	logLevel       string
	metricsAddr    string
	azureURL       string // optional: storage account URL for the Azure on_complete sink
	azureContainer string
	showVersion    bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("blobrecv", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.configPath, "config", "", "Path to a YAML config file (optional; its endpoint and metrics_addr, when set, override -listen and -metrics-addr)")
	fs.StringVar(&cfg.listenAddr, "listen", "tcp://*:5560", "Transport endpoint to bind (tcp://host:port or ipc://path)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", ":9090", "HTTP address to serve /metrics on")
	fs.StringVar(&cfg.azureURL, "azure-account-url", "", "Azure Storage account URL, e.g. https://acct.blob.core.windows.net (optional)")
	fs.StringVar(&cfg.azureContainer, "azure-container", "", "Azure Blob Storage container name to upload completed blobs to (required if -azure-account-url is set)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.listenAddr == "" {
		return nil, errors.New("listen address must not be empty")
	}
	if cfg.azureURL != "" && cfg.azureContainer == "" {
		return nil, errors.New("azure-container is required when azure-account-url is set")
	}
	return cfg, nil
}
