// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

// Command stagrdb-node runs one capture/replay node: it selects an
// interface, validates itself against the shared store, loads its
// firewall rules, and runs the capture, writer, and reader tasks until
// a signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stagrdb.node/internal/buffer"
	"stagrdb.node/internal/capture"
	"stagrdb.node/internal/firewallsvc"
	"stagrdb.node/internal/iface"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/metrics"
	"stagrdb.node/internal/nodeconfig"
	"stagrdb.node/internal/parser"
	"stagrdb.node/internal/rawsock"
	"stagrdb.node/internal/reader"
	"stagrdb.node/internal/registry"
	"stagrdb.node/internal/storage"
	"stagrdb.node/internal/supervisor"
	"stagrdb.node/internal/writer"
)

func main() {
	if err := run(); err != nil {
		logging.New(logging.DefaultConfig()).Error("node failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := nodeconfig.Load()
	if err != nil {
		return err
	}

	bootID := uuid.New().String()
	logger := newLogger(cfg.Logger.NormalLoggerFile, "all", cfg.Logger.NormalPathStyle).
		With("node_id", cfg.NodeID, "boot_id", bootID)
	idpsLogger := newLogger(cfg.Logger.IdpsLoggerFile, cfg.Logger.IdpsLogMode, cfg.Logger.IdpsPathStyle).
		With("node_id", cfg.NodeID, "boot_id", bootID)

	logger.Info("starting node")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interfaceName, err := iface.Select(cfg.Network.DockerMode, cfg.Network.DockerInterfaceName, os.Stdin, os.Stdout, logger)
	if err != nil {
		return err
	}
	logger.Info("interface selected", "interface", interfaceName)

	store, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	nodeName, err := registry.ValidateAndRecord(ctx, store, cfg.NodeID, interfaceName, logger)
	if err != nil {
		return err
	}
	logger.Info("node registered", "name", nodeName)

	fw := firewallsvc.New(idpsLogger)
	if err := fw.Initialize(ctx, store, cfg.NodeID); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, reg, logger)
	}

	sock, err := rawsock.Open(interfaceName)
	if err != nil {
		return err
	}
	defer sock.Close()

	buf := buffer.New[parser.ParsedPacket]()
	captureTask := capture.New(sock, buf, fw, idpsLogger, collector)
	writerTask := writer.New(cfg.NodeID, buf, store, logger, collector)
	readerTask := reader.New(cfg.NodeID, store, sock, logger, collector)

	return supervisor.Run(ctx, []supervisor.Task{
		{Name: "analysis", Run: captureTask.Run},
		{Name: "writer", Run: writerTask.Run},
		{Name: "reader", Run: readerTask.Run},
	}, logger)
}

// newLogger maps the env-var mode/style strings onto a logging.Config.
// "all" means console and file together; an unrecognized mode falls back
// to console so a typo never silences the node.
func newLogger(filePath, mode, pathStyle string) *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.FilePath = filePath

	switch mode {
	case "file":
		cfg.Mode = logging.ModeFile
	case "all":
		cfg.Mode = logging.ModeBoth
	case "none":
		cfg.Mode = logging.ModeNone
	default:
		cfg.Mode = logging.ModeConsole
	}
	if filePath == "" && cfg.Mode != logging.ModeNone {
		cfg.Mode = logging.ModeConsole
	}

	if pathStyle == "dated" {
		cfg.PathStyle = logging.PathStyleDated
	} else {
		cfg.PathStyle = logging.PathStyleFixed
	}

	return logging.New(cfg)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err.Error())
	}
}
