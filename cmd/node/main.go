// Command node runs one Ricart–Agrawala cluster member.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/config"
	"github.com/pdMiranda/CD/internal/logging"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/node"
	"github.com/pdMiranda/CD/internal/statusapi"
)

func envOrInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func main() {
	os.Exit(run())
}

func run() int {
	id := flag.Int("id", envOrInt("NODE_ID", 0), "this node's numeric identity")
	port := flag.Int("port", envOrInt("NODE_PORT", 0), "TCP port to listen on for peer REQUEST/REPLY")
	clusterSize := flag.Int("cluster-size", envOrInt("CLUSTER_SIZE", 3), "number of nodes in the fixed-convention cluster, used when -config is absent")
	configPath := flag.String("config", envOrString("CLUSTER_CONFIG", ""), "optional JSON membership config file")
	statusAddr := flag.String("status-addr", envOrString("NODE_STATUS_ADDR", ""), "optional address for the ambient /healthz and /status HTTP surface")
	logLevel := flag.String("log-level", envOrString("LOG_LEVEL", "info"), "logrus log level")
	flag.Parse()

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "node: -id (or NODE_ID) must be a positive integer")
		return 1
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	baseLogger, err := logging.New(fmt.Sprintf("node-%d", *id), level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "node: failed to initialize logging: %v\n", err)
		return 1
	}
	logger := baseLogger.WithField("node_id", *id)

	var table membership.Table
	if *configPath != "" {
		file, err := config.Load(*configPath)
		if err != nil {
			logger.WithError(err).Error("failed to load config")
			return 1
		}
		table = file.Table(*id)
	} else {
		table = config.DefaultTable(*id, *clusterSize)
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort = membership.DefaultPeer(*id).Port
	}
	listenAddr := fmt.Sprintf("0.0.0.0:%d", listenPort)

	ln, err := node.Listen(listenAddr)
	if err != nil {
		logger.WithError(err).WithField("addr", listenAddr).Error("failed to bind peer listener")
		return 2
	}

	cfg := node.DefaultConfig()
	transport := node.NewTCPTransport(cfg.PeerTimeout)
	orchClient := node.NewTCPOrchestratorClient(cfg.OrchestratorDialTimeout, cfg.OrchestratorExitTimeout)
	n := node.New(*id, table, transport, orchClient, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := node.NewServer(n, ln, logger)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	go n.Run(ctx)

	var statusSrv *statusapi.Server
	if *statusAddr != "" {
		statusSrv = statusapi.New(*statusAddr, "node", func() any { return n.Snapshot() }, logger)
		go func() {
			if err := statusSrv.ListenAndServe(); err != nil {
				logger.WithError(err).Warn("status server stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Info("received shutdown signal")
	case err := <-done:
		if err != nil {
			logger.WithError(err).Error("peer server stopped unexpectedly")
		}
	}

	cancel()
	if statusSrv != nil {
		_ = statusSrv.Close()
	}
	return 0
}
