// Command orchestrator runs the centralized admission arbiter.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/config"
	"github.com/pdMiranda/CD/internal/logging"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/orchestrator"
	"github.com/pdMiranda/CD/internal/statusapi"
)

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
	addr := flag.String("addr", envOrString("ORCHESTRATOR_ADDR", "0.0.0.0:5000"), "address to listen on for ENTER/EXIT sessions")
	printerAddr := flag.String("printer-addr", envOrString("PRINTER_ADDR", "printer:5001"), "address of the Printer service")
	configPath := flag.String("config", envOrString("CLUSTER_CONFIG", ""), "optional JSON membership config file")
	statusAddr := flag.String("status-addr", envOrString("ORCHESTRATOR_STATUS_ADDR", ""), "optional address for the ambient /healthz and /status HTTP surface")
	logLevel := flag.String("log-level", envOrString("LOG_LEVEL", "info"), "logrus log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	baseLogger, err := logging.New("orchestrator", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: failed to initialize logging: %v\n", err)
		return 1
	}
	logger := baseLogger.WithField("component", "orchestrator")

	host, portStr, err := net.SplitHostPort(*printerAddr)
	if err != nil {
		logger.WithError(err).WithField("addr", *printerAddr).Error("invalid printer address")
		return 1
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		logger.WithError(err).Error("invalid printer port")
		return 1
	}
	printerPeer := membership.Peer{Host: host, Port: port}

	if *configPath != "" {
		file, err := config.Load(*configPath)
		if err != nil {
			logger.WithError(err).Error("failed to load config")
			return 1
		}
		if file.ServidorImpressao.Host != "" {
			printerPeer = file.ServidorImpressao
		}
	}

	printerClient := orchestrator.NewTCPPrinterClient(printerPeer, 3*time.Second, 30*time.Second)
	orch := orchestrator.New(printerClient, logger)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.WithError(err).WithField("addr", *addr).Error("failed to bind")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := orchestrator.NewServer(orch, ln, logger, orchestrator.DefaultInactivityTimeout)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	var statusSrv *statusapi.Server
	if *statusAddr != "" {
		statusSrv = statusapi.New(*statusAddr, "orchestrator", func() any {
			user, held := orch.CurrentUser()
			return map[string]any{"current_user": user, "held": held}
		}, logger)
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
			logger.WithError(err).Error("server stopped unexpectedly")
		}
	}

	cancel()
	if statusSrv != nil {
		_ = statusSrv.Close()
	}
	return 0
}
