// Command printer runs the append-only numeric sequence service.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"flag"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/logging"
	"github.com/pdMiranda/CD/internal/printer"
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
	addr := flag.String("addr", envOrString("PRINTER_ADDR", "0.0.0.0:5001"), "address to listen on for START/STOP")
	statusAddr := flag.String("status-addr", envOrString("PRINTER_STATUS_ADDR", ""), "optional address for the ambient /healthz and /status HTTP surface")
	logLevel := flag.String("log-level", envOrString("LOG_LEVEL", "info"), "logrus log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	baseLogger, err := logging.New("printer", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "printer: failed to initialize logging: %v\n", err)
		return 1
	}
	logger := baseLogger.WithField("component", "printer")

	p := printer.New(logger, printer.DefaultConfig())

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.WithError(err).WithField("addr", *addr).Error("failed to bind")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := printer.NewServer(p, ln, logger)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	var statusSrv *statusapi.Server
	if *statusAddr != "" {
		statusSrv = statusapi.New(*statusAddr, "printer", func() any {
			return map[string]any{"busy": p.Busy()}
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
