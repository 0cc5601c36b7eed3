// memori-host is the companion-app side of the host/device link: it
// drives either the stream or BLE transport as the host role, answering
// the device's own commands with host.NoopDataSource until interrupted,
// which is enough to smoke-test an attached device.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cse115a/memori-transport/pkg/ble"
	"github.com/cse115a/memori-transport/pkg/config"
	"github.com/cse115a/memori-transport/pkg/host"
	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/stream"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "memori-host",
		Short:   "memori-host - host-side endpoint for the widget link",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: first existing of ./config.yaml, ./memori.yaml and the other search paths)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newStartCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Connect to the device and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func runStart() error {
	cfg, err := config.LoadHost(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output})
	logger.SetGlobal(log)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
			log.Warn("metrics server exited", "error", http.ListenAndServe(cfg.Metrics.Address, mux))
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	tcfg := transport.Config{RequestTimeout: cfg.RequestTimeout, DeviceGrace: cfg.DeviceGrace}

	var ep *host.Endpoint
	switch cfg.Link {
	case config.LinkBLE:
		central := ble.NewCentral(tcfg, log)
		log.Info("memori-host: scanning for device over BLE")
		if err := central.Connect(ctx); err != nil {
			return fmt.Errorf("ble connect: %w", err)
		}
		ep = host.New(central, nil, log)
	default:
		log.Info("memori-host: dialing device over stream", "address", cfg.StreamAddress)
		link, err := stream.Dial(ctx, cfg.StreamAddress, tcfg, log)
		if err != nil {
			return fmt.Errorf("stream dial: %w", err)
		}
		ep = host.New(link, nil, log)
	}

	log.Info("memori-host is running. Press Ctrl+C to stop.")
	<-sigCh
	log.Info("memori-host: shutting down")
	return ep.Disconnect()
}
