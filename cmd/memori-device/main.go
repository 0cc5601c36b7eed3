// memori-device simulates the embedded device side of the widget link: it
// listens (stream role) or advertises (BLE role) as the device and serves
// host commands against an in-memory widget store.
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
	"github.com/cse115a/memori-transport/pkg/device"
	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/stream"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "memori-device",
		Short:   "memori-device - device-side endpoint for the widget link",
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
		Short: "Accept a host connection and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func runStart() error {
	cfg, err := config.LoadDevice(cfgFile)
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

	var ep *device.Endpoint
	switch cfg.Link {
	case config.LinkBLE:
		peripheral := ble.NewPeripheral(tcfg, log)
		log.Info("memori-device: advertising over BLE", "name", ble.AdvertisedName)
		if err := peripheral.Start(); err != nil {
			return fmt.Errorf("ble start: %w", err)
		}
		ep = device.New(peripheral, log)
	default:
		log.Info("memori-device: listening for host over stream", "address", cfg.StreamAddress)
		ln, err := stream.Listen(cfg.StreamAddress, tcfg, log)
		if err != nil {
			return fmt.Errorf("stream listen: %w", err)
		}
		defer ln.Close()
		link, err := ln.Accept(ctx)
		if err != nil {
			return fmt.Errorf("stream accept: %w", err)
		}
		ep = device.New(link, log)
	}
	ep.SetMaxRefreshTasks(cfg.MaxRefreshTasks)
	ep.SeedConfig(model.DeviceConfig{DarkMode: cfg.DarkMode})

	log.Info("memori-device is running. Press Ctrl+C to stop.")
	<-sigCh
	log.Info("memori-device: shutting down")
	return ep.Disconnect()
}
