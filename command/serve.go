// Package command holds the cobra subcommands of the trafficgen binary.
package command

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netforge/trafficgen"
	"github.com/netforge/trafficgen/internal/httpapi"
	"github.com/netforge/trafficgen/internal/metrics"
	"github.com/netforge/trafficgen/internal/zlog"
)

// NewServeCommand returns the "serve" subcommand, which enumerates host
// ports, loads the persisted profile configuration, starts the neighbor
// prober, and listens for the HTTP control surface (§6, §9) until an
// interrupt or SIGTERM arrives.
func NewServeCommand() *cobra.Command {
	var (
		listenAddr string
		configPath string
		logLevel   string
		logPretty  bool
		enableSNMP bool
		captureDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the traffic-generator control plane and traffic core",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zlog.NewDefault(logLevel, logPretty)

			caps := trafficgen.DefaultCapabilities()
			caps.SNMP = enableSNMP

			core := trafficgen.New(trafficgen.NewCoreOptions{
				Logger:       logger,
				Capabilities: caps,
				ConfigPath:   configPath,
				LLDPSource:   trafficgen.NoLLDPSource{},
				CaptureDir:   captureDir,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := core.Run(ctx); err != nil {
				return fmt.Errorf("trafficgen: startup: %w", err)
			}

			metricsReg := metrics.NewRegistry()
			router := httpapi.NewRouter(core.Adapter, metricsReg)
			srv := &http.Server{Addr: listenAddr, Handler: router}

			serveErrCh := make(chan error, 1)
			go func() {
				logger.Infof("trafficgen: control surface listening on %s", listenAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serveErrCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("trafficgen: shutdown signal received")
			case err := <-serveErrCh:
				logger.Warnf("trafficgen: control surface error: %s", err.Error())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			core.Shutdown(shutdownCtx)

			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:8080", "HTTP control surface listen address")
	cmd.Flags().StringVar(&configPath, "config", "/etc/trafficgen/config.yaml", "persisted profile configuration path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&logPretty, "log-pretty", false, "use a human-readable console log instead of JSON")
	cmd.Flags().BoolVar(&enableSNMP, "enable-snmp", false, "advertise the SNMP capability")
	cmd.Flags().StringVar(&captureDir, "capture-dir", "", "if set, write a <port>.pcap capture file per port under this directory")

	return cmd
}
