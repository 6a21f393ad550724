// Package main provides the entry point for the koe CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yomu-app/koe/internal/app"
	"github.com/yomu-app/koe/internal/config"
	"github.com/yomu-app/koe/internal/logging"
	"github.com/yomu-app/koe/internal/observe"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	logLevel    string
	metricsAddr string

	cfg       *config.Config
	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "koe",
		Short: "Hear Japanese kana and phrases, offline first",
		Long: paragraph(
			fmt.Sprintf("\nPlays Japanese kana and phrases from a %s, bundled kana clips, or the device speech engine.", keyword("persistent audio cache")),
		),
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}

	logCloser, err = logging.Setup(cfg.Log.Level, cfg.Log.File, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.File != "" {
		log.Debug("Using configuration file", "path", cfg.File)
	}
	return nil
}

// openApp builds the audio subsystem and, when configured, serves metrics.
// The returned func releases both.
func openApp(ctx context.Context) (*app.App, func(), error) {
	var (
		opts []app.Option
		srv  *http.Server
		prov *observe.Provider
	)

	if cfg.Metrics.Addr != "" {
		var err error
		prov, err = observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			return nil, nil, fmt.Errorf("init metrics: %w", err)
		}
		m, err := observe.NewMetrics(prov.MeterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("init metrics: %w", err)
		}
		opts = append(opts, app.WithMetrics(m))

		mux := http.NewServeMux()
		mux.Handle("/metrics", prov.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		log.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	a, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		_ = a.Close()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			_ = prov.Shutdown(shutdownCtx)
		}
	}
	return a, release, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logCloser()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	defaultFile, _ := config.DefaultFile()
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultFile))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(sayCmd, preloadCmd, cacheCmd, voicesCmd, boardCmd, configCmd, manCmd)
}

// joinArgs turns command arguments into one text.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
