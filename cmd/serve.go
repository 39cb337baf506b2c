package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinmark/pinmark/internal/config"
	"github.com/pinmark/pinmark/internal/db"
	"github.com/pinmark/pinmark/internal/httpserver"
	"github.com/pinmark/pinmark/internal/scraper"
	"github.com/pinmark/pinmark/internal/service"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the bookmark API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		setupLogging(cfg.LogLevel)

		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}

		store, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}

		fetchOpts := []scraper.OptFn{scraper.WithTimeout(cfg.Fetch.Timeout.Std())}
		if cfg.Fetch.UserAgent != "" {
			fetchOpts = append(fetchOpts, scraper.WithUserAgent(cfg.Fetch.UserAgent))
		}

		manager := service.New(store, scraper.New(fetchOpts...))
		srv := httpserver.New(cfg.Addr, httpserver.NewHandler(manager))

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-stop:
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Stop(ctx)
	},
}
