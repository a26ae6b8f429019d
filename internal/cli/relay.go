package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/gateway"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/store"
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Manage the Parley relay server",
	}

	cmd.AddCommand(newRelayRunCmd())
	return cmd
}

func newRelayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Relay.Port = port
			}
			if bind != "" {
				cfg.Relay.Bind = bind
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("preparing data directories: %w", err)
			}

			log = logging.NewStyled(cfg.Logging.ConsoleStyle, levelOr(cfg.Logging.Level))

			db, err := store.Open(paths.DatabasePath(cfg.Store), log)
			if err != nil {
				return err
			}
			defer db.Close()

			host := "127.0.0.1"
			if cfg.Relay.Bind == "all" {
				host = "0.0.0.0"
			}

			srv := gateway.NewServer(gateway.Config{
				Addr:        fmt.Sprintf("%s:%d", host, cfg.Relay.Port),
				CORSOrigins: cfg.Relay.AllowedOrigins,
			}, db, log)
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback or all (overrides config)")
	return cmd
}

func levelOr(level string) string {
	if logLevel != "" {
		return logLevel
	}
	if level != "" {
		return level
	}
	return "info"
}
