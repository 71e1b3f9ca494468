package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealdock/internal/monitoring"
	"github.com/sells-group/dealdock/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deal API and run the review board loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openMigrated(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir, err := initPeople()
		if err != nil {
			return err
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(cfg.Monitoring.StaleIncomingHours),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		env, err := newBoard(ctx, st, cfg, checker.Hook())
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(server.Deps{
			Store:       st,
			Board:       env.Board,
			People:      dir,
			Gatherer:    env.Registry,
			CORSOrigins: cfg.Server.CORSOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, port)
		})
		g.Go(func() error {
			env.Board.Run(gctx)
			return nil
		})

		zap.L().Info("dealdock serving",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Int("people", dir.Len()),
		)
		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
