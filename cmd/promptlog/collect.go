package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/collector"
)

func newCollectCmd(a *app) *cobra.Command {
	var (
		addr   string
		prefix string
	)
	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "启动本地事件与反馈接收端，供开发调试使用",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := collector.New(collector.WithPrefix(prefix), collector.WithLogger(a.logger))
			srv := &http.Server{
				Addr:              addr,
				Handler:           c.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.logger.Info("collector listening", slog.String("addr", addr), slog.String("prefix", prefix))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.logger.Info("collector stopped", slog.Int("events", len(c.Events())), slog.Int("feedback", len(c.Feedback())))
			return nil
		},
	}
	collectCmd.Flags().StringVar(&addr, "addr", ":8787", "监听地址")
	collectCmd.Flags().StringVar(&prefix, "prefix", "/api", "API 路径前缀")
	return collectCmd
}
