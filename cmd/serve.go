package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hardcore/internal/bootstrap"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command API, participant sessions and placeholders over HTTP",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := appCtx(cmd, app)

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr
		}
		placeholderOnly := app.Config.Settings.PlaceholderOnly
		if cmd.Flags().Changed("placeholder-only") {
			placeholderOnly, _ = cmd.Flags().GetBool("placeholder-only")
		}

		srv := &http.Server{
			Addr: addr,
			Handler: server.New(ctx, server.Config{
				Commands:           app.Commands,
				Lifecycle:          app.Lifecycle,
				Hub:                app.Hub,
				Gatherer:           app.Registry,
				AdminToken:         app.Config.Server.AdminToken,
				SessionPermissions: app.Config.Server.SessionPermissions,
				PlaceholderOnly:    placeholderOnly,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.ListenAndServe()
		}()

		logging.Info(
			ctx,
			"hardcore server started",
			slog.String("addr", addr),
			slog.Bool("placeholder_only", placeholderOnly),
			slog.Bool("degraded", app.Degraded()),
		)

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "hardcore server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve http")
			}
			return nil
		case <-sigCtx.Done():
		}

		logging.Info(ctx, "shutting down hardcore server")
		app.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().Bool("placeholder-only", false, "Expose only the read-only routes (default: settings.placeholderOnly)")
}
