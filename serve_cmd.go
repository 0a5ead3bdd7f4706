package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/observe"
	"github.com/dgnsrekt/mouthpiece/internal/server"
	"github.com/dgnsrekt/mouthpiece/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the face over HTTP and websockets",
	Long:    paragraph(fmt.Sprintf("\nRun the controller as a service. Frames are %s to websocket clients on /ws; speech is driven with POST /speak.", keyword("streamed"))),
	Example: paragraph("mouthpiece serve\nmouthpiece serve --addr :9000 --engine google"),
	Args:    cobra.NoArgs,
	RunE:    executeServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (default :8088)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func executeServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.SetOutput(cmd.ErrOrStderr())
	if log.GetLevel() > log.InfoLevel {
		log.SetLevel(log.InfoLevel)
	}

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "mouthpiece",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("unable to start metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownMetrics(sctx)
	}()
	metrics := observe.DefaultMetrics()

	a, err := openApp(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	hub := stream.NewHub(cfg.Server.AllowedOrigins, metrics)
	srv := server.New(server.Options{
		Config:   cfg,
		Runner:   a.runner,
		Engine:   a.engine,
		Personas: a.personas,
		Hub:      hub,
		Store:    a.store,
		Version:  Version,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	frames, unsub := a.runner.Subscribe()
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runner.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return hub.Publish(gctx, frames) })
	g.Go(func() error { return a.watchPersonas(gctx) })
	g.Go(func() error {
		log.Info("Listening", "addr", cfg.Server.Addr, "engine", a.engine.Name())
		fmt.Fprintln(cmd.OutOrStdout(), paragraph(fmt.Sprintf("Listening on %s", keyword(cfg.Server.Addr))))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err //nolint:wrapcheck
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(sctx) //nolint:contextcheck
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err //nolint:wrapcheck
	}
	return nil
}
