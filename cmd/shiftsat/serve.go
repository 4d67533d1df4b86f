package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	adapterhttp "github.com/shiftsat/engine/adapter/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduling engine as an HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	c, err := newContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer c.Close()

	handler := adapterhttp.NewScheduleHandler(c.Handler, c.Repo, logger)
	serverCfg := adapterhttp.DefaultServerConfig()
	serverCfg.Addr = cfg.HTTPAddr
	server := adapterhttp.NewServer(serverCfg, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.WriteTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
