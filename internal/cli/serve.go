package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pestmatch/internal/api"
)

var (
	serveAddr   string
	serveWarmUp bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP comparison API",
	Long: `Serve POST /comparar (multipart field "image"), GET /historico, GET /health
and GET /metrics.

With --warmup (the default) the model is loaded and the index built before
the listener opens, so a broken model or dataset fails at startup.

Examples:
  pestmatch serve
  pestmatch serve --addr :9000 --warmup=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWarmUp, "warmup", true, "load the model and build the index before listening")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	warmUp := cfg.Server.WarmUp
	if cmd.Flags().Changed("warmup") {
		warmUp = serveWarmUp
	}

	svc, err := newService(cfg, logger, serviceOptions{history: true, cache: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if warmUp {
		logger.Info("warming up", zap.String("dataset", resolvePath(cfg.Dataset.Root)))
		if err := svc.compare.WarmUp(ctx); err != nil {
			return fmt.Errorf("warm-up failed: %w", err)
		}
	}

	handler := api.NewHandler(svc.compare, svc.index, resolvePath(cfg.Server.UploadDir), cfg.Server.MaxUploadMB, logger.Named("api"))
	server := api.NewServer(addr, api.NewRouter(handler, logger.Named("http")))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		fmt.Printf("Serving on %s\n", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
