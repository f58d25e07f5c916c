package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inferna-ai/inferna/internal/config"
	"github.com/inferna-ai/inferna/internal/logging"
	"github.com/inferna-ai/inferna/internal/modelmanager"
	"github.com/inferna-ai/inferna/internal/modelstore"
	"github.com/inferna-ai/inferna/internal/registry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelmanager",
		Short: "Model Manager blob store and catalog service",
		Run:   run,
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("failed to execute command")
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadModelManagerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading model manager config")
	}

	logging.Init(cfg.LogLevel, true)

	store, err := modelstore.New(cfg.StoragePath, cfg.MaxModelSize)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing model store")
	}
	reg := registry.New()
	service := modelmanager.New(store, reg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: modelmanager.NewRouter(service),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("storage_path", cfg.StoragePath).
		Str("max_model_size", cfg.MaxModelSize).
		Msg("starting model manager")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("model manager server failed")
	}

	log.Info().Msg("model manager stopped")
}
