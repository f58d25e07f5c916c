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
	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Control-plane service: worker registry, load balancing, routing",
		Run:   run,
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("failed to execute command")
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadOrchestratorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading orchestrator config")
	}

	logging.Init(cfg.LogLevel, true)

	dial := func(address string) (transport.Caller, error) {
		return transport.NewHTTP(address, worker.HTTPRoute), nil
	}

	orch := orchestrator.New(dial, orchestrator.Config{
		Strategy:                 orchestrator.Strategy(cfg.LoadBalancingStrategy),
		RequestTimeout:           time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		HealthCheckInterval:      time.Duration(cfg.HealthCheckIntervalMs) * time.Millisecond,
		ServiceDiscoveryInterval: time.Duration(cfg.ServiceDiscoveryIntervalMs) * time.Millisecond,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: orchestrator.NewRouter(orch),
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

	go orch.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
		orch.Close()
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("load_balancing_strategy", cfg.LoadBalancingStrategy).
		Msg("starting orchestrator")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("orchestrator server failed")
	}

	log.Info().Msg("orchestrator stopped")
}
