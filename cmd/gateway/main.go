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
	"github.com/inferna-ai/inferna/internal/gateway"
	"github.com/inferna-ai/inferna/internal/logging"
	"github.com/inferna-ai/inferna/internal/modelmanager"
	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/transport"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Public API edge service: auth, rate limiting, routing",
		Run:   run,
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("failed to execute command")
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading gateway config")
	}

	logging.Init(cfg.LogLevel, true)

	orchCaller := transport.NewHTTP(cfg.OrchestratorURL, orchestrator.HTTPRoute)
	defer orchCaller.Close()
	mmCaller := transport.NewHTTP(cfg.ModelManagerURL, modelmanager.HTTPRoute)
	defer mmCaller.Close()

	service := gateway.NewService(orchCaller, mmCaller, time.Duration(cfg.RequestTimeoutMs)*time.Millisecond)

	keyStore := gateway.NewKeyStore()
	keyStore.Add(cfg.BootstrapAPIKey, "bootstrap", []string{"*"})

	limiter := gateway.NewRateLimiter(cfg.RateLimitWindowMs, cfg.RateLimitMaxRequests)

	router := gateway.NewRouter(gateway.RouterConfig{
		Service:        service,
		KeyStore:       keyStore,
		RateLimiter:    limiter,
		AuthEnabled:    cfg.AuthEnabled,
		RateLimitOn:    cfg.RateLimitEnabled,
		AllowedOrigins: cfg.CORSOrigins,
		StartedAt:      time.Now(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
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

	go limiter.Run(ctx)

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
		Bool("auth_enabled", cfg.AuthEnabled).
		Bool("rate_limit_enabled", cfg.RateLimitEnabled).
		Msg("starting gateway")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("gateway server failed")
	}

	log.Info().Msg("gateway stopped")
}
