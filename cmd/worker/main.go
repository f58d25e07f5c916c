package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inferna-ai/inferna/internal/config"
	"github.com/inferna-ai/inferna/internal/logging"
	"github.com/inferna-ai/inferna/internal/modelmanager"
	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "worker",
		Short: "Inference worker process",
		Run:   run,
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("failed to execute command")
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading worker config")
	}

	logging.Init(cfg.LogLevel, true)

	if cfg.ID == "" {
		cfg.ID = "worker-" + uuid.NewString()
	}
	address := cfg.Address
	if address == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		address = fmt.Sprintf("http://%s:%d", host, cfg.Port)
	}

	mmCaller := transport.NewHTTP(cfg.ModelManagerURL, modelmanager.HTTPRoute)
	defer mmCaller.Close()
	fetcher := modelmanager.NewClient(mmCaller, time.Duration(cfg.InferenceTimeoutMs)*time.Millisecond)

	w := worker.New(cfg.ID, fetcher, worker.Config{
		MaxConcurrent:    cfg.MaxConcurrentInferences,
		InferenceTimeout: time.Duration(cfg.InferenceTimeoutMs) * time.Millisecond,
		ModelCacheSize:   cfg.ModelCacheSize,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: worker.NewRouter(w),
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

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("binding worker listener")
	}

	go registerLoop(ctx, cfg, address, cfg.OrchestratorURL)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	log.Info().
		Str("id", cfg.ID).
		Int("port", cfg.Port).
		Str("address", address).
		Strs("capabilities", cfg.Capabilities).
		Msg("starting worker")

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("worker server failed")
	}

	log.Info().Msg("worker stopped")
}

// registerLoop registers this worker with the orchestrator at startup and
// re-registers on the health check interval so lastSeen stays fresh between
// the orchestrator's own probes (spec.md §4.2's registerTwice-is-idempotent
// contract makes this safe).
func registerLoop(ctx context.Context, cfg config.WorkerConfig, address, orchestratorURL string) {
	orchestratorCaller := transport.NewHTTP(orchestratorURL, orchestrator.HTTPRoute)
	defer orchestratorCaller.Close()

	register := func() {
		_, err := orchestratorCaller.Call(ctx, "registerWorker", map[string]any{
			"id":            cfg.ID,
			"address":       address,
			"capabilities":  cfg.Capabilities,
			"maxConcurrent": cfg.MaxConcurrentInferences,
		}, 10*time.Second)
		if err != nil {
			log.Warn().Err(err).Msg("registering with orchestrator")
		}
	}

	register()

	interval := time.Duration(cfg.HealthCheckIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			register()
		}
	}
}
