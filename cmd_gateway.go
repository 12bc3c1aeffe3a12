package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/handler"
	"github.com/kube-rca/rca-worker/internal/service"
	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP ingestion gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runGateway(ctx, config.Load())
	},
}

func runGateway(ctx context.Context, cfg config.Config) error {
	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	jobs := db.NewJobStore(rdb, cfg.Jobs)

	auth := service.NewGatewayAuth(cfg.Auth)
	if !auth.Enabled() {
		log.Printf("[Gateway] AI_GATEWAY_SECRET not set, authentication disabled")
	}

	gateway := service.NewGatewayService(jobs, cfg.Jobs.DedupWindow)
	handlers := handler.Handlers{
		Analyze:      handler.NewAnalyzeHandler(gateway),
		Alertmanager: handler.NewAlertmanagerHandler(gateway),
		Jobs:         handler.NewJobHandler(jobs),
		Health:       handler.NewHealthHandler(jobs, nil),
	}

	if pg := openKnowledgeStore(ctx, cfg); pg != nil {
		defer pg.Pool.Close()
		embedder, err := newEmbeddingProvider(ctx, cfg)
		if err != nil {
			log.Printf("[Gateway] knowledge API disabled: %v", err)
		} else {
			handlers.Knowledge = handler.NewKnowledgeHandler(service.NewKnowledgeService(pg, embedder, cfg.RAG))
		}
		handlers.Audit = handler.NewAuditHandler(pg)
		handlers.Health = handler.NewHealthHandler(jobs, pg)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(handlers, auth, cfg.Server.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Gateway] listening (addr=%s)", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[Gateway] shutdown requested, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
