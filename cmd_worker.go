package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kube-rca/rca-worker/internal/client"
	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/service"
	"github.com/kube-rca/rca-worker/internal/template"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the analysis queue and run the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWorker(ctx, config.Load())
	},
}

func runWorker(ctx context.Context, cfg config.Config) error {
	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	jobs := db.NewJobStore(rdb, cfg.Jobs)

	completer, err := newCompletionProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	notifier := service.NewNotificationService(
		client.NewNtfyClient(cfg.Ntfy),
		client.NewSlackClient(cfg.Slack),
		client.NewWebhookNotifier(cfg.Webhook),
	)
	deps := service.PipelineDeps{
		Jobs:      jobs,
		Completer: completer,
		Notifier:  notifier,
		Prompt:    template.LoadPrompt(cfg.PromptFile),

		StepTimeout: cfg.Events.Timeout,
	}

	if pg := openKnowledgeStore(ctx, cfg); pg != nil {
		defer pg.Pool.Close()
		deps.Audit = pg
		embedder, err := newEmbeddingProvider(ctx, cfg)
		if err != nil {
			log.Printf("[Worker] RAG disabled: %v", err)
		} else {
			deps.Retriever = service.NewKnowledgeService(pg, embedder, cfg.RAG)
		}
	}

	if zammad := client.NewZammadClient(cfg.Zammad); zammad.IsConfigured() {
		deps.Ticketer = zammad
	} else {
		log.Printf("[Worker] ZAMMAD_TOKEN not set, ticket creation disabled")
	}

	if len(cfg.Events.Brokers) > 0 {
		producer, err := client.NewKafkaProducer(cfg.Events.Brokers, cfg.Events.Timeout)
		if err != nil {
			log.Printf("[Worker] event stream disabled: %v", err)
		} else {
			publisher := client.NewEventPublisher(producer, cfg.Events)
			defer publisher.Close()
			deps.Events = publisher
		}
	}

	worker := service.NewWorker(jobs, service.NewPipeline(deps), cfg.Jobs.PopTimeout)
	return worker.Run(ctx)
}
