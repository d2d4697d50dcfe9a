// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/haulcrm/campaign-engine/internal/config"
	"github.com/haulcrm/campaign-engine/internal/db"
	"github.com/haulcrm/campaign-engine/internal/dispatch"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/queue"
	"github.com/haulcrm/campaign-engine/internal/repository"
	"github.com/haulcrm/campaign-engine/internal/service"
)

// The worker runs the two background halves of the engine: the drip
// scheduler sweep and the AMQP lead-event consumer. Both are safe to run
// alongside another worker instance; every dispatch is claimed first.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	conn, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer conn.Close()

	leadRepo := &repository.LeadRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	automationRepo := &repository.AutomationRepository{DB: conn}

	var gateway dispatch.Gateway
	if cfg.Gateway.URL != "" {
		gateway = dispatch.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.Timeout())
	} else {
		log.Println("⚠️ No GATEWAY_URL set, using in-memory gateway")
		gateway = dispatch.NewMemoryGateway()
	}

	scheduler := &service.Scheduler{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TemplateRepo:  templateRepo,
		LeadRepo:      leadRepo,
		Gateway:       gateway,
		Interval:      cfg.Engine.SweepInterval(),
		BatchSize:     cfg.Engine.SweepBatchSize,
	}
	go scheduler.Run(ctx)

	if cfg.AMQP.URL != "" {
		automationService := &service.AutomationService{
			RuleRepo:     automationRepo,
			TemplateRepo: templateRepo,
			LeadRepo:     leadRepo,
			Gateway:      gateway,
		}
		consumer := &queue.EventConsumer{
			URL:       cfg.AMQP.URL,
			QueueName: cfg.AMQP.EventQueue,
		}
		go func() {
			err := consumer.Run(ctx, func(ctx context.Context, ev model.LeadEvent) error {
				_, err := automationService.HandleEvent(ctx, ev)
				return err
			})
			if err != nil {
				log.Println("⚠️ event consumer stopped:", err)
			}
		}()
	} else {
		log.Println("⚠️ No AMQP_URL set, lead events arrive over HTTP only")
	}

	log.Println("🚀 Worker started. Press Ctrl+C to exit.")
	<-ctx.Done()
	log.Println("Worker shutting down")
}
