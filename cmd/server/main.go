// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haulcrm/campaign-engine/internal/config"
	"github.com/haulcrm/campaign-engine/internal/controller"
	"github.com/haulcrm/campaign-engine/internal/db"
	"github.com/haulcrm/campaign-engine/internal/dispatch"
	"github.com/haulcrm/campaign-engine/internal/handler"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/queue"
	"github.com/haulcrm/campaign-engine/internal/repository"
	"github.com/haulcrm/campaign-engine/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	ctx := context.Background()
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

	audienceService := &service.AudienceService{LeadRepo: leadRepo}
	templateService := &service.TemplateService{TemplateRepo: templateRepo}
	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TemplateRepo:  templateRepo,
		Audience:      audienceService,
	}
	automationService := &service.AutomationService{
		RuleRepo:     automationRepo,
		TemplateRepo: templateRepo,
		LeadRepo:     leadRepo,
		Gateway:      gateway,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		AudienceService: audienceService,
	}
	templateController := &controller.TemplateController{TemplateService: templateService}
	automationController := &controller.AutomationController{AutomationService: automationService}
	recipientHandler := &handler.RecipientHandler{Service: campaignService}

	// Without a broker the server handles its own events: POST /events
	// publishes to an in-process queue and the subscriber drives the
	// automation handler, with the queue's retry on transient failures.
	if cfg.AMQP.URL == "" {
		log.Println("⚠️ No AMQP_URL set, using in-process event queue")
		events := queue.NewInMemoryQueue()
		queue.StartLeadEventSubscriber(events, func(ctx context.Context, ev model.LeadEvent) error {
			_, err := automationService.HandleEvent(ctx, ev)
			return err
		})
		automationController.Events = events
	}

	r := chi.NewRouter()

	// Template routes
	r.Post("/templates", templateController.CreateTemplate)
	r.Get("/templates", templateController.ListTemplates)
	r.Get("/templates/{id}", templateController.GetTemplate)
	r.Put("/templates/{id}", templateController.UpdateTemplate)
	r.Delete("/templates/{id}", templateController.DeleteTemplate)

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/activate", campaignController.ActivateCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/archive", campaignController.ArchiveCampaign)
	r.Post("/campaigns/preview", campaignController.PreviewAudience)
	r.Get("/campaigns/{id}/recipients", recipientHandler.ListRecipients)
	r.Post("/campaigns/{id}/recipients/{recipientID}/reenroll", recipientHandler.ReenrollRecipient)

	// Automation routes
	r.Post("/automations", automationController.CreateRule)
	r.Get("/automations", automationController.ListRules)
	r.Get("/automations/{id}", automationController.GetRule)
	r.Put("/automations/{id}", automationController.UpdateRule)
	r.Delete("/automations/{id}", automationController.DeleteRule)
	r.Post("/automations/{id}/toggle", automationController.ToggleRule)
	r.Get("/automations/{id}/firings", automationController.ListFirings)

	// Inbound event feed (HTTP half; the worker consumes the AMQP half)
	r.Post("/events", automationController.IngestEvent)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/db", func(w http.ResponseWriter, req *http.Request) {
		if err := conn.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("🚀 Server running on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
