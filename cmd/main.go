package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/inhousecard/paycore/gateway"
	_ "github.com/inhousecard/paycore/gateway/mercadopago"
	_ "github.com/inhousecard/paycore/gateway/stripe"
	"github.com/inhousecard/paycore/handler"
	"github.com/inhousecard/paycore/infra/config"
	"github.com/inhousecard/paycore/infra/logger"
	"github.com/inhousecard/paycore/infra/middle"
	"github.com/inhousecard/paycore/infra/opensearch"
	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/infra/store"
	"github.com/inhousecard/paycore/reconcile"
)

var (
	PORT     string
	osClient *opensearch.Client
)

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	_ = config.App()

	cfg := config.GetAppConfig()
	PORT = cfg.Port

	// Initialize OpenSearch for the audit log and system logging
	if cfg.EnableAuditIndex {
		client, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without audit indexing...")
		} else {
			osClient = client
			log.Println("OpenSearch audit indexing initialized successfully")
		}
	} else {
		log.Println("OpenSearch audit indexing is disabled")
	}

	if osClient != nil {
		logger.InitGlobalLogger(osClient)
	} else {
		logger.InitGlobalLogger(nil)
	}
}

func main() {
	cfg := config.GetAppConfig()

	// Order store
	orderStore, err := store.NewSQLiteOrderStore(cfg.OrderDBPath)
	if err != nil {
		log.Fatalf("Failed to open order store: %v", err)
	}
	defer orderStore.Close()

	// Audit log
	var auditLog reconcile.AuditStore
	var auditQuerier handler.AuditQuerier
	if osClient != nil {
		al := opensearch.NewAuditLog(osClient)
		auditLog = al
		auditQuerier = al
	}

	// Payment gateways: the configured primary plus any others with
	// credentials present.
	engines := make(map[string]*reconcile.Engine)
	for name, token := range gatewayCredentials(cfg) {
		source, err := gateway.Create(name)
		if err != nil {
			log.Printf("Failed to create gateway %s: %v", name, err)
			continue
		}
		conf := map[string]string{
			"accessToken": token,
			"secretKey":   token,
			"baseURL":     cfg.GatewayBaseURL,
		}
		if err := source.Initialize(conf); err != nil {
			log.Printf("Failed to initialize gateway %s: %v", name, err)
			continue
		}
		engines[name] = reconcile.NewEngine(source, orderStore, auditLog, cfg.GatewayTimeout)
	}
	if len(engines) == 0 {
		log.Fatalf("No payment gateway configured; set GATEWAY_ACCESS_TOKEN")
	}

	verifier := reconcile.NewVerifier(cfg.WebhookSecret, cfg.SkipSignatureWhenUnset)

	webhookHandler := handler.NewWebhookHandler(engines, cfg.GatewayName, verifier)
	paycodeHandler := handler.NewPaycodeHandler(config.App().Validator)
	auditHandler := handler.NewAuditHandler(auditQuerier)
	healthHandler := handler.NewHealthHandler(orderStore, osClient != nil, cfg.GatewayName)

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter()
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.IPWhitelistMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Health check endpoint (no auth required)
	r.Get("/health", healthHandler.HandleHealth)

	// Webhook routes for payment notifications (no auth required)
	r.Post("/webhook", webhookHandler.HandleWebhook)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{gateway}", webhookHandler.HandleWebhook)
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/paycode", paycodeHandler.HandleGenerate)
		r.Get("/audit", auditHandler.HandleList)
	})

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", PORT),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", PORT)

	// Block until a signal is received
	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// gatewayCredentials returns the gateways to initialize, keyed by name,
// with their credential. The primary gateway uses GATEWAY_ACCESS_TOKEN;
// additional gateways are enabled by their own token variables.
func gatewayCredentials(cfg *config.AppConfig) map[string]string {
	creds := make(map[string]string)
	if cfg.GatewayAccessToken != "" {
		creds[cfg.GatewayName] = cfg.GatewayAccessToken
	}
	if token := config.GetEnv("STRIPE_SECRET_KEY", ""); token != "" {
		creds["stripe"] = token
	}
	return creds
}
