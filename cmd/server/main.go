package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yourorg/checkout-orchestrator/internal/callback"
	"github.com/yourorg/checkout-orchestrator/internal/checkout"
	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/config"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/gateway/popup"
	"github.com/yourorg/checkout-orchestrator/internal/gateway/redirect"
	"github.com/yourorg/checkout-orchestrator/internal/gateway/wallet"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/pricing"
	"github.com/yourorg/checkout-orchestrator/internal/ratelimit"
	"github.com/yourorg/checkout-orchestrator/internal/session"
	"github.com/yourorg/checkout-orchestrator/internal/telemetry"
)

// surfaceLauncher stands in for the customer-facing surface's popup
// opener. The storefront opens the window itself and reports blockage
// through the callback channel; server-side the open always succeeds.
type surfaceLauncher struct{}

type surfaceHandle struct{ closed chan struct{} }

func (h *surfaceHandle) Closed() <-chan struct{} { return h.closed }

func (surfaceLauncher) Open(string) (popup.Handle, error) {
	return &surfaceHandle{closed: make(chan struct{})}, nil
}

func initTracing() func() {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("Failed to create trace exporter: %v", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}
}

func buildServer(cfg *config.Config) (*server, error) {
	gate, err := checkout.NewGate()
	if err != nil {
		return nil, err
	}

	var sessions session.Store
	var limiterStore ratelimit.Store
	if cfg.RedisURL != "" {
		redisSessions, err := session.NewRedisStore(cfg.RedisURL, 0)
		if err != nil {
			return nil, err
		}
		sessions = redisSessions
		limiterStore = ratelimit.NewRedisStore(redisSessions.Client(), 2*cfg.Window())
	} else {
		sessions = session.NewMemoryStore()
		limiterStore = ratelimit.NewMemoryStore()
	}

	limiter := ratelimit.NewLimiter(limiterStore,
		ratelimit.WithCeiling(cfg.RateLimit.Ceiling),
		ratelimit.WithWarnAt(cfg.RateLimit.WarnAt),
		ratelimit.WithWindow(cfg.Window()),
	)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	broker := callback.NewBroker(cfg.Origin)
	broker.OnDropped(metrics.CallbacksDropped.Inc)

	apiClient := checkoutapi.NewClient(cfg.CheckoutAPIBaseURL, nil)
	pricingClient := pricing.NewClient(cfg.PricingAPIBaseURL, nil)

	registry := gateway.NewRegistry()
	for _, g := range cfg.Gateways {
		switch g.Strategy {
		case "redirect":
			registry.Register(redirect.NewAdapter(g.ID, apiClient))
		case "popup":
			registry.Register(popup.NewAdapter(g.ID, apiClient, surfaceLauncher{}))
		case "wallet":
			connector := wallet.NewAPIConnector(apiClient, g.ID, cfg.CallbackURL)
			registry.Register(wallet.NewAdapter(g.ID, connector, 0, cfg.CallbackTimeout()))
		}
	}

	rules := make([]policy.Rule, 0, len(cfg.PolicyRules))
	for _, r := range cfg.PolicyRules {
		rules = append(rules, policy.Rule{
			ID:         r.ID,
			Expression: r.Expression,
			Priority:   r.Priority,
			Decision: policy.Decision{
				AllowRetry:       r.AllowRetry,
				RequireNewMethod: r.RequireNewMethod,
				EscalateSupport:  r.EscalateSupport,
			},
		})
	}
	enforcer, err := policy.NewEnforcer(rules)
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:           cfg,
		gate:          gate,
		sessions:      sessions,
		registry:      registry,
		broker:        broker,
		limiter:       limiter,
		metrics:       metrics,
		pricingClient: pricingClient,
		apiClient:     apiClient,
		flows:         make(map[string]*flow),
	}
	s.newCoordinator = func(storeID string) (*orchestrator.Coordinator, error) {
		return orchestrator.NewCoordinator(orchestrator.Config{
			StoreID:         storeID,
			Pricing:         pricingClient,
			Orders:          apiClient,
			Registry:        registry,
			Broker:          broker,
			Limiter:         limiter,
			Enforcer:        enforcer,
			Metrics:         metrics,
			CallbackURL:     cfg.CallbackURL,
			CallbackTimeout: cfg.CallbackTimeout(),
		})
	}
	return s, nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing := initTracing()
	defer shutdownTracing()

	srv, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	defer srv.shutdown()

	log.Printf("Starting checkout orchestrator on %s", cfg.Listen)
	router := srv.setupRouter()
	if err := router.Run(cfg.Listen); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
