package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourorg/checkout-orchestrator/internal/callback"
	"github.com/yourorg/checkout-orchestrator/internal/checkout"
	"github.com/yourorg/checkout-orchestrator/internal/checkoutapi"
	"github.com/yourorg/checkout-orchestrator/internal/config"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/pricing"
	"github.com/yourorg/checkout-orchestrator/internal/ratelimit"
	"github.com/yourorg/checkout-orchestrator/internal/session"
	"github.com/yourorg/checkout-orchestrator/internal/telemetry"
)

// flow bundles the per-store checkout state: the form, the step machine,
// the debounced session mirror, and the submission coordinator.
type flow struct {
	storeID     string
	forms       *checkout.FormStore
	machine     *checkout.StepMachine
	writer      *session.DebouncedWriter
	coordinator *orchestrator.Coordinator
	restored    bool
}

func (f *flow) snapshot() session.Snapshot {
	pos := f.machine.Snapshot()
	return session.Snapshot{
		FormData:       f.forms.Form(),
		CurrentStep:    pos.Current,
		CompletedSteps: pos.Completed,
	}
}

func (f *flow) persist() {
	f.writer.Save(f.snapshot())
}

type server struct {
	cfg      *config.Config
	gate     *checkout.Gate
	sessions session.Store
	registry *gateway.Registry
	broker   *callback.Broker
	limiter  *ratelimit.Limiter
	metrics  *telemetry.Metrics

	pricingClient *pricing.Client
	apiClient     *checkoutapi.Client

	newCoordinator func(storeID string) (*orchestrator.Coordinator, error)

	mu    sync.Mutex
	flows map[string]*flow
}

// getFlow returns the store's flow, creating it (and restoring any
// persisted draft) on first use.
func (s *server) getFlow(ctx context.Context, storeID string) (*flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flows[storeID]; ok {
		return f, nil
	}

	forms := checkout.NewFormStore(s.gate)
	machine := checkout.NewStepMachine(s.gate)
	writer := session.NewDebouncedWriter(s.sessions, storeID, s.cfg.Debounce())

	coord, err := s.newCoordinator(storeID)
	if err != nil {
		return nil, err
	}

	f := &flow{storeID: storeID, forms: forms, machine: machine, writer: writer, coordinator: coord}

	snap, err := s.sessions.Load(ctx, storeID)
	switch {
	case err == nil:
		if restoreErr := machine.Restore(checkout.Position{Current: snap.CurrentStep, Completed: snap.CompletedSteps}); restoreErr != nil {
			log.Printf("Server: discarding persisted checkout for store %s: %v", storeID, restoreErr)
		} else {
			forms.Restore(snap.FormData)
			f.restored = true
		}
	case errors.Is(err, session.ErrNotFound):
		// Fresh checkout.
	case errors.Is(err, session.ErrCorruptSnapshot):
		log.Printf("Server: persisted checkout for store %s is corrupt, starting fresh: %v", storeID, err)
	default:
		log.Printf("Server: could not load persisted checkout for store %s: %v", storeID, err)
	}

	forms.OnChange(func(checkout.Form) { f.persist() })
	s.flows[storeID] = f
	return f, nil
}

type stateResponse struct {
	StoreID        string            `json:"storeId"`
	CurrentStep    checkout.StepID   `json:"currentStep"`
	CompletedSteps []checkout.StepID `json:"completedSteps"`
	FormData       checkout.Form     `json:"formData"`
	Restored       bool              `json:"restored,omitempty"`
}

func (s *server) stateOf(f *flow) stateResponse {
	pos := f.machine.Snapshot()
	return stateResponse{
		StoreID:        f.storeID,
		CurrentStep:    pos.Current,
		CompletedSteps: pos.Completed,
		FormData:       f.forms.Form(),
		Restored:       f.restored,
	}
}

func (s *server) startHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.stateOf(f))
}

func (s *server) stateHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.stateOf(f))
}

func (s *server) formSectionHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var ok bool
	var fieldErrs []checkout.FieldError
	switch c.Param("section") {
	case checkout.SectionCustomerInfo:
		var info checkout.CustomerInfo
		if err := c.ShouldBindJSON(&info); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		ok, fieldErrs = f.forms.SetCustomerInfo(info)
	case checkout.SectionShippingAddress:
		var addr checkout.ShippingAddress
		if err := c.ShouldBindJSON(&addr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		ok, fieldErrs = f.forms.SetShippingAddress(addr)
	case checkout.SectionPaymentMethod:
		var sel checkout.PaymentSelection
		if err := c.ShouldBindJSON(&sel); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		ok, fieldErrs = f.forms.SetPaymentMethod(sel)
	case checkout.SectionInstructions:
		var body struct {
			SpecialInstructions string `json:"specialInstructions"`
			MarketingOptIn      bool   `json:"marketingOptIn"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		f.forms.SetInstructions(body.SpecialInstructions, body.MarketingOptIn)
		ok = true
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown form section: " + c.Param("section")})
		return
	}

	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrs})
		return
	}
	c.JSON(http.StatusOK, s.stateOf(f))
}

func (s *server) advanceHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ok, fieldErrs := f.machine.Advance(f.forms.Form())
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrs})
		return
	}
	f.persist()
	c.JSON(http.StatusOK, s.stateOf(f))
}

func (s *server) retreatHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := f.machine.Retreat(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	f.persist()
	c.JSON(http.StatusOK, s.stateOf(f))
}

func (s *server) jumpHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var body struct {
		Step checkout.StepID `json:"step"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if err := f.machine.JumpTo(body.Step); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	f.persist()
	c.JSON(http.StatusOK, s.stateOf(f))
}

type submitBody struct {
	Items      []pricing.Item `json:"items"`
	CouponCode string         `json:"coupon,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
}

func (s *server) submitHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	outcome, err := f.coordinator.Submit(c.Request.Context(), orchestrator.SubmitRequest{
		Form:       f.forms.Form(),
		Items:      body.Items,
		CouponCode: body.CouponCode,
		Currency:   body.Currency,
		SessionID:  body.SessionID,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrSubmissionInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Server: submission failed for store %s: %v", f.storeID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.finishOutcome(c.Request.Context(), f, outcome)
	c.JSON(http.StatusOK, outcome)
}

func (s *server) retryHandler(c *gin.Context) {
	f, err := s.getFlow(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	outcome, err := f.coordinator.Retry(c.Request.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNothingToRetry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Server: retry failed for store %s: %v", f.storeID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s.finishOutcome(c.Request.Context(), f, outcome)
	c.JSON(http.StatusOK, outcome)
}

// finishOutcome invalidates the persisted draft once an order completes.
// Failure to delete is non-fatal: a stale draft just gets overwritten by
// the next checkout.
func (s *server) finishOutcome(ctx context.Context, f *flow, outcome *orchestrator.Outcome) {
	if outcome == nil || outcome.Status != orchestrator.OutcomeCompleted {
		return
	}
	f.writer.Flush()
	if err := s.sessions.Delete(ctx, f.storeID); err != nil {
		log.Printf("Server: could not delete persisted checkout for store %s: %v", f.storeID, err)
	}
	s.mu.Lock()
	delete(s.flows, f.storeID)
	s.mu.Unlock()
}

func (s *server) callbackHandler(c *gin.Context) {
	var msg callback.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	origin := c.GetHeader("Origin")
	if err := s.broker.Publish(msg, origin); err != nil {
		// Discarded messages get a generic response; the sender learns
		// nothing about pending references.
		c.JSON(http.StatusForbidden, gin.H{"error": "callback rejected"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *server) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("checkout-orchestrator"))

	router.POST("/checkout/:storeID/start", s.startHandler)
	router.GET("/checkout/:storeID", s.stateHandler)
	router.PUT("/checkout/:storeID/form/:section", s.formSectionHandler)
	router.POST("/checkout/:storeID/advance", s.advanceHandler)
	router.POST("/checkout/:storeID/retreat", s.retreatHandler)
	router.POST("/checkout/:storeID/jump", s.jumpHandler)
	router.POST("/checkout/:storeID/submit", s.submitHandler)
	router.POST("/checkout/:storeID/retry", s.retryHandler)
	router.POST("/payments/callback", s.callbackHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// shutdown flushes every flow's pending session write.
func (s *server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flows {
		f.writer.Close()
	}
}
