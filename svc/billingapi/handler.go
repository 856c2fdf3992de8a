package billingapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Webhook outcome labels beyond the billing.Outcome values.
const (
	OutcomeSignatureRejected = "signature_rejected"
	OutcomeMalformed         = "malformed"
	OutcomeFailed            = "failed"
	OutcomeTooLarge          = "too_large"
)

// Handler serves the billing endpoints.
type Handler struct {
	svc     billing.Service
	cfg     Config
	log     *slog.Logger
	metrics *Metrics
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

func NewHandler(svc billing.Service, cfg Config, opts ...Option) *Handler {
	if svc == nil {
		panic("billingapi: billing.Service is required")
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = 10 * time.Second
	}
	if cfg.WebhookMaxBody <= 0 {
		cfg.WebhookMaxBody = 1 << 20
	}
	if cfg.RequestMaxBody <= 0 {
		cfg.RequestMaxBody = 16 << 10
	}
	h := &Handler{
		svc: svc,
		cfg: cfg,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return h
}

// Router mounts the endpoints. The webhook is public and authenticated by
// signature; every other route requires a user in the request context.
//
//	r.Mount("/billing", h.Router())
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", h.Webhook)
	r.Get("/plans", h.Plans)

	r.Group(func(r chi.Router) {
		if h.cfg.TrustUserHeader {
			r.Use(TrustedHeaders(DefaultUserIDHeader, DefaultUserEmailHeader, DefaultUserNameHeader))
		}
		r.Use(RequireUser)
		r.Post("/checkout", h.Checkout)
		r.Post("/portal", h.Portal)
		r.Get("/subscription", h.Subscription)
	})
	return r
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// Webhook authenticates and applies one provider delivery. The body is read
// raw since the signature covers the exact bytes.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome, status := OutcomeFailed, http.StatusInternalServerError
	defer func() {
		h.metrics.WebhookRequests.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
		h.metrics.WebhookDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.WebhookMaxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			outcome, status = OutcomeTooLarge, http.StatusRequestEntityTooLarge
			writeError(w, status, "payload too large")
			return
		}
		outcome, status = OutcomeMalformed, http.StatusBadRequest
		writeError(w, status, "failed to read request body")
		return
	}

	// outlive a disconnecting caller so an in-flight write completes
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.cfg.WebhookTimeout)
	defer cancel()

	result, err := h.svc.HandleWebhook(ctx, payload, r.Header.Get(h.svc.SignatureHeader()))
	if err != nil {
		outcome, status = webhookOutcome(err)
		switch outcome {
		case OutcomeSignatureRejected:
			h.log.WarnContext(ctx, "Webhook signature rejected", logger.Outcome(outcome))
			writeError(w, status, "invalid signature")
		case OutcomeMalformed:
			h.log.WarnContext(ctx, "Webhook payload malformed", logger.Outcome(outcome), logger.Error(err))
			writeError(w, status, "malformed event")
		default:
			writeError(w, status, "processing failed")
		}
		return
	}

	outcome, status = string(result), http.StatusOK
	writeJSON(w, status, webhookResponse{Received: true, Outcome: outcome})
}

type checkoutRequest struct {
	Plan       billing.PlanID `json:"plan"`
	SuccessURL string         `json:"success_url"`
	CancelURL  string         `json:"cancel_url"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req checkoutRequest
	if err := decodeJSON(w, r, h.cfg.RequestMaxBody, &req); err != nil {
		h.redirectFailed(w, "checkout", http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		h.redirectFailed(w, "checkout", http.StatusBadRequest, "success_url and cancel_url are required")
		return
	}

	target, err := h.svc.StartCheckout(r.Context(), user, req.Plan, req.SuccessURL, req.CancelURL)
	if err != nil {
		status, msg := redirectStatus(err)
		h.logRedirectError(r.Context(), "Checkout failed", user, status, err)
		h.redirectFailed(w, "checkout", status, msg)
		return
	}
	h.metrics.RedirectTotal.WithLabelValues("checkout", strconv.Itoa(http.StatusOK)).Inc()
	writeJSON(w, http.StatusOK, target)
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req portalRequest
	if err := decodeJSON(w, r, h.cfg.RequestMaxBody, &req); err != nil {
		h.redirectFailed(w, "portal", http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReturnURL == "" {
		h.redirectFailed(w, "portal", http.StatusBadRequest, "return_url is required")
		return
	}

	target, err := h.svc.OpenPortal(r.Context(), user, req.ReturnURL)
	if err != nil {
		status, msg := redirectStatus(err)
		h.logRedirectError(r.Context(), "Portal failed", user, status, err)
		h.redirectFailed(w, "portal", status, msg)
		return
	}
	h.metrics.RedirectTotal.WithLabelValues("portal", strconv.Itoa(http.StatusOK)).Inc()
	writeJSON(w, http.StatusOK, target)
}

type planLimits map[billing.Resource]int64

type subscriptionResponse struct {
	Plan             billing.PlanID    `json:"plan"`
	EffectivePlan    billing.PlanID    `json:"effective_plan"`
	Status           billing.Status    `json:"status"`
	CurrentPeriodEnd *time.Time        `json:"current_period_end,omitempty"`
	Limits           planLimits        `json:"limits"`
	Features         []billing.Feature `json:"features"`
}

// Subscription reports the user's plan together with the entitlements of
// the effective plan.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	sub, err := h.svc.GetByUser(r.Context(), user.ID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Subscription lookup failed", logger.UserID(user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	effective := sub.EffectivePlan()
	plan, _ := h.svc.Catalog().Plan(effective)
	features := plan.Features
	if features == nil {
		features = []billing.Feature{}
	}
	limits := planLimits(plan.Limits)
	if limits == nil {
		limits = planLimits{}
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		Plan:             sub.Plan,
		EffectivePlan:    effective,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		Limits:           limits,
		Features:         features,
	})
}

type planResponse struct {
	ID       billing.PlanID    `json:"id"`
	Name     string            `json:"name"`
	Paid     bool              `json:"paid"`
	Limits   planLimits        `json:"limits"`
	Features []billing.Feature `json:"features"`
}

// Plans lists the catalog without provider price ids.
func (h *Handler) Plans(w http.ResponseWriter, _ *http.Request) {
	plans := h.svc.Catalog().Plans()
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:       p.ID,
			Name:     p.Name,
			Paid:     p.Paid(),
			Limits:   planLimits(p.Limits),
			Features: p.Features,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) redirectFailed(w http.ResponseWriter, flow string, status int, msg string) {
	h.metrics.RedirectTotal.WithLabelValues(flow, strconv.Itoa(status)).Inc()
	writeError(w, status, msg)
}

func (h *Handler) logRedirectError(ctx context.Context, msg string, user billing.User, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.log.Log(ctx, level, msg, logger.UserID(user.ID), slog.Int("status", status), logger.Error(err))
}
