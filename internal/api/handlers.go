package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/footbar/fulfillment/internal/fulfill"
	"github.com/footbar/fulfillment/internal/ingest"
	"github.com/footbar/fulfillment/internal/leads"
	"github.com/footbar/fulfillment/internal/order"
	"github.com/footbar/fulfillment/internal/pkg/httputil"
	"github.com/footbar/fulfillment/internal/pkg/logger"
	"github.com/footbar/fulfillment/internal/shopify"
)

// Fulfiller runs one fulfillment pass; satisfied by *fulfill.Service.
type Fulfiller interface {
	Process(ctx context.Context, o order.Order) (*fulfill.Result, error)
}

// PollRunner drives one reconciliation pass; satisfied by *ingest.Poller.
type PollRunner interface {
	Run(ctx context.Context, src ingest.Source) (*ingest.Summary, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	fulfiller Fulfiller
	poller    PollRunner
	sources   map[string]ingest.Source
	leadStore leads.Store
}

// NewHandlers wires the API handlers. leadStore may be nil when the
// lead-capture endpoint is disabled.
func NewHandlers(fulfiller Fulfiller, poller PollRunner, sources map[string]ingest.Source, leadStore leads.Store) *Handlers {
	return &Handlers{
		fulfiller: fulfiller,
		poller:    poller,
		sources:   sources,
		leadStore: leadStore,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy"})
}

// ShopifyWebhook handles one pushed purchase. Validation problems are the
// caller's to fix (400); a mid-order abort returns 500 with the partial
// result so the operator can see which keys already went out.
func (h *Handlers) ShopifyWebhook(w http.ResponseWriter, r *http.Request) {
	var payload shopify.WebhookPayload
	if !httputil.Decode(w, r, &payload) {
		return
	}

	result, err := h.fulfiller.Process(r.Context(), payload.Normalize())
	if err != nil {
		if fulfill.IsValidation(err) {
			httputil.BadRequest(w, err.Error())
			return
		}
		logger.Error("webhook fulfillment failed",
			"order_id", payload.OrderID, "error", err)
		httputil.ErrorWithDetails(w, http.StatusInternalServerError, err.Error(), result)
		return
	}

	httputil.OK(w, map[string]interface{}{
		"message":      "keys sent",
		"total_keys":   result.TotalKeys,
		"details":      result.Details,
		"skipped_skus": result.SkippedSkus,
	})
}

// PollSource triggers one reconciliation pass for a marketplace.
func (h *Handlers) PollSource(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "source"))
	src, ok := h.sources[name]
	if !ok {
		httputil.BadRequest(w, "unknown source: "+name)
		return
	}

	summary, err := h.poller.Run(r.Context(), src)
	if err != nil {
		logger.Error("poll pass failed", "source", name, "error", err)
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, summary)
}

// CaptureLead appends one investor-lead form submission.
func (h *Handlers) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var lead leads.Lead
	if !httputil.Decode(w, r, &lead) {
		return
	}
	if strings.TrimSpace(lead.Name) == "" || !strings.Contains(lead.Email, "@") {
		httputil.BadRequest(w, "name and email are required")
		return
	}

	if err := h.leadStore.Append(r.Context(), lead); err != nil {
		logger.Error("lead append failed", "error", err)
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]string{"message": "lead recorded"})
}
