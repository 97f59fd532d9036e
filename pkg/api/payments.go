package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/hutch/pkg/types"
)

// webhookSignatureHeader carries the provider's HMAC over the raw body.
const webhookSignatureHeader = "X-Webhook-Signature"

type subscriptionView struct {
	State         types.SubscriptionState `json:"state"`
	Plan          string                  `json:"plan"`
	PeriodStart   *time.Time              `json:"period_start"`
	PeriodEnd     *time.Time              `json:"period_end"`
	IsActive      bool                    `json:"is_active"`
	DaysRemaining int                     `json:"days_remaining"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := s.decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	result, err := s.billing.Checkout(r.Context(), currentUser(r.Context()), req.PlanID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"subscription_id": result.SubscriptionID,
		"short_url":       result.ShortURL,
	})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	status, err := s.billing.CurrentSubscription(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, subscriptionView{
		State:         status.State,
		Plan:          status.PlanID,
		PeriodStart:   status.PeriodStart,
		PeriodEnd:     status.PeriodEnd,
		IsActive:      status.IsActive,
		DaysRemaining: status.DaysRemaining,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := s.decodeOptional(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	endDate, err := s.billing.Cancel(r.Context(), currentUser(r.Context()).ID, req.Reason)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{"end_date": endDate})
}

// handleWebhook verifies and applies a provider event. The signature
// covers the raw bytes, so the body is read before any JSON decoding.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != s.cfg.Payment.Provider {
		s.renderError(w, r, types.NewError(types.KindNotFound, "unknown payment provider"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.renderError(w, r, types.NewError(types.KindValidation, "failed to read request body"))
		return
	}

	outcome, err := s.billing.ProcessWebhook(r.Context(), body, r.Header.Get(webhookSignatureHeader))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{"status": string(outcome)})
}
