// Package api exposes the HTTP surface: subscriber-facing unsubscribe
// endpoints, the subscribe form target, and the webhook intake for
// SES delivery events.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/readysetcloud/newsletter-service-sub011/internal/cleanup"
	"github.com/readysetcloud/newsletter-service-sub011/internal/contacts"
	"github.com/readysetcloud/newsletter-service-sub011/internal/events"
	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/httputil"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
	"github.com/readysetcloud/newsletter-service-sub011/internal/unsubscribe"
)

// Basic shape check only; the contact store is the final authority on
// deliverability.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Unsubscriber is the engine contract the handlers drive.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, tenantID, email string, method unsubscribe.Method, metadata map[string]string) bool
}

// FailureNotifier dispatches the admin side channel when an unsubscribe
// silently failed behind a success response.
type FailureNotifier interface {
	UnsubscribeFailure(ctx context.Context, t *tenant.Tenant, email, reason string)
}

// ContactCreator adds new subscribers to a tenant's list.
type ContactCreator interface {
	Create(ctx context.Context, listName, email string, attrs contacts.ContactAttributes) error
}

// CountAdjuster maintains the denormalized subscriber count.
type CountAdjuster interface {
	AdjustSubscriberCount(ctx context.Context, tenantID string, delta int64) error
}

// CleanupRunner executes persistent-bounce cleanups for webhook triggers.
type CleanupRunner interface {
	Run(ctx context.Context, evt *events.CleanupEvent) (*cleanup.Result, error)
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	tenants  tenant.Getter
	engine   Unsubscriber
	codec    *identity.TokenCodec
	notifier FailureNotifier
	contacts ContactCreator
	counts   CountAdjuster
	cleanup  CleanupRunner
}

// NewHandlers wires the handler set.
func NewHandlers(tenants tenant.Getter, engine Unsubscriber, codec *identity.TokenCodec, notifier FailureNotifier, creator ContactCreator, counts CountAdjuster, runner CleanupRunner) *Handlers {
	return &Handlers{
		tenants:  tenants,
		engine:   engine,
		codec:    codec,
		notifier: notifier,
		contacts: creator,
		counts:   counts,
		cleanup:  runner,
	}
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

// ManualUnsubscribe handles the unsubscribe form POST. Once the tenant and
// email pass validation the response is committed to 200 with the standard
// success body: a store failure must not be observable from outside, or the
// endpoint becomes an address-probing oracle. Real failures go to the admin
// side channel instead.
func (h *Handlers) ManualUnsubscribe(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	if tenantID == "" {
		httputil.BadRequest(w, "tenant is required")
		return
	}

	var req unsubscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !emailShape.MatchString(req.Email) {
		httputil.BadRequest(w, "a valid email address is required")
		return
	}

	t, err := h.tenants.Get(r.Context(), tenantID)
	if err == nil && t == nil {
		httputil.NotFound(w, "tenant not found")
		return
	}
	if err != nil {
		// Past this point the privacy contract owns the response; the
		// lookup failure is an internal problem, not the subscriber's.
		logger.Error("tenant lookup failed during unsubscribe", "tenant", tenantID, "err", err)
		httputil.Message(w, "Successfully unsubscribed")
		return
	}

	metadata := map[string]string{
		"ip":        r.RemoteAddr,
		"userAgent": r.UserAgent(),
	}
	if ok := h.engine.Unsubscribe(r.Context(), tenantID, req.Email, unsubscribe.MethodManualForm, metadata); !ok {
		h.notifier.UnsubscribeFailure(r.Context(), t, req.Email, "manual unsubscribe did not complete")
	}

	httputil.Message(w, "Successfully unsubscribed")
}

// LinkUnsubscribe handles clicks on the encrypted unsubscribe link embedded
// in outbound email. The response is always a 200 HTML confirmation page,
// whether or not the token decrypted, the tenant exists, or the removal
// worked. An invalid link and an already-used link must be
// indistinguishable to the person holding it.
func (h *Handlers) LinkUnsubscribe(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")

	t, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		logger.Error("tenant lookup failed during link unsubscribe", "tenant", tenantID, "err", err)
	}

	token := r.URL.Query().Get("email")
	email, decErr := h.codec.Decrypt(token)
	switch {
	case decErr != nil:
		logger.Warn("unsubscribe link token rejected", "tenant", tenantID, "err", decErr)
	case t == nil:
		logger.Warn("unsubscribe link for unknown tenant", "tenant", tenantID)
	default:
		metadata := map[string]string{
			"ip":        r.RemoteAddr,
			"userAgent": r.UserAgent(),
		}
		if ok := h.engine.Unsubscribe(r.Context(), tenantID, email, unsubscribe.MethodEncryptedLink, metadata); !ok {
			h.notifier.UnsubscribeFailure(r.Context(), t, email, "link unsubscribe did not complete")
		}
	}

	httputil.HTML(w, renderConfirmation(t))
}

type subscribeRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Subscribe adds a contact to the tenant's list from the signup form.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")

	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !emailShape.MatchString(req.Email) {
		httputil.BadRequest(w, "a valid email address is required")
		return
	}

	t, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		logger.Error("tenant lookup failed during subscribe", "tenant", tenantID, "err", err)
		httputil.Error(w, http.StatusInternalServerError, "unable to subscribe right now")
		return
	}
	if t == nil {
		httputil.NotFound(w, "tenant not found")
		return
	}

	attrs := contacts.ContactAttributes{FirstName: req.FirstName, LastName: req.LastName}
	if err := h.contacts.Create(r.Context(), t.ListName, req.Email, attrs); err != nil {
		if errors.Is(err, contacts.ErrAlreadySubscribed) {
			httputil.Message(w, "Already subscribed")
			return
		}
		logger.Error("subscribe failed", "tenant", tenantID, "email", req.Email, "err", err)
		httputil.Error(w, http.StatusInternalServerError, "unable to subscribe right now")
		return
	}

	if err := h.counts.AdjustSubscriberCount(r.Context(), tenantID, 1); err != nil {
		logger.Warn("subscriber count increment failed", "tenant", tenantID, "err", err)
	}

	httputil.JSON(w, http.StatusCreated, httputil.ErrorResponse{Message: "Successfully subscribed"})
}

type statsResponse struct {
	TenantID        string `json:"tenantId"`
	Name            string `json:"name"`
	SubscriberCount int64  `json:"subscriberCount"`
}

// Stats returns the tenant's denormalized subscriber count. Reads go
// through the tenant cache, so the dashboard polling this stays off the
// ledger's hot path.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")

	t, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		logger.Error("tenant lookup failed during stats read", "tenant", tenantID, "err", err)
		httputil.Error(w, http.StatusInternalServerError, "unable to load stats")
		return
	}
	if t == nil {
		httputil.NotFound(w, "tenant not found")
		return
	}

	httputil.OK(w, statsResponse{TenantID: t.ID, Name: t.Name, SubscriberCount: t.SubscriberCount})
}

type complaintIntakeResponse struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// ComplaintIntake consumes SES complaint notifications. Each complained
// recipient is attributed to a tenant via the envelope's reference number
// and unsubscribed with method complaint. Recipients whose reference is
// absent or malformed are logged and skipped: with no tenant to attribute
// the complaint to there is nothing to retry.
func (h *Handlers) ComplaintIntake(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "unreadable payload")
		return
	}

	evt, err := events.DecodeComplaintEvent(payload)
	if err != nil {
		logger.Warn("complaint envelope rejected", "err", err)
		httputil.BadRequest(w, "invalid complaint payload")
		return
	}

	var resp complaintIntakeResponse
	wire, _ := evt.ReferenceNumber()
	ref, refErr := events.ParseReference(wire)

	for _, recipient := range evt.Complaint.ComplainedRecipients {
		if refErr != nil {
			logger.Warn("complaint skipped, unusable reference number",
				"reference", wire, "email", recipient.EmailAddress, "err", refErr)
			resp.Skipped++
			continue
		}

		metadata := map[string]string{
			"complaintFeedbackType": evt.Complaint.ComplaintFeedbackType,
			"userAgent":             evt.Complaint.UserAgent,
			"issueId":               ref.IssueID,
		}
		if ok := h.engine.Unsubscribe(r.Context(), ref.TenantID, recipient.EmailAddress, unsubscribe.MethodComplaint, metadata); !ok {
			if t, err := h.tenants.Get(r.Context(), ref.TenantID); err == nil && t != nil {
				h.notifier.UnsubscribeFailure(r.Context(), t, recipient.EmailAddress, "complaint unsubscribe did not complete")
			}
		}
		resp.Processed++
	}

	httputil.OK(w, resp)
}

// IssueCleanup triggers the persistent-bounce cleanup for a freshly sent
// issue. The runner guards idempotency itself, so bus redeliveries of the
// same event are harmless.
func (h *Handlers) IssueCleanup(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "unreadable payload")
		return
	}

	evt, err := events.DecodeCleanupEvent(payload)
	if err != nil {
		logger.Warn("cleanup trigger rejected", "err", err)
		httputil.BadRequest(w, "invalid cleanup payload")
		return
	}

	result, err := h.cleanup.Run(r.Context(), evt)
	if err != nil {
		logger.Error("cleanup run failed", "tenant", evt.TenantID, "issue", evt.CurrentIssue, "err", err)
		httputil.Error(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	httputil.OK(w, map[string]any{
		"skipped":    result.Skipped,
		"qualifying": len(result.Qualifying),
		"removed":    len(result.Removed),
		"failed":     len(result.Failed),
	})
}
