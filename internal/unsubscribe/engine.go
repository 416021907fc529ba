// Package unsubscribe implements the single choke point through which an
// email address is ever removed from a tenant's audience, regardless of
// trigger source.
package unsubscribe

import (
	"context"
	"time"

	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

// Method identifies what triggered an unsubscribe.
type Method string

const (
	MethodComplaint     Method = "complaint"
	MethodManualForm    Method = "manual-form"
	MethodEncryptedLink Method = "encrypted-link"
	MethodAutoBounce    Method = "auto-bounce"
)

// Valid reports whether m is one of the enumerated methods.
func (m Method) Valid() bool {
	switch m {
	case MethodComplaint, MethodManualForm, MethodEncryptedLink, MethodAutoBounce:
		return true
	}
	return false
}

// TenantDirectory resolves tenants and maintains their denormalized
// subscriber counts.
type TenantDirectory interface {
	Get(ctx context.Context, tenantID string) (*tenant.Tenant, error)
	AdjustSubscriberCount(ctx context.Context, tenantID string, delta int64) error
}

// ContactLists is the slice of the contact-list store the engine needs.
// Deleting an absent contact must succeed.
type ContactLists interface {
	Delete(ctx context.Context, listName, email string) error
}

// AuditLog records unsubscribe events for the reconciliation sweep.
type AuditLog interface {
	RecordUnsubscribe(ctx context.Context, tenantID string, rec ledger.UnsubscribeRecord) error
}

// Engine removes subscribers and leaves the audit trail behind.
type Engine struct {
	tenants  TenantDirectory
	contacts ContactLists
	audit    AuditLog
}

// NewEngine wires the engine to its collaborators.
func NewEngine(tenants TenantDirectory, contacts ContactLists, audit AuditLog) *Engine {
	return &Engine{tenants: tenants, contacts: contacts, audit: audit}
}

// Unsubscribe removes email from the tenant's contact list, records the
// audit entry, and decrements the subscriber count. Returns true only when
// the contact-list deletion succeeded (an absent contact counts as success,
// so repeated calls are safe). It never notifies anyone itself; the caller
// owns the admin-notification fallback when this returns false.
//
// The audit record is written before the deletion: if the process dies
// between the two, the record is exactly what lets the monthly sweep detect
// and repair the half-done unsubscribe.
func (e *Engine) Unsubscribe(ctx context.Context, tenantID, email string, method Method, metadata map[string]string) bool {
	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		logger.Error("tenant lookup failed", "tenant", tenantID, "err", err)
		return false
	}
	if t == nil {
		logger.Warn("unsubscribe for unknown tenant", "tenant", tenantID)
		return false
	}

	rec := ledger.UnsubscribeRecord{
		Email:     identity.Normalize(email),
		Method:    string(method),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}
	if err := e.audit.RecordUnsubscribe(ctx, tenantID, rec); err != nil {
		// The removal still has to happen; the audit trail is best-effort
		// when the ledger itself is unavailable.
		logger.Error("audit record write failed", "tenant", tenantID, "email", email, "err", err)
	}

	if err := e.contacts.Delete(ctx, t.ListName, email); err != nil {
		logger.Error("contact deletion failed", "tenant", tenantID, "email", email, "method", method, "err", err)
		return false
	}

	if err := e.tenants.AdjustSubscriberCount(ctx, tenantID, -1); err != nil {
		logger.Warn("subscriber count decrement failed", "tenant", tenantID, "err", err)
	}

	logger.Info("subscriber unsubscribed", "tenant", tenantID, "email", email, "method", method)
	return true
}
