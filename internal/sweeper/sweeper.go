// Package sweeper implements the monthly reconciliation batch. It is the
// eventual-consistency backstop for the real-time unsubscribe paths: audit
// records that never propagated to the contact-list store get repaired, and
// records past the staleness window get pruned so the audit log stays
// bounded.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

// AuditLedger is the slice of the ledger the sweep reads and prunes.
type AuditLedger interface {
	ListUnsubscribes(ctx context.Context, tenantID string) ([]ledger.UnsubscribeRecord, error)
	DeleteUnsubscribe(ctx context.Context, tenantID, sortKey string) error
}

// ContactStore lists and deletes contacts on a tenant's list.
type ContactStore interface {
	ListEmails(ctx context.Context, listName string) ([]string, error)
	Delete(ctx context.Context, listName, email string) error
}

// TenantLister discovers the tenants to walk.
type TenantLister interface {
	List(ctx context.Context) ([]tenant.Tenant, error)
}

// Report aggregates one sweep's counters across all tenants. Per-tenant
// failures are captured here rather than aborting the sweep.
type Report struct {
	StartedAt            time.Time         `json:"startedAt"`
	FinishedAt           time.Time         `json:"finishedAt"`
	TenantsProcessed     int               `json:"tenantsProcessed"`
	RecordsFound         int               `json:"recordsFound"`
	StaleRemoved         int               `json:"staleRemoved"`
	InconsistenciesFound int               `json:"inconsistenciesFound"`
	TenantErrors         map[string]string `json:"tenantErrors,omitempty"`
}

// Sweeper walks every tenant and reconciles audit records against the live
// contact list.
type Sweeper struct {
	tenants   TenantLister
	audit     AuditLedger
	contacts  ContactStore
	staleness time.Duration
	now       func() time.Time
}

// New creates a sweeper. stalenessDays is the age past which an audit
// record is pruned without further checks; records exactly at the boundary
// are kept.
func New(tenants TenantLister, audit AuditLedger, contacts ContactStore, stalenessDays int) *Sweeper {
	if stalenessDays < 1 {
		stalenessDays = 30
	}
	return &Sweeper{
		tenants:   tenants,
		audit:     audit,
		contacts:  contacts,
		staleness: time.Duration(stalenessDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Run executes one full sweep. Tenants are processed sequentially; the
// write volume is small and correctness beats throughput here. A tenant
// error is recorded in the report and the sweep moves on.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: s.now().UTC(), TenantErrors: make(map[string]string)}

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}

	for _, t := range tenants {
		if err := s.sweepTenant(ctx, &t, report); err != nil {
			logger.Error("tenant sweep failed", "tenant", t.ID, "err", err)
			report.TenantErrors[t.ID] = err.Error()
		}
		report.TenantsProcessed++
	}

	report.FinishedAt = s.now().UTC()
	logger.Info("sweep finished",
		"tenants", report.TenantsProcessed, "records", report.RecordsFound,
		"stale_removed", report.StaleRemoved, "inconsistencies", report.InconsistenciesFound,
		"tenant_errors", len(report.TenantErrors))
	return report, nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, t *tenant.Tenant, report *Report) error {
	records, err := s.audit.ListUnsubscribes(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("listing audit records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	report.RecordsFound += len(records)

	// One full membership fetch per tenant, then map lookups per record.
	emails, err := s.contacts.ListEmails(ctx, t.ListName)
	if err != nil {
		return fmt.Errorf("listing contacts: %w", err)
	}
	live := make(map[string]bool, len(emails))
	for _, email := range emails {
		live[identity.Normalize(email)] = true
	}

	now := s.now()
	for _, rec := range records {
		// A record older than the staleness window no longer needs policing.
		// Strictly older: a record exactly at the boundary gets one more
		// sweep. Unparseable timestamps count as stale.
		if now.Sub(rec.Time()) > s.staleness {
			if err := s.audit.DeleteUnsubscribe(ctx, t.ID, rec.SK); err != nil {
				logger.Warn("stale audit record deletion failed", "tenant", t.ID, "sk", rec.SK, "err", err)
				continue
			}
			report.StaleRemoved++
			continue
		}

		// Still within the window: the address must be gone from the live
		// list. If it is present, the real-time unsubscribe never fully
		// propagated. Repair now; on failure next month's sweep retries,
		// since the record survives until the window closes.
		if !live[identity.Normalize(rec.Email)] {
			continue
		}
		report.InconsistenciesFound++
		if err := s.contacts.Delete(ctx, t.ListName, rec.Email); err != nil {
			logger.Error("inconsistency repair failed", "tenant", t.ID, "email", rec.Email, "err", err)
			continue
		}
		logger.Info("inconsistency repaired", "tenant", t.ID, "email", rec.Email, "method", rec.Method)
	}

	return nil
}
