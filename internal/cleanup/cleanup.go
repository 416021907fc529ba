// Package cleanup removes subscribers whose deliveries failed on two
// consecutive issues. A single bounce is forgiven; the same address failing
// across both the current and the previous issue is the bar for automatic
// removal.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/readysetcloud/newsletter-service-sub011/internal/events"
	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

// IssueLedger reads and marks per-issue delivery stats.
type IssueLedger interface {
	GetIssueStats(ctx context.Context, tenantID, issueID string) (*ledger.IssueStats, error)
	SetIssueCleaned(ctx context.Context, tenantID, issueID string, removed int64) error
}

// ContactStore is the slice of the contact-list store the cleanup needs.
type ContactStore interface {
	Delete(ctx context.Context, listName, email string) error
	Count(ctx context.Context, listName string) (int64, error)
}

// TenantDirectory resolves tenants and overwrites their subscriber counts.
type TenantDirectory interface {
	Get(ctx context.Context, tenantID string) (*tenant.Tenant, error)
	SetSubscriberCount(ctx context.Context, tenantID string, count int64) error
}

// SummaryNotifier tells the tenant admin what was removed.
type SummaryNotifier interface {
	CleanupSummary(ctx context.Context, t *tenant.Tenant, issueID string, removed int)
}

// Result summarizes one cleanup run for the operator-facing logs.
type Result struct {
	Skipped    bool
	Qualifying []string
	Removed    []string
	Failed     []string
}

// Runner executes persistent-bounce cleanups.
type Runner struct {
	issues      IssueLedger
	contacts    ContactStore
	tenants     TenantDirectory
	notifier    SummaryNotifier
	concurrency int
	maxRetries  int
}

// NewRunner wires a cleanup runner. Concurrency caps in-flight contact
// deletions to respect the store's request-rate limits; retries are bounded
// attempts per address, never unbounded backoff.
func NewRunner(issues IssueLedger, contacts ContactStore, tenants TenantDirectory, notifier SummaryNotifier, concurrency, maxRetries int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Runner{
		issues:      issues,
		contacts:    contacts,
		tenants:     tenants,
		notifier:    notifier,
		concurrency: concurrency,
		maxRetries:  maxRetries,
	}
}

// Run processes one cleanup trigger. The event may be redelivered by the
// bus, so the current issue's Cleaned marker short-circuits reruns before
// any mutation happens.
func (r *Runner) Run(ctx context.Context, evt *events.CleanupEvent) (*Result, error) {
	t, err := r.tenants.Get(ctx, evt.TenantID)
	if err != nil {
		return nil, fmt.Errorf("resolving tenant %s: %w", evt.TenantID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("tenant %s not found", evt.TenantID)
	}

	current, err := r.issues.GetIssueStats(ctx, evt.TenantID, evt.CurrentIssue)
	if err != nil {
		return nil, fmt.Errorf("loading current issue stats: %w", err)
	}
	if current == nil {
		logger.Warn("no stats for current issue, nothing to clean", "tenant", evt.TenantID, "issue", evt.CurrentIssue)
		return &Result{}, nil
	}
	if current.Cleaned != nil {
		logger.Info("issue already cleaned, skipping redelivered event",
			"tenant", evt.TenantID, "issue", evt.CurrentIssue, "removed", *current.Cleaned)
		return &Result{Skipped: true}, nil
	}

	previous, err := r.issues.GetIssueStats(ctx, evt.TenantID, evt.PreviousIssue)
	if err != nil {
		return nil, fmt.Errorf("loading previous issue stats: %w", err)
	}

	result := &Result{Qualifying: intersect(current, previous)}
	result.Removed, result.Failed = r.removeAll(ctx, t.ListName, result.Qualifying)

	// Authoritative recount instead of decrement arithmetic, so any drift
	// accumulated by the best-effort counters heals here.
	if count, err := r.contacts.Count(ctx, t.ListName); err != nil {
		logger.Warn("subscriber recount failed", "tenant", t.ID, "err", err)
	} else if err := r.tenants.SetSubscriberCount(ctx, t.ID, count); err != nil {
		logger.Warn("subscriber count update failed", "tenant", t.ID, "err", err)
	}

	if err := r.issues.SetIssueCleaned(ctx, evt.TenantID, evt.CurrentIssue, int64(len(result.Removed))); err != nil {
		return result, fmt.Errorf("marking issue cleaned: %w", err)
	}

	if len(result.Removed) > 0 {
		r.notifier.CleanupSummary(ctx, t, evt.CurrentIssue, len(result.Removed))
	}

	logger.Info("persistent-bounce cleanup finished",
		"tenant", evt.TenantID, "issue", evt.CurrentIssue,
		"qualifying", len(result.Qualifying), "removed", len(result.Removed), "failed", len(result.Failed))
	return result, nil
}

// intersect returns the addresses present in both issues' failure lists,
// case-normalized and deduplicated, in current-issue order.
func intersect(current, previous *ledger.IssueStats) []string {
	if previous == nil || len(previous.FailedAddresses) == 0 || len(current.FailedAddresses) == 0 {
		return nil
	}

	prior := make(map[string]bool, len(previous.FailedAddresses))
	for _, addr := range previous.FailedAddresses {
		prior[identity.Normalize(addr)] = true
	}

	var both []string
	seen := make(map[string]bool)
	for _, addr := range current.FailedAddresses {
		norm := identity.Normalize(addr)
		if prior[norm] && !seen[norm] {
			both = append(both, norm)
			seen[norm] = true
		}
	}
	return both
}

// removeAll deletes the given addresses with bounded concurrency and
// bounded per-address retries.
func (r *Runner) removeAll(ctx context.Context, listName string, addresses []string) (removed, failed []string) {
	if len(addresses) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.concurrency)
	)

	for _, addr := range addresses {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := r.deleteWithRetry(ctx, listName, addr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("persistent bounce removal failed", "email", addr, "err", err)
				failed = append(failed, addr)
				return
			}
			removed = append(removed, addr)
		}(addr)
	}

	wg.Wait()
	return removed, failed
}

func (r *Runner) deleteWithRetry(ctx context.Context, listName, addr string) error {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: true}

	var err error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err = r.contacts.Delete(ctx, listName, addr); err == nil {
			return nil
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
