package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

var sweepNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type fakeAudit struct {
	records map[string][]ledger.UnsubscribeRecord
	deleted []string
	listErr error
}

func (f *fakeAudit) ListUnsubscribes(_ context.Context, tenantID string) ([]ledger.UnsubscribeRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records[tenantID], nil
}

func (f *fakeAudit) DeleteUnsubscribe(_ context.Context, tenantID, sortKey string) error {
	f.deleted = append(f.deleted, tenantID+"/"+sortKey)
	return nil
}

type fakeContacts struct {
	lists   map[string][]string
	deleted []string
}

func (f *fakeContacts) ListEmails(_ context.Context, listName string) ([]string, error) {
	return f.lists[listName], nil
}

func (f *fakeContacts) Delete(_ context.Context, _, email string) error {
	f.deleted = append(f.deleted, email)
	return nil
}

type fakeTenants struct {
	tenants []tenant.Tenant
}

func (f *fakeTenants) List(_ context.Context) ([]tenant.Tenant, error) {
	return f.tenants, nil
}

func record(sk, email string, age time.Duration) ledger.UnsubscribeRecord {
	return ledger.UnsubscribeRecord{
		SK:        sk,
		Email:     email,
		Method:    "manual-form",
		Timestamp: sweepNow.Add(-age).Format(time.RFC3339),
	}
}

func newTestSweeper(audit AuditLedger, contacts ContactStore, tenants ...tenant.Tenant) *Sweeper {
	s := New(&fakeTenants{tenants: tenants}, audit, contacts, 30)
	s.now = func() time.Time { return sweepNow }
	return s
}

func TestSweeper_StalenessBoundary(t *testing.T) {
	audit := &fakeAudit{records: map[string][]ledger.UnsubscribeRecord{
		"acme": {
			record("exactly-30", "a@x.com", 30*24*time.Hour),
			record("just-over", "b@x.com", 30*24*time.Hour+time.Second),
			record("31-days", "c@x.com", 31*24*time.Hour),
		},
	}}
	contacts := &fakeContacts{lists: map[string][]string{"acme-list": {}}}

	report, err := newTestSweeper(audit, contacts, tenant.Tenant{ID: "acme", ListName: "acme-list"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.StaleRemoved)
	assert.ElementsMatch(t, []string{"acme/just-over", "acme/31-days"}, audit.deleted,
		"a record exactly at the boundary survives one more sweep")
}

func TestSweeper_InconsistencyRepair(t *testing.T) {
	audit := &fakeAudit{records: map[string][]ledger.UnsubscribeRecord{
		"acme": {
			record("lingering", "Still@X.com", 5*24*time.Hour),
			record("propagated", "gone@x.com", 5*24*time.Hour),
		},
	}}
	contacts := &fakeContacts{lists: map[string][]string{"acme-list": {"still@x.com", "other@x.com"}}}

	report, err := newTestSweeper(audit, contacts, tenant.Tenant{ID: "acme", ListName: "acme-list"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.InconsistenciesFound)
	assert.Equal(t, []string{"Still@X.com"}, contacts.deleted,
		"only the address still on the live list triggers a repair attempt")
	assert.Empty(t, audit.deleted, "fresh records are never pruned")
}

func TestSweeper_UnparseableTimestampIsStale(t *testing.T) {
	audit := &fakeAudit{records: map[string][]ledger.UnsubscribeRecord{
		"acme": {{SK: "broken", Email: "a@x.com", Timestamp: "not-a-time"}},
	}}
	contacts := &fakeContacts{lists: map[string][]string{"acme-list": {"a@x.com"}}}

	report, err := newTestSweeper(audit, contacts, tenant.Tenant{ID: "acme", ListName: "acme-list"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.StaleRemoved)
	assert.Zero(t, report.InconsistenciesFound)
	assert.Empty(t, contacts.deleted)
}

func TestSweeper_SkipsTenantsWithNoRecords(t *testing.T) {
	audit := &fakeAudit{records: map[string][]ledger.UnsubscribeRecord{}}
	contacts := &fakeContacts{}

	report, err := newTestSweeper(audit, contacts,
		tenant.Tenant{ID: "quiet", ListName: "quiet-list"},
	).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TenantsProcessed)
	assert.Zero(t, report.RecordsFound)
}

func TestSweeper_TenantErrorIsNotFatal(t *testing.T) {
	calls := 0
	audit := &brokenFirstAudit{calls: &calls, inner: &fakeAudit{records: map[string][]ledger.UnsubscribeRecord{
		"second": {record("r", "a@x.com", 40*24*time.Hour)},
	}}}
	contacts := &fakeContacts{lists: map[string][]string{"second-list": {}}}

	report, err := newTestSweeper(audit, contacts,
		tenant.Tenant{ID: "first", ListName: "first-list"},
		tenant.Tenant{ID: "second", ListName: "second-list"},
	).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TenantsProcessed)
	assert.Contains(t, report.TenantErrors, "first")
	assert.Equal(t, 1, report.StaleRemoved, "the second tenant is still processed")
}

type brokenFirstAudit struct {
	calls *int
	inner *fakeAudit
}

func (b *brokenFirstAudit) ListUnsubscribes(ctx context.Context, tenantID string) ([]ledger.UnsubscribeRecord, error) {
	*b.calls++
	if tenantID == "first" {
		return nil, errors.New("dynamo throttled")
	}
	return b.inner.ListUnsubscribes(ctx, tenantID)
}

func (b *brokenFirstAudit) DeleteUnsubscribe(ctx context.Context, tenantID, sortKey string) error {
	return b.inner.DeleteUnsubscribe(ctx, tenantID, sortKey)
}
