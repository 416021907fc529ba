// Package notify sends operational emails to tenant admins through the
// event bus. Every send here is advisory: a failed notification is logged
// and swallowed, never propagated into the request path that triggered it.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/readysetcloud/newsletter-service-sub011/internal/events"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
)

// EmailPublisher is the slice of the bus publisher notifications need.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, detail events.EmailDetail) error
}

// Notifier builds and dispatches admin notification emails.
type Notifier struct {
	publisher EmailPublisher
}

// New creates a Notifier backed by the given publisher.
func New(publisher EmailPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// UnsubscribeFailure alerts the tenant admin that an unsubscribe request
// could not be completed and needs manual removal. The subscriber already
// got a success response, so the admin is the only one who can finish the
// job.
func (n *Notifier) UnsubscribeFailure(ctx context.Context, t *tenant.Tenant, email, reason string) {
	if t == nil || t.AdminEmail == "" {
		logger.Warn("no admin address for failure notification", "email", email)
		return
	}

	subject := fmt.Sprintf("[%s] Manual unsubscribe required", t.Name)
	body := fmt.Sprintf(
		"<p>An unsubscribe request for <strong>%s</strong> could not be completed automatically.</p>"+
			"<p>Reason: %s</p>"+
			"<p>Please remove this address from the list manually.</p>",
		html.EscapeString(email), html.EscapeString(reason))

	n.send(ctx, t, events.NewEmailDetail(t.ID, t.AdminEmail, subject, body))
}

// CleanupSummary tells the tenant admin how many persistently bouncing
// subscribers were removed after an issue went out. Only called when at
// least one was removed.
func (n *Notifier) CleanupSummary(ctx context.Context, t *tenant.Tenant, issueID string, removed int) {
	if t == nil || t.AdminEmail == "" {
		return
	}

	subject := fmt.Sprintf("[%s] %d bounced subscribers removed", t.Name, removed)
	body := fmt.Sprintf(
		"<p>After issue <strong>%s</strong>, %d subscribers were removed for bouncing on two consecutive issues.</p>"+
			"<p>Your subscriber count has been updated to reflect the removals.</p>",
		html.EscapeString(issueID), removed)

	n.send(ctx, t, events.NewEmailDetail(t.ID, t.AdminEmail, subject, body))
}

func (n *Notifier) send(ctx context.Context, t *tenant.Tenant, detail events.EmailDetail) {
	if err := n.publisher.PublishEmail(ctx, detail); err != nil {
		logger.Error("admin notification dispatch failed", "tenant", t.ID, "subject", detail.Subject, "err", err)
	}
}
