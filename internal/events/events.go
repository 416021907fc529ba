// Package events defines the typed envelopes exchanged with the messaging
// bus. Inbound payloads are decoded into explicit variants and validated at
// the boundary, so a missing field is a decode error rather than a silent
// nil somewhere downstream.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidReference is returned for absent or malformed reference
	// numbers. Complaint intake logs and skips these recipients: with no
	// tenant to attribute the complaint to there is nothing to retry.
	ErrInvalidReference = errors.New("events: invalid reference number")

	// ErrInvalidEnvelope is returned when an inbound payload is missing
	// required fields.
	ErrInvalidEnvelope = errors.New("events: invalid envelope")
)

// Reference links a delivery event back to its originating tenant and issue.
// The legacy wire form carries it as "tenantId_issueId"; internally it is
// always the structured pair.
type Reference struct {
	TenantID string
	IssueID  string
}

// ParseReference decodes the legacy wire form. The split is on the first
// underscore only, so issue identifiers containing underscores survive.
func ParseReference(wire string) (Reference, error) {
	wire = strings.TrimSpace(wire)
	if wire == "" {
		return Reference{}, fmt.Errorf("%w: empty", ErrInvalidReference)
	}

	parts := strings.SplitN(wire, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, wire)
	}

	return Reference{TenantID: parts[0], IssueID: parts[1]}, nil
}

// Wire returns the legacy transport encoding.
func (r Reference) Wire() string {
	return r.TenantID + "_" + r.IssueID
}

// ComplainedRecipient is one recipient from an SES complaint notification.
type ComplainedRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

// ComplaintEvent is the typed form of an SES complaint notification
// envelope.
type ComplaintEvent struct {
	Complaint struct {
		ComplainedRecipients  []ComplainedRecipient `json:"complainedRecipients"`
		ComplaintFeedbackType string                `json:"complaintFeedbackType"`
		UserAgent             string                `json:"userAgent"`
	} `json:"complaint"`
	Mail struct {
		Tags struct {
			ReferenceNumber []string `json:"referenceNumber"`
		} `json:"tags"`
	} `json:"mail"`
}

// DecodeComplaintEvent parses and validates a complaint envelope. At least
// one complained recipient is required; the reference number is validated
// per-recipient by the router because its absence skips rather than fails.
func DecodeComplaintEvent(data []byte) (*ComplaintEvent, error) {
	var evt ComplaintEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if len(evt.Complaint.ComplainedRecipients) == 0 {
		return nil, fmt.Errorf("%w: no complained recipients", ErrInvalidEnvelope)
	}
	return &evt, nil
}

// ReferenceNumber returns the envelope's reference wire string, if any.
func (e *ComplaintEvent) ReferenceNumber() (string, bool) {
	if len(e.Mail.Tags.ReferenceNumber) == 0 {
		return "", false
	}
	return e.Mail.Tags.ReferenceNumber[0], true
}

// CleanupEvent triggers a persistent-bounce cleanup comparing two
// consecutive issues.
type CleanupEvent struct {
	TenantID      string `json:"tenantId"`
	CurrentIssue  string `json:"currentIssue"`
	PreviousIssue string `json:"previousIssue"`
}

// DecodeCleanupEvent parses and validates a cleanup trigger.
func DecodeCleanupEvent(data []byte) (*CleanupEvent, error) {
	var evt CleanupEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if evt.TenantID == "" || evt.CurrentIssue == "" || evt.PreviousIssue == "" {
		return nil, fmt.Errorf("%w: cleanup event requires tenantId, currentIssue, previousIssue", ErrInvalidEnvelope)
	}
	return &evt, nil
}

// EmailDetail is the "Send Email v2" payload published for notification
// emails (admin failure alerts, cleanup summaries).
type EmailDetail struct {
	TenantID string `json:"tenantId"`
	To       struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// NewEmailDetail builds an email payload.
func NewEmailDetail(tenantID, to, subject, html string) EmailDetail {
	d := EmailDetail{TenantID: tenantID, Subject: subject, HTML: html}
	d.To.Email = to
	return d
}
