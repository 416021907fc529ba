package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		wire    string
		want    Reference
		wantErr bool
	}{
		{"simple", "acme_2026-08", Reference{TenantID: "acme", IssueID: "2026-08"}, false},
		{"issue with underscores", "acme_issue_42_final", Reference{TenantID: "acme", IssueID: "issue_42_final"}, false},
		{"empty", "", Reference{}, true},
		{"whitespace", "   ", Reference{}, true},
		{"no delimiter", "acme", Reference{}, true},
		{"empty tenant", "_issue", Reference{}, true},
		{"empty issue", "acme_", Reference{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.wire)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReference_WireRoundTrip(t *testing.T) {
	ref := Reference{TenantID: "acme", IssueID: "2026-08"}
	got, err := ParseReference(ref.Wire())
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestDecodeComplaintEvent(t *testing.T) {
	payload := []byte(`{
		"complaint": {
			"complainedRecipients": [{"emailAddress": "jane@x.com"}],
			"complaintFeedbackType": "abuse",
			"userAgent": "Yahoo!-Mail-Feedback/2.0"
		},
		"mail": {"tags": {"referenceNumber": ["acme_2026-08"]}}
	}`)

	evt, err := DecodeComplaintEvent(payload)
	require.NoError(t, err)

	assert.Len(t, evt.Complaint.ComplainedRecipients, 1)
	assert.Equal(t, "jane@x.com", evt.Complaint.ComplainedRecipients[0].EmailAddress)
	assert.Equal(t, "abuse", evt.Complaint.ComplaintFeedbackType)

	ref, ok := evt.ReferenceNumber()
	assert.True(t, ok)
	assert.Equal(t, "acme_2026-08", ref)
}

func TestDecodeComplaintEvent_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"no recipients", `{"complaint": {"complainedRecipients": []}}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeComplaintEvent([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
		})
	}
}

func TestDecodeComplaintEvent_NoReference(t *testing.T) {
	evt, err := DecodeComplaintEvent([]byte(`{
		"complaint": {"complainedRecipients": [{"emailAddress": "jane@x.com"}]}
	}`))
	require.NoError(t, err)

	_, ok := evt.ReferenceNumber()
	assert.False(t, ok)
}

func TestDecodeCleanupEvent(t *testing.T) {
	evt, err := DecodeCleanupEvent([]byte(`{
		"tenantId": "acme",
		"currentIssue": "2026-08",
		"previousIssue": "2026-07"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "acme", evt.TenantID)
	assert.Equal(t, "2026-08", evt.CurrentIssue)
	assert.Equal(t, "2026-07", evt.PreviousIssue)
}

func TestDecodeCleanupEvent_MissingFields(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"tenantId": "acme"}`,
		`{"tenantId": "acme", "currentIssue": "2026-08"}`,
		`{"currentIssue": "2026-08", "previousIssue": "2026-07"}`,
	}

	for _, payload := range payloads {
		_, err := DecodeCleanupEvent([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidEnvelope, "payload %s", payload)
	}
}

func TestNewEmailDetail(t *testing.T) {
	d := NewEmailDetail("acme", "admin@acme.com", "subject", "<p>body</p>")
	assert.Equal(t, "acme", d.TenantID)
	assert.Equal(t, "admin@acme.com", d.To.Email)
	assert.Equal(t, "subject", d.Subject)
	assert.Equal(t, "<p>body</p>", d.HTML)
}
