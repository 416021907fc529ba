package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// DetailTypeSendEmail is the detail-type consumed by the email-sending
// pipeline downstream of the bus.
const DetailTypeSendEmail = "Send Email v2"

// Publisher puts events on the messaging bus. Fire-and-forget from the
// caller's perspective: callers decide whether a publish failure matters.
type Publisher struct {
	client  *eventbridge.Client
	busName string
	source  string
}

// NewPublisher creates a bus publisher.
func NewPublisher(client *eventbridge.Client, busName, source string) *Publisher {
	return &Publisher{client: client, busName: busName, source: source}
}

// PublishEmail puts one Send Email v2 event on the bus.
func (p *Publisher) PublishEmail(ctx context.Context, detail EmailDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshaling email detail: %w", err)
	}

	entry := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(p.source),
		DetailType: aws.String(DetailTypeSendEmail),
		Detail:     aws.String(string(data)),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("publishing email event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		return fmt.Errorf("publishing email event: %d entries rejected", out.FailedEntryCount)
	}
	return nil
}
