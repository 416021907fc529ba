// Package ledger persists the service's own durable records in the shared
// DynamoDB table: recent-unsubscribe audit records and per-issue delivery
// stats. Audit records are append-only; the only mutation ever applied to
// one is its deletion by the reconciliation sweep.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// UnsubscribeRecord is one audit entry per (tenant, email, unsubscribe
// event), written atomically with the unsubscribe attempt it documents.
type UnsubscribeRecord struct {
	PK        string            `dynamodbav:"PK"`
	SK        string            `dynamodbav:"SK"`
	Email     string            `dynamodbav:"Email"`
	Method    string            `dynamodbav:"Method"`
	Timestamp string            `dynamodbav:"Timestamp"`
	Metadata  map[string]string `dynamodbav:"Metadata,omitempty"`
}

// Time parses the record's timestamp. A zero time is returned for records
// with unparseable timestamps; the sweeper treats those as stale.
func (r UnsubscribeRecord) Time() time.Time {
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IssueStats holds per-issue delivery failures and the cleanup marker.
// Cleaned is a pointer so "never cleaned" and "cleaned zero addresses"
// stay distinguishable for the idempotency guard.
type IssueStats struct {
	PK              string   `dynamodbav:"PK"`
	SK              string   `dynamodbav:"SK"`
	IssueID         string   `dynamodbav:"IssueID"`
	FailedAddresses []string `dynamodbav:"FailedAddresses,omitempty"`
	Cleaned         *int64   `dynamodbav:"Cleaned,omitempty"`
}

// Store is the DynamoDB-backed ledger.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// NewStore creates a ledger store on the shared table.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func unsubscribePK(tenantID string) string {
	return fmt.Sprintf("%s#recent-unsubscribes", tenantID)
}

func issuePK(tenantID string) string {
	return fmt.Sprintf("%s#issue", tenantID)
}

// NewSortKey mints a unique per-event sort key. Time-prefixed so range reads
// come back in event order; the uuid suffix means concurrent writers for the
// same address never collide.
func NewSortKey(now time.Time) string {
	return fmt.Sprintf("%s#%s", now.UTC().Format(time.RFC3339Nano), uuid.NewString())
}

// RecordUnsubscribe writes one audit record under the tenant's
// recent-unsubscribes partition.
func (s *Store) RecordUnsubscribe(ctx context.Context, tenantID string, rec UnsubscribeRecord) error {
	now := time.Now().UTC()
	rec.PK = unsubscribePK(tenantID)
	if rec.SK == "" {
		rec.SK = NewSortKey(now)
	}
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format(time.RFC3339)
	}

	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshaling unsubscribe record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("recording unsubscribe for tenant %s: %w", tenantID, err)
	}
	return nil
}

// ListUnsubscribes returns every audit record for a tenant, oldest first.
func (s *Store) ListUnsubscribes(ctx context.Context, tenantID string) ([]UnsubscribeRecord, error) {
	var records []UnsubscribeRecord

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: unsubscribePK(tenantID)},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing unsubscribes for tenant %s: %w", tenantID, err)
		}
		for _, item := range page.Items {
			var rec UnsubscribeRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// DeleteUnsubscribe removes one audit record. Deleting an already-deleted
// record is a no-op, which keeps interrupted sweeps safe to re-run.
func (s *Store) DeleteUnsubscribe(ctx context.Context, tenantID, sortKey string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: unsubscribePK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: sortKey},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting unsubscribe record for tenant %s: %w", tenantID, err)
	}
	return nil
}

// GetIssueStats fetches one issue's stats record. Returns (nil, nil) when
// the issue has no record.
func (s *Store) GetIssueStats(ctx context.Context, tenantID, issueID string) (*IssueStats, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: issuePK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: issueID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting issue stats %s/%s: %w", tenantID, issueID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var stats IssueStats
	if err := attributevalue.UnmarshalMap(result.Item, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling issue stats: %w", err)
	}
	return &stats, nil
}

// PutIssueStats writes an issue stats record.
func (s *Store) PutIssueStats(ctx context.Context, tenantID string, stats *IssueStats) error {
	stats.PK = issuePK(tenantID)
	stats.SK = stats.IssueID

	av, err := attributevalue.MarshalMap(stats)
	if err != nil {
		return fmt.Errorf("marshaling issue stats: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting issue stats %s/%s: %w", tenantID, stats.IssueID, err)
	}
	return nil
}

// SetIssueCleaned marks an issue's cleanup done, recording how many
// addresses were removed. Redelivered cleanup events see the marker and
// skip.
func (s *Store) SetIssueCleaned(ctx context.Context, tenantID, issueID string, removed int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: issuePK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: issueID},
		},
		UpdateExpression: aws.String("SET Cleaned = :removed"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":removed": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", removed)},
		},
	})
	if err != nil {
		return fmt.Errorf("marking issue %s/%s cleaned: %w", tenantID, issueID, err)
	}
	return nil
}
