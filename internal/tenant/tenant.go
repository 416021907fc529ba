// Package tenant provides read access to tenant reference data and the
// denormalized subscriber count maintained alongside it. Tenants are owned
// by the dashboard's management surface; this service treats them as
// reference data plus one best-effort counter.
package tenant

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tenantPK = "TENANT"

// Tenant is one newsletter-operating organization.
type Tenant struct {
	PK                  string `dynamodbav:"PK" json:"-"`
	SK                  string `dynamodbav:"SK" json:"-"`
	ID                  string `dynamodbav:"ID" json:"id"`
	Name                string `dynamodbav:"Name" json:"name"`
	AdminEmail          string `dynamodbav:"AdminEmail" json:"admin_email"`
	ListName            string `dynamodbav:"ListName" json:"list_name"`
	SubscriberCount     int64  `dynamodbav:"SubscriberCount" json:"subscriber_count"`
	Status              string `dynamodbav:"Status" json:"status"`
	UnsubscribeTemplate string `dynamodbav:"UnsubscribeTemplate,omitempty" json:"-"`
}

// Store reads and updates tenants in the DynamoDB ledger table.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// NewStore creates a tenant store on the shared ledger table.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get retrieves a tenant by identifier. Returns (nil, nil) when the tenant
// does not exist.
func (s *Store) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK},
			"SK": &types.AttributeValueMemberS{Value: tenantID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting tenant %s: %w", tenantID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var t Tenant
	if err := attributevalue.UnmarshalMap(result.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshaling tenant: %w", err)
	}
	return &t, nil
}

// List returns every tenant. The sweeper walks this to discover work; tenant
// counts are small enough that a single partition query suffices.
func (s *Store) List(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: tenantPK},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tenants: %w", err)
		}
		for _, item := range page.Items {
			var t Tenant
			if err := attributevalue.UnmarshalMap(item, &t); err != nil {
				continue
			}
			tenants = append(tenants, t)
		}
	}

	return tenants, nil
}

// Put writes a tenant record. Used by fixtures and the onboarding surface.
func (s *Store) Put(ctx context.Context, t *Tenant) error {
	t.PK = tenantPK
	t.SK = t.ID

	av, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshaling tenant: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting tenant %s: %w", t.ID, err)
	}
	return nil
}

// AdjustSubscriberCount applies a delta to the denormalized subscriber count.
// Best-effort: the count self-heals on the next authoritative recount.
func (s *Store) AdjustSubscriberCount(ctx context.Context, tenantID string, delta int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK},
			"SK": &types.AttributeValueMemberS{Value: tenantID},
		},
		UpdateExpression: aws.String("ADD SubscriberCount :delta"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delta": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", delta)},
		},
	})
	if err != nil {
		return fmt.Errorf("adjusting subscriber count for %s: %w", tenantID, err)
	}
	return nil
}

// SetSubscriberCount overwrites the denormalized count with an authoritative
// value from a full contact-list scan.
func (s *Store) SetSubscriberCount(ctx context.Context, tenantID string, count int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK},
			"SK": &types.AttributeValueMemberS{Value: tenantID},
		},
		UpdateExpression: aws.String("SET SubscriberCount = :count"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":count": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", count)},
		},
	})
	if err != nil {
		return fmt.Errorf("setting subscriber count for %s: %w", tenantID, err)
	}
	return nil
}
