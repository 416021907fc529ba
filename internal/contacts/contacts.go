// Package contacts wraps the SES v2 contact-list API, the system of record
// for who is currently subscribed. Deleting an absent contact is defined as
// success: every removal path in the service is idempotent because of it.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
)

// ErrAlreadySubscribed is returned by Create when the contact exists.
var ErrAlreadySubscribed = errors.New("contacts: already subscribed")

// ContactAttributes is the optional profile data stored with a contact.
type ContactAttributes struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// SESLists is the sesv2-backed contact-list store.
type SESLists struct {
	client *sesv2.Client
}

// NewSESLists creates a contact-list store from a configured sesv2 client.
func NewSESLists(client *sesv2.Client) *SESLists {
	return &SESLists{client: client}
}

// Delete removes a contact from a list. An absent contact is success, so
// repeated deletions (concurrent unsubscribe paths, sweep repairs) never
// surface errors.
func (s *SESLists) Delete(ctx context.Context, listName, email string) error {
	_, err := s.client.DeleteContact(ctx, &sesv2.DeleteContactInput{
		ContactListName: aws.String(listName),
		EmailAddress:    aws.String(email),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("deleting contact from %s: %w", listName, err)
	}
	return nil
}

// Create adds a contact to a list with optional profile attributes.
func (s *SESLists) Create(ctx context.Context, listName, email string, attrs ContactAttributes) error {
	input := &sesv2.CreateContactInput{
		ContactListName: aws.String(listName),
		EmailAddress:    aws.String(email),
	}

	if attrs != (ContactAttributes{}) {
		data, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("marshaling contact attributes: %w", err)
		}
		input.AttributesData = aws.String(string(data))
	}

	_, err := s.client.CreateContact(ctx, input)
	if err != nil {
		var exists *types.AlreadyExistsException
		if errors.As(err, &exists) {
			return ErrAlreadySubscribed
		}
		return fmt.Errorf("creating contact on %s: %w", listName, err)
	}
	return nil
}

// ListEmails returns every email address on a list, paginated through in
// full and normalized to lowercase for comparison against audit records.
func (s *SESLists) ListEmails(ctx context.Context, listName string) ([]string, error) {
	var emails []string

	paginator := sesv2.NewListContactsPaginator(s.client, &sesv2.ListContactsInput{
		ContactListName: aws.String(listName),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing contacts on %s: %w", listName, err)
		}
		for _, contact := range page.Contacts {
			if contact.EmailAddress != nil {
				emails = append(emails, identity.Normalize(*contact.EmailAddress))
			}
		}
	}

	return emails, nil
}

// Count returns the authoritative list size from a full scan. Used to
// self-heal the denormalized tenant subscriber count rather than trusting
// decrement arithmetic.
func (s *SESLists) Count(ctx context.Context, listName string) (int64, error) {
	emails, err := s.ListEmails(ctx, listName)
	if err != nil {
		return 0, err
	}
	return int64(len(emails)), nil
}
