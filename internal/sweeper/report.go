package sweeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportStore archives sweep reports to S3 so operators can audit past
// sweeps without trawling logs.
type ReportStore struct {
	client *s3.Client
	bucket string
}

// NewReportStore creates a report archive in the given bucket. An empty
// bucket disables archiving.
func NewReportStore(client *s3.Client, bucket string) *ReportStore {
	return &ReportStore{client: client, bucket: bucket}
}

// Save writes one report as a timestamped JSON object. Keys sort
// chronologically, so the latest report is always the last key.
func (s *ReportStore) Save(ctx context.Context, report *Report) (string, error) {
	if s.bucket == "" {
		return "", nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling sweep report: %w", err)
	}

	key := fmt.Sprintf("sweeps/%s.json", report.StartedAt.Format("2006-01-02T15-04-05Z"))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("saving sweep report to s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}
