// Package archive writes a durable copy of every MonitorRun to S3, one JSON
// object per run, so cycle history survives outside the operational
// database (cold storage / audit retention).
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

// Archiver uploads one JSON object per MonitorRun under
// <prefix>/<campaign_id>/<run_id>.json.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an Archiver using the default AWS credential chain. Returns
// nil, nil when bucket is empty — callers treat a nil Archiver as disabled.
func New(ctx context.Context, bucket, region, prefix string) (*Archiver, error) {
	if bucket == "" {
		return nil, nil
	}
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if prefix == "" {
		prefix = "optimization-runs"
	}
	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Put uploads the MonitorRun as a single JSON object. A nil Archiver is a
// no-op so callers don't need to guard every call site.
func (a *Archiver) Put(ctx context.Context, run *domain.MonitorRun) error {
	if a == nil {
		return nil
	}
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal monitor run: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s.json", a.prefix, run.CampaignID, run.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put monitor run %s: %w", run.ID, err)
	}
	return nil
}

// PutAt is like Put but stamps a deterministic key from an explicit
// timestamp, useful when the caller already knows the run's creation time
// and wants a time-partitioned key instead of a flat one.
func (a *Archiver) PutAt(ctx context.Context, run *domain.MonitorRun, at time.Time) error {
	if a == nil {
		return nil
	}
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal monitor run: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s/%s.json", a.prefix, at.Format("2006/01/02"), run.CampaignID, run.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put monitor run %s: %w", run.ID, err)
	}
	return nil
}
