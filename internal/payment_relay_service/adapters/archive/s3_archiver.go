package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// PutObjectAPI is the part of *s3.Client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3WebhookArchiver writes verified webhook payloads to
// stripe-events/YYYY/MM/DD/<event id>.json, dated by the event creation time.
type S3WebhookArchiver struct {
	client PutObjectAPI
	bucket string
	logger *slog.Logger
}

func NewS3WebhookArchiver(client PutObjectAPI, bucket string, logger *slog.Logger) *S3WebhookArchiver {
	return &S3WebhookArchiver{client: client, bucket: bucket, logger: logger.With("component", "s3_webhook_archiver")}
}

func objectKey(event *domain.WebhookEvent) string {
	return fmt.Sprintf("stripe-events/%s/%s.json", event.Created.UTC().Format("2006/01/02"), event.ID)
}

func (a *S3WebhookArchiver) Archive(ctx context.Context, event *domain.WebhookEvent) error {
	key := objectKey(event)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(event.Raw),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event-type": event.Type,
		},
	})
	if err != nil {
		return fmt.Errorf("archiving webhook event %s to s3://%s/%s: %w", event.ID, a.bucket, key, err)
	}
	a.logger.DebugContext(ctx, "Webhook event archived", "event_id", event.ID, "key", key)
	return nil
}

// NoopWebhookArchiver is used when no archive bucket is configured.
type NoopWebhookArchiver struct{}

func (NoopWebhookArchiver) Archive(context.Context, *domain.WebhookEvent) error { return nil }
