package artifact

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appconfig "github.com/mahatab-code/settlement-automation/config"
)

// Recorder stores a diagnostic artifact (a failure screenshot, typically)
// and returns where it landed.
type Recorder interface {
	Record(ctx context.Context, label string, data []byte) (string, error)
}

// NopRecorder discards artifacts. Used when no bucket is configured and in
// tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, label string, data []byte) (string, error) {
	return "", nil
}

// S3Recorder uploads artifacts to S3 under run-scoped keys.
type S3Recorder struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Recorder creates an S3-backed artifact recorder.
func NewS3Recorder(cfg *appconfig.ArtifactConfig) *S3Recorder {
	var awsCfg aws.Config
	var err error

	// If credentials are provided, use them. Otherwise, use default credential chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		}
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.Region),
		)
		if err != nil {
			awsCfg = aws.Config{Region: cfg.Region}
		}
	}

	return &S3Recorder{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		baseURL: cfg.BaseURL,
	}
}

// FromConfig returns an S3 recorder when a bucket is configured, otherwise
// the no-op recorder.
func FromConfig(cfg *appconfig.ArtifactConfig) Recorder {
	if cfg.Bucket == "" {
		return NopRecorder{}
	}
	return NewS3Recorder(cfg)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9/_-]+`)

// Record uploads one PNG artifact. The uuid suffix keeps retried rows from
// overwriting each other's captures.
func (r *S3Recorder) Record(ctx context.Context, label string, data []byte) (string, error) {
	label = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(label), "_")
	key := fmt.Sprintf("artifacts/%s/%s.png", label, uuid.New().String())

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	if r.baseURL != "" {
		return fmt.Sprintf("%s/%s", r.baseURL, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", r.bucket, r.client.Options().Region, key), nil
}
