package publish

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/config"
)

// Environment variables holding static S3 credentials. When unset the
// SDK's default credential chain applies.
const (
	EnvAccessKey = "SGC_S3_ACCESS_KEY"
	EnvSecretKey = "SGC_S3_SECRET_KEY"
)

const uploadTimeout = 5 * time.Minute

// S3Client is an ObjectStore backed by an S3-compatible endpoint.
type S3Client struct {
	api *s3.Client
}

// NewS3Client builds a client from the publish section of the config.
// An empty endpoint targets AWS itself.
func NewS3Client(ctx context.Context, cfg config.PublishConfig) (*S3Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		// A buildable client keeps AWS_CA_BUNDLE and other transport
		// settings from the shared config working.
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(uploadTimeout)),
	}
	accessKey := os.Getenv(EnvAccessKey)
	secretKey := os.Getenv(EnvSecretKey)
	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("%s and %s must be set together", EnvAccessKey, EnvSecretKey)
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &S3Client{api: client}, nil
}

// PutObject uploads r to bucket/key. The digest is sent as the S3
// checksum and stored as object metadata.
func (c *S3Client) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, digest integrity.Digest) error {
	if c == nil {
		return errors.New("nil client")
	}
	checksum, err := encodeSHA256(digest)
	if err != nil {
		return err
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            &bucket,
		Key:               &key,
		Body:              r,
		ContentLength:     &size,
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    &checksum,
		Metadata: map[string]string{
			"sha256": digest.Hex(),
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func encodeSHA256(d integrity.Digest) (string, error) {
	if _, err := integrity.ParseDigest(string(d)); err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(d.Hex())
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
