// Package playground fetches API documents from S3.
//
// This file resolves s3://bucket/key document sources with the AWS SDK.
// Credentials come from the default chain; a custom endpoint switches to
// path-style addressing for S3-compatible stores such as MinIO.
package playground

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// parseS3URI splits s3://bucket/key into bucket and key.
func parseS3URI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URI: %s", uri)
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URI must look like s3://bucket/key: %s", uri)
	}
	return bucket, key, nil
}

func fetchFromS3(ctx context.Context, source string, opts LoadOptions) ([]byte, error) {
	bucket, key, err := parseS3URI(source)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
	}
	if opts.S3Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithBaseEndpoint(opts.S3Endpoint))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	if SchemaDebug {
		log.Printf("DEBUG: fetching s3 object bucket=%s key=%s", bucket, key)
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from S3: %w", source, err)
	}
	defer func() {
		if err := result.Body.Close(); err != nil {
			log.Printf("Warning: failed to close S3 object body: %v", err)
		}
	}()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from S3: %w", source, err)
	}
	return data, nil
}
