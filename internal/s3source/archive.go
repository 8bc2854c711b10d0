// Package s3source reads the historical Gridworks event archive from S3
// and reconciles the local event store against it.
//
// The archive layout is one directory per day under the configured
// prefix, each object named <MessageId>.json:
//
//	<prefix>/20230310/<message-id>.json
package s3source

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
)

// S3API is the slice of the S3 client the archive needs. The AWS client
// satisfies it; tests substitute a fake.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archive reads the event archive bucket.
type Archive struct {
	client S3API
	cfg    config.S3Config
}

// NewArchive builds an Archive using the AWS shared-config chain with
// the configured profile and region.
func NewArchive(ctx context.Context, cfg config.S3Config) (*Archive, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewArchiveWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewArchiveWithClient wires an explicit client. Used by tests.
func NewArchiveWithClient(client S3API, cfg config.S3Config) *Archive {
	return &Archive{client: client, cfg: cfg}
}

// ListDays returns the sorted day-directory names under the prefix.
func (a *Archive) ListDays(ctx context.Context) ([]string, error) {
	prefix := strings.TrimSuffix(a.cfg.Prefix, "/") + "/"
	var days []string
	var continuation *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.cfg.Bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("list day directories under %s/%s: %w", a.cfg.Bucket, prefix, err)
		}
		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			days = append(days, path.Base(strings.TrimSuffix(*cp.Prefix, "/")))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	sort.Strings(days)
	return days, nil
}

// ListKeys returns every object key under one day directory.
func (a *Archive) ListKeys(ctx context.Context, day string) ([]string, error) {
	prefix := a.cfg.SubPrefix(day) + "/"
	var keys []string
	var continuation *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects under %s/%s: %w", a.cfg.Bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	return keys, nil
}

// Fetch downloads one object.
func (a *Archive) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	return data, nil
}

// SyncedKey returns the bucket/prefix identifier for one day, used in
// lifecycle events.
func (a *Archive) SyncedKey(day string) string {
	return a.cfg.SyncedKey(day)
}

// MessageIDFromKey extracts the MessageId from an archive object key.
// Returns "" for keys that do not follow the <id>.json convention.
func MessageIDFromKey(key string) string {
	base := path.Base(key)
	if !strings.HasSuffix(base, ".json") {
		return ""
	}
	return strings.TrimSuffix(base, ".json")
}
