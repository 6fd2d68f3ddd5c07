// Package replica copies the encrypted users tree to an S3-compatible bucket.
// Objects hold the on-disk bytes, so the bucket never sees plaintext of
// encrypted accounts.
package replica

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/dmitrijs2005/nosuite/internal/server/paths"
)

const queueSize = 256

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectClient is the part of *s3.Client the replicator uses.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// NewS3Client builds a path-style client for opts, suitable for MinIO too.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// Replicator mirrors change events to the bucket from a single background
// worker. Events that arrive while the queue is full are dropped and logged.
type Replicator struct {
	client ObjectClient
	bucket string
	prefix string
	paths  *paths.Resolver
	log    logging.Logger

	queue chan models.ChangeEvent
}

func NewReplicator(client ObjectClient, bucket, prefix string, resolver *paths.Resolver, log logging.Logger) *Replicator {
	return &Replicator{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		paths:  resolver,
		log:    log.With("module", "replica"),
		queue:  make(chan models.ChangeEvent, queueSize),
	}
}

func (r *Replicator) Notify(ctx context.Context, ev models.ChangeEvent) {
	if ev.Action == models.ActionMkdir {
		return
	}
	ev.Content = nil
	select {
	case r.queue <- ev:
	default:
		r.log.Warn(ctx, "replication queue full, event dropped", "action", ev.Action)
	}
}

// Run processes queued events until ctx is done.
func (r *Replicator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			if err := r.Apply(ctx, ev); err != nil {
				r.log.Error(ctx, "replication failed", "action", ev.Action, "error", err)
			}
		}
	}
}

// Apply replicates a single event synchronously.
func (r *Replicator) Apply(ctx context.Context, ev models.ChangeEvent) error {
	p, err := r.paths.ResolveDecoded(ev.Email, ev.App, ev.Path)
	if err != nil {
		return err
	}
	key := r.objectKey(ev.Email, ev.App, p.Logical)

	switch ev.Action {
	case models.ActionWrite:
		f, err := os.Open(p.Full)
		if errors.Is(err, fs.ErrNotExist) {
			// removed before we got to it; the rm event follows
			return nil
		}
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		return nil
	case models.ActionRm:
		return r.deletePrefix(ctx, key)
	default:
		return nil
	}
}

// deletePrefix removes key and everything below key/.
func (r *Replicator) deletePrefix(ctx context.Context, key string) error {
	objects := []types.ObjectIdentifier{{Key: aws.String(key)}}

	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(key + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", key, err)
		}
		for _, obj := range out.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	// DeleteObjects takes at most 1000 keys per call
	for start := 0; start < len(objects); start += 1000 {
		end := min(start+1000, len(objects))
		_, err := r.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(r.bucket),
			Delete: &types.Delete{Objects: objects[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (r *Replicator) objectKey(email, app, logical string) string {
	key := path.Join(email, app, strings.TrimPrefix(logical, "/"))
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}
	return key
}
