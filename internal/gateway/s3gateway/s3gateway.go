// Package s3gateway is an alternate Network Gateway for the case where "the
// remote collection" is itself an S3-compatible bucket rather than a JSON
// API: one object per entity, keyed by collection/id, grounded on the
// teacher's internal/replication.S3RemoteClient (structured logrus logging
// wrapped around every SDK call, sentinel-error classification of AWS
// errors).
package s3gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

// Client implements gateway.Gateway by storing each entity as a single
// object at key "{collection}/{id}.json" in a bucket.
type Client struct {
	s3     *s3.Client
	bucket string
	logger *logrus.Logger
}

// Config configures a Client. Endpoint may point at any S3-compatible
// service (MinIO, etc); leaving it empty uses AWS's default resolver.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Logger          *logrus.Logger
}

// New builds an s3gateway.Client from static credentials, the way the
// teacher's replication manager built its per-rule S3 client: a custom
// endpoint resolver plus static credentials, path-style addressing for
// compatibility with non-AWS S3 services.
func New(cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3gateway: bucket is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true, SigningRegion: region}, nil
			})
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Client{s3: client, bucket: cfg.Bucket, logger: cfg.Logger}, nil
}

func objectKey(collection, id string) string {
	return fmt.Sprintf("%s/%s.json", collection, id)
}

func objectPrefix(collection string) string {
	return collection + "/"
}

func idFromObjectKey(collection, key string) string {
	id := strings.TrimPrefix(key, objectPrefix(collection))
	return strings.TrimSuffix(id, ".json")
}

func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return gateway.ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return gateway.ErrNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return gateway.ErrInsufficientCredentials
		}
	}
	return &gateway.TransportError{Op: op, Err: err}
}

func (c *Client) log(op, collection string) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{"op": op, "bucket": c.bucket, "collection": collection})
}

func (c *Client) Get(ctx context.Context, collection, id string, opts gateway.Options) (*entity.Entity, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	c.log("Get", collection).WithField("id", id).Debug("s3 gateway get")
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey(collection, id)),
	})
	if err != nil {
		return nil, classifyErr("GetObject", err)
	}
	defer out.Body.Close()

	var e entity.Entity
	if err := json.NewDecoder(out.Body).Decode(&e); err != nil {
		return nil, &gateway.TransportError{Op: "decode object", Err: err}
	}
	return &e, nil
}

func (c *Client) Find(ctx context.Context, collection string, q query.Query, opts gateway.Options) ([]*entity.Entity, error) {
	if q.HasIDs() {
		out := make([]*entity.Entity, 0, len(q.Ids))
		for _, id := range q.Ids {
			e, err := c.Get(ctx, collection, id, opts)
			if errors.Is(err, gateway.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	return c.listAll(ctx, collection, opts, time.Time{})
}

func (c *Client) listAll(ctx context.Context, collection string, opts gateway.Options, since time.Time) ([]*entity.Entity, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	c.log("List", collection).Debug("s3 gateway list")
	var out []*entity.Entity
	var token *string
	for {
		resp, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(objectPrefix(collection)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, classifyErr("ListObjectsV2", err)
		}
		for _, obj := range resp.Contents {
			if !since.IsZero() && obj.LastModified != nil && !obj.LastModified.After(since) {
				continue
			}
			id := idFromObjectKey(collection, aws.ToString(obj.Key))
			e, err := c.Get(ctx, collection, id, opts)
			if errors.Is(err, gateway.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		if resp.NextContinuationToken == nil {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (c *Client) Put(ctx context.Context, collection string, e *entity.Entity, opts gateway.Options) (*entity.Entity, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	if e.ID == "" {
		e.ID = generateID()
	}
	now := time.Now().UTC()
	if e.Metadata == nil {
		e.Metadata = &entity.Metadata{}
	}
	e.Metadata.LastModifiedTime = &now
	e.Metadata.Local = false

	body, err := json.Marshal(e)
	if err != nil {
		return nil, &gateway.TransportError{Op: "encode object", Err: err}
	}

	c.log("Put", collection).WithField("id", e.ID).Debug("s3 gateway put")
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectKey(collection, e.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyErr("PutObject", err)
	}
	return e, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string, opts gateway.Options) (int, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	c.log("Delete", collection).WithField("id", id).Debug("s3 gateway delete")
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey(collection, id)),
	})
	if err != nil {
		return 0, classifyErr("DeleteObject", err)
	}
	return 1, nil
}

func (c *Client) DeltaGet(ctx context.Context, collection string, since time.Time, opts gateway.Options) ([]*entity.Entity, error) {
	return c.listAll(ctx, collection, opts, since)
}

func (c *Client) Group(ctx context.Context, collection string, agg any, opts gateway.Options) (any, error) {
	entities, err := c.listAll(ctx, collection, opts, time.Time{})
	if err != nil {
		return nil, err
	}
	return map[string]int{"count": len(entities)}, nil
}

func (c *Client) Count(ctx context.Context, collection string, q query.Query, opts gateway.Options) (int, error) {
	entities, err := c.Find(ctx, collection, q, opts)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

func withTimeout(ctx context.Context, opts gateway.Options) (context.Context, context.CancelFunc) {
	if opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Timeout)
}

func generateID() string {
	return "s3-" + uuid.New().String()
}
