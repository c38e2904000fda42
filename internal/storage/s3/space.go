// Package s3 stores sealed payloads in an S3 bucket, one object per CID.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ipfs/go-cid"

	"unikyc/internal/storage"
	"unikyc/pkg/platform/sentinel"
)

// API is the subset of *s3.Client the space uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // non-empty for localstack/minio; enables path-style addressing
}

// Space is a lazily connected handle to one bucket prefix. The AWS client is
// built on first use so constructing a Space never touches the network.
type Space struct {
	bucket string
	prefix string
	dial   func(ctx context.Context) (API, error)

	once    sync.Once
	client  API
	initErr error
}

// NewSpace returns a Space that loads the default AWS credential chain on first use.
func NewSpace(cfg Config) *Space {
	return &Space{
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		dial: func(ctx context.Context) (API, error) {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
					o.UsePathStyle = true
				}
			}), nil
		},
	}
}

// NewSpaceWithClient wraps an existing client.
func NewSpaceWithClient(client API, bucket, prefix string) *Space {
	return &Space{
		bucket: bucket,
		prefix: prefix,
		dial:   func(context.Context) (API, error) { return client, nil },
	}
}

func (s *Space) api(ctx context.Context) (API, error) {
	s.once.Do(func() {
		s.client, s.initErr = s.dial(ctx)
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, s.initErr)
	}
	return s.client, nil
}

func (s *Space) key(id cid.Cid) string {
	return s.prefix + id.String()
}

func (s *Space) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := storage.ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	client, err := s.api(ctx)
	if err != nil {
		return cid.Undef, err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: put object: %v", sentinel.ErrUnavailable, err)
	}
	return id, nil
}

func (s *Space) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get object: %v", sentinel.ErrUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read object: %v", sentinel.ErrUnavailable, err)
	}
	if err := storage.Verify(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Space) Has(ctx context.Context, id cid.Cid) (bool, error) {
	client, err := s.api(ctx)
	if err != nil {
		return false, err
	}
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head object: %v", sentinel.ErrUnavailable, err)
	}
	return true, nil
}
