//go:build integration

package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"unikyc/internal/storage"
	"unikyc/internal/storage/storagetest"
)

func TestSpace_LocalStack(t *testing.T) {
	ctx := context.Background()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	hostPort, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	require.NoError(t, err)
	admin := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(hostPort)
		o.UsePathStyle = true
	})

	n := 0
	storagetest.RunConformance(t, func(t *testing.T) storage.ContentStore {
		n++
		bucket := "kyc-conformance-" + string(rune('a'+n))
		_, err := admin.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		require.NoError(t, err)
		return NewSpace(Config{Bucket: bucket, Region: "us-east-1", Endpoint: hostPort})
	})
}
