package s3client

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type awsClient struct {
	client  *s3.Client
	presign *s3.PresignClient
}

func newAWSClient(ctx context.Context, conn Connection, opts Options) (*awsClient, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(conn.RegionOrDefault()),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.AccessKey, conn.SecretKey, ""),
		),
	}
	if opts.InsecureSkipVerify {
		loadOpts = append(loadOpts, config.WithHTTPClient(&http.Client{Transport: insecureTransport()}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
			o.UsePathStyle = conn.UsePathStyle
		}
	})

	return &awsClient{
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (c *awsClient) PutObject(ctx context.Context, in PutInput) (int64, error) {
	f, err := os.Open(in.SourcePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if in.ACL != "" {
		input.ACL = types.ObjectCannedACL(in.ACL)
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.CacheControl != "" {
		input.CacheControl = aws.String(in.CacheControl)
	}
	if in.StorageClass != "" {
		input.StorageClass = types.StorageClass(in.StorageClass)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (c *awsClient) ListObjects(ctx context.Context, bucket, prefix, token string, maxKeys int32) (ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(maxKeys),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	output, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return ListPage{}, err
	}

	page := ListPage{
		Objects:   make([]Object, 0, len(output.Contents)),
		Truncated: aws.ToBool(output.IsTruncated),
		NextToken: aws.ToString(output.NextContinuationToken),
	}
	for _, object := range output.Contents {
		page.Objects = append(page.Objects, Object{
			Key:          aws.ToString(object.Key),
			Size:         aws.ToInt64(object.Size),
			LastModified: aws.ToTime(object.LastModified),
		})
	}
	return page, nil
}

func (c *awsClient) HeadBucket(ctx context.Context, bucket string) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	return err
}

func (c *awsClient) ListBuckets(ctx context.Context) ([]string, error) {
	output, err := c.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		names = append(names, aws.ToString(bucket.Name))
	}
	return names, nil
}

func (c *awsClient) GetBucketLocation(ctx context.Context, bucket string) (string, error) {
	output, err := c.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", err
	}
	return string(output.LocationConstraint), nil
}

func (c *awsClient) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	request, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return request.URL, nil
}
