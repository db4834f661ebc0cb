package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gigapi/gigapi-lakehouse/config"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 stores objects in an S3-compatible bucket.
type S3 struct {
	client S3API
}

var _ Store = (*S3)(nil)

// maxDeleteBatch is the DeleteObjects request limit.
const maxDeleteBatch = 1000

// NewS3 builds a path-style client for the configured endpoint.
func NewS3(s config.Settings) (*S3, error) {
	opts := s3.Options{
		Region:       s.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, ""),
		UsePathStyle: true,
	}
	if ep := s.EndpointURL(); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
	}
	return &S3{client: s3.New(opts)}, nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API) *S3 {
	return &S3{client: client}
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := ParseS3Path(prefix)
	if err != nil {
		return nil, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	var out []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, key, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if strings.HasSuffix(k, "/") {
				continue
			}
			out = append(out, "s3://"+bucket+"/"+k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *S3) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := ParseS3Path(prefix)
	if err != nil {
		return nil, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	var dirs []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(key),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dirs s3://%s/%s: %w", bucket, key, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), key), "/")
			if name != "" {
				dirs = append(dirs, name)
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (s *S3) Read(ctx context.Context, loc string) ([]byte, error) {
	bucket, key, err := ParseS3Path(loc)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", loc, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3) Put(ctx context.Context, loc string, r io.Reader) error {
	bucket, key, err := ParseS3Path(loc)
	if err != nil {
		return err
	}
	body, ok := r.(io.ReadSeeker)
	if !ok {
		// The SDK needs a seekable body to sign plain-HTTP uploads.
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read body for %s: %w", loc, err)
		}
		body = bytes.NewReader(data)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", loc, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, locs ...string) error {
	byBucket := map[string][]types.ObjectIdentifier{}
	var buckets []string
	for _, loc := range locs {
		bucket, key, err := ParseS3Path(loc)
		if err != nil {
			return err
		}
		if _, ok := byBucket[bucket]; !ok {
			buckets = append(buckets, bucket)
		}
		byBucket[bucket] = append(byBucket[bucket], types.ObjectIdentifier{Key: aws.String(key)})
	}

	var errs []error
	for _, bucket := range buckets {
		objs := byBucket[bucket]
		for start := 0; start < len(objs); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(objs))
			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: objs[start:end], Quiet: aws.Bool(true)},
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("delete from %s: %w", bucket, err))
				continue
			}
			for _, e := range out.Errors {
				errs = append(errs, fmt.Errorf("delete s3://%s/%s: %s %s",
					bucket, aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
			}
		}
	}
	return errors.Join(errs...)
}
