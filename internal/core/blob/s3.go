// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 is the Amazon S3 (or S3-compatible) backend.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	region  string
	baseURL string
}

// S3Options configures NewS3. Endpoint is only set for S3-compatible stores
// and switches to path-style addressing.
type S3Options struct {
	Region   string
	Bucket   string
	Prefix   string
	Endpoint string
}

// NewS3 loads the default AWS credential chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", opts.Bucket, cfg.Region)
	if opts.Endpoint != "" {
		baseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket + "/"
	}
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		region:  cfg.Region,
		baseURL: baseURL,
	}, nil
}

func (s *S3) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error) {
	if err := checkKey(key); err != nil {
		return "", unavailable("put", key, err)
	}
	objectKey := applyPrefix(s.prefix, key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   body,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", unavailable("put", key, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err))
	}
	return s.URL(key), nil
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey := applyPrefix(s.prefix, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, notFound(key, err)
		}
		return nil, unavailable("get", key, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err))
	}
	return out.Body, nil
}

func (s *S3) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	out := &ListResult{Keys: []string{}, Prefixes: []string{}}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(applyPrefix(s.prefix, prefix)),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	pager := s3.NewListObjectsV2Paginator(s.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			var nsb *s3types.NoSuchBucket
			if errors.As(err, &nsb) {
				return nil, notFound(prefix, err)
			}
			return nil, unavailable("list", prefix, err)
		}
		for _, p := range page.CommonPrefixes {
			out.Prefixes = append(out.Prefixes, stripPrefix(s.prefix, aws.ToString(p.Prefix)))
		}
		for _, obj := range page.Contents {
			out.Keys = append(out.Keys, stripPrefix(s.prefix, aws.ToString(obj.Key)))
		}
	}
	return out, nil
}

func (s *S3) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(applyPrefix(s.prefix, key)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", unavailable("presign", key, err)
	}
	return req.URL, nil
}

func (s *S3) URL(key string) string {
	return s.baseURL + applyPrefix(s.prefix, key)
}

var _ Gateway = (*S3)(nil)
