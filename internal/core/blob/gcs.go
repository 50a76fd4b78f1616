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
	"net/url"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCS is the Google Cloud Storage backend.
//
// Signed URLs use the V4 scheme. When a signer service account is
// configured the signature is produced by the IAM Credentials API, which is
// how workloads without a private key (Cloud Run, GKE workload identity)
// sign; otherwise the storage client signs with its own credentials.
type GCS struct {
	client      *storage.Client
	bucket      string
	prefix      string
	iam         *credentials.IamCredentialsClient
	signerEmail string
}

// NewGCS wraps an existing storage client. iamClient and signerEmail may be
// empty.
func NewGCS(client *storage.Client, bucket, prefix string, iamClient *credentials.IamCredentialsClient, signerEmail string) (*GCS, error) {
	if client == nil {
		return nil, errors.New("gcs client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	return &GCS{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		iam:         iamClient,
		signerEmail: signerEmail,
	}, nil
}

func (g *GCS) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(applyPrefix(g.prefix, key))
}

func (g *GCS) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error) {
	if err := checkKey(key); err != nil {
		return "", unavailable("put", key, err)
	}
	w := g.object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = opts.CacheControl
	if _, err := io.Copy(w, body); err != nil {
		// Closing after a failed copy discards the partial upload.
		_ = w.Close()
		return "", unavailable("put", key, fmt.Errorf("gcs write bucket=%s key=%s: %w", g.bucket, key, err))
	}
	if err := w.Close(); err != nil {
		return "", unavailable("put", key, fmt.Errorf("gcs close bucket=%s key=%s: %w", g.bucket, key, err))
	}
	return g.URL(key), nil
}

func (g *GCS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, notFound(key, err)
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return r, nil
}

func (g *GCS) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	out := &ListResult{Keys: []string{}, Prefixes: []string{}}
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix:    applyPrefix(g.prefix, prefix),
		Delimiter: delimiter,
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, notFound(prefix, err)
		}
		if err != nil {
			return nil, unavailable("list", prefix, err)
		}
		if attrs.Prefix != "" {
			out.Prefixes = append(out.Prefixes, stripPrefix(g.prefix, attrs.Prefix))
			continue
		}
		out.Keys = append(out.Keys, stripPrefix(g.prefix, attrs.Name))
	}
	return out, nil
}

func (g *GCS) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if g.iam != nil && g.signerEmail != "" {
		opts.GoogleAccessID = g.signerEmail
		opts.SignBytes = func(payload []byte) ([]byte, error) {
			resp, err := g.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", g.signerEmail),
				Payload: payload,
			})
			if err != nil {
				return nil, err
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := g.client.Bucket(g.bucket).SignedURL(applyPrefix(g.prefix, key), opts)
	if err != nil {
		return "", unavailable("presign", key, fmt.Errorf("Bucket(%q).SignedURL(%q): %w", g.bucket, key, err))
	}
	return u, nil
}

func (g *GCS) URL(key string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + g.bucket + "/" + applyPrefix(g.prefix, key)}
	return u.String()
}

var _ Gateway = (*GCS)(nil)
