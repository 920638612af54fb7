package storage

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rowjay/fastboot-deploy/internal/version"
)

// listPageSize matches the S3 default page; List stops after one page.
const listPageSize = 1000

// S3 talks to any S3-compatible endpoint through minio-go.
type S3 struct {
	Client *minio.Client
	Bucket string
}

func NewS3(endpoint, region, bucket, accessKey, secretKey, sessionToken string, useSSL, forcePathStyle, insecure bool) (*S3, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(accessKey, secretKey, sessionToken),
		Secure:    useSSL,
		Region:    region,
		Transport: transport,
		BucketLookup: func() minio.BucketLookupType {
			if forcePathStyle {
				return minio.BucketLookupPath
			}
			return minio.BucketLookupDNS
		}(),
	})
	if err != nil {
		return nil, err
	}
	client.SetAppInfo("fastboot-deploy", version.Version)
	return &S3{Client: client, Bucket: bucket}, nil
}

func (s *S3) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.Client.PutObject(ctx, s.Bucket, key, reader, size, minio.PutObjectOptions{
		UserMetadata: withACL(opts.Metadata, opts.ACL),
		ContentType:  opts.ContentType,
	})
	return err
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// List returns the first page of objects under prefix. Cancelling the
// iterator's context keeps minio-go from fetching further pages.
func (s *S3) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, MaxKeys: listPageSize})
	infos := []ObjectInfo{}
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		infos = append(infos, ObjectInfo{Key: obj.Key, Size: obj.Size, Modified: obj.LastModified})
		if len(infos) == listPageSize {
			break
		}
	}
	return infos, nil
}

func (s *S3) Copy(ctx context.Context, srcKey, dstKey string, opts PutOptions) error {
	_, err := s.Client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          s.Bucket,
			Object:          dstKey,
			ReplaceMetadata: opts.ACL != "" || opts.ContentType != "" || len(opts.Metadata) > 0,
			UserMetadata:    withACL(opts.Metadata, opts.ACL),
			ContentType:     opts.ContentType,
		},
		minio.CopySrcOptions{Bucket: s.Bucket, Object: srcKey},
	)
	return err
}

// withACL folds a canned ACL into the metadata map; minio-go forwards
// x-amz-acl as a request header rather than as user metadata.
func withACL(metadata map[string]string, acl string) map[string]string {
	if acl == "" {
		return metadata
	}
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["x-amz-acl"] = acl
	return out
}
