package storage

import (
	"context"
	"io"
	"time"
)

// ACLPublicRead is the canned ACL applied to objects the fastboot host fetches.
const ACLPublicRead = "public-read"

type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// PutOptions are applied to objects created by Put and Copy. A Copy with
// any option set replaces the source's metadata instead of carrying it over.
type PutOptions struct {
	ACL         string
	ContentType string
	Metadata    map[string]string
}

// Storage is the object-store capability set used by the deploy hooks. An
// implementation is bound to a single bucket.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Copy(ctx context.Context, srcKey, dstKey string, opts PutOptions) error
}
