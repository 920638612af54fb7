package storage

import (
	"fmt"

	"github.com/rowjay/fastboot-deploy/internal/config"
)

// New builds a fresh client for the configured backend. Hooks call it on
// every invocation; clients are never cached.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "local":
		if cfg.Local.Path == "" {
			return nil, fmt.Errorf("local storage path is required")
		}
		return NewLocal(cfg.Local.Path), nil
	case "s3", "":
		if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 endpoint and bucket are required")
		}
		return NewS3(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.SessionToken, cfg.S3.UseSSL, cfg.S3.ForcePathStyle, cfg.S3.TLSInsecureSkip)
	case "aws":
		if cfg.S3.Bucket == "" || cfg.S3.Region == "" {
			return nil, fmt.Errorf("aws bucket and region are required")
		}
		endpoint := cfg.S3.Endpoint
		if endpoint == DefaultEndpoint {
			endpoint = ""
		}
		return NewAWS(endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.SessionToken, cfg.S3.ForcePathStyle)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// DefaultEndpoint is the minio-style endpoint for Amazon S3.
const DefaultEndpoint = "s3.amazonaws.com"
