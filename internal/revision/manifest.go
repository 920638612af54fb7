package revision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rowjay/fastboot-deploy/internal/storage"
)

// Manifest is the document the fastboot host reads to find the active
// archive. Only Key matters for reconciliation; other fields belong to
// whoever generates the content.
type Manifest struct {
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key"`
}

// ContentFunc renders the manifest body for the archive at key in bucket.
type ContentFunc func(bucket, key string) string

// DefaultContent renders the stock {"bucket":…,"key":…} document.
func DefaultContent(bucket, key string) string {
	body, err := json.Marshal(Manifest{Bucket: bucket, Key: key})
	if err != nil {
		return fmt.Sprintf(`{"key":%q}`, key)
	}
	return string(body)
}

// TryFetchManifest reads and decodes the manifest at key. Every failure
// (missing object, read error, invalid JSON) yields false and an empty
// document; the cause is deliberately not returned.
func TryFetchManifest(ctx context.Context, store storage.Storage, key string) (Manifest, bool) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return Manifest{}, false
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return Manifest{}, false
	}
	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return Manifest{}, false
	}
	return manifest, true
}
