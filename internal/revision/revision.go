// Package revision reconciles the archives stored in a bucket with the
// manifest that names the active one.
package revision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rowjay/fastboot-deploy/internal/storage"
)

// Record describes one uploaded revision. Records are derived from the
// bucket listing on every call and never stored.
type Record struct {
	Revision  string    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
	Active    bool      `json:"active"`
}

// Listing is the outcome of List. ManifestFound reports whether the manifest
// could be read; callers may warn on its absence but List never fails on it.
type Listing struct {
	Records       []Record
	Manifest      Manifest
	ManifestFound bool
}

// List returns the revisions stored under archivePrefix, newest first, with
// the one named by the manifest at manifestKey marked active. Listing errors
// are returned; manifest errors are not.
func List(ctx context.Context, store storage.Storage, archivePrefix, manifestKey string) (Listing, error) {
	objects, err := store.List(ctx, archivePrefix)
	if err != nil {
		return Listing{}, fmt.Errorf("list revisions under %q: %w", archivePrefix, err)
	}

	manifest, found := TryFetchManifest(ctx, store, manifestKey)
	listing := Listing{Records: []Record{}, Manifest: manifest, ManifestFound: found}
	if len(objects) == 0 {
		return listing, nil
	}

	matcher := NewMatcher(archivePrefix)
	for _, obj := range objects {
		rev, ok := matcher.Match(obj.Key)
		if !ok {
			continue
		}
		listing.Records = append(listing.Records, Record{
			Revision:  rev,
			Timestamp: obj.Modified,
			Active:    manifest.Key != "" && obj.Key == manifest.Key,
		})
	}
	sort.SliceStable(listing.Records, func(i, j int) bool {
		return listing.Records[i].Timestamp.After(listing.Records[j].Timestamp)
	})
	return listing, nil
}
