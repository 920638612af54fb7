package app

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/fastboot-deploy/internal/archive"
	"github.com/rowjay/fastboot-deploy/internal/config"
	"github.com/rowjay/fastboot-deploy/internal/notify"
	"github.com/rowjay/fastboot-deploy/internal/revision"
	"github.com/rowjay/fastboot-deploy/internal/storage"
	"github.com/rowjay/fastboot-deploy/internal/util"
)

// StoreFactory builds a storage client. It is called once per hook so
// credentials and region are always read fresh.
type StoreFactory func(cfg config.StorageConfig) (storage.Storage, error)

// App implements the deploy lifecycle hooks. It holds no state between
// calls; everything durable lives in the bucket.
type App struct {
	Cfg      *config.Config
	Log      zerolog.Logger
	Notifier notify.Notifier
	NewStore StoreFactory
}

func New(cfg *config.Config, log zerolog.Logger, notifier notify.Notifier) *App {
	return &App{Cfg: cfg, Log: log, Notifier: notifier, NewStore: storage.New}
}

type UploadResult struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type FetchResult struct {
	Revisions []revision.Record `json:"revisions"`
}

type InitialFetchResult struct {
	InitialRevisions []revision.Record `json:"initialRevisions"`
}

// Setup validates the required config and computes the archive key prefix
// and manifest key for this deploy.
func (a *App) Setup(dctx *DeployContext) (SetupResult, error) {
	if _, err := Resolve(a.Cfg, dctx); err != nil {
		return SetupResult{}, err
	}
	res := setupKeys(a.Cfg.Plugin, dctx)
	a.Log.Debug().Str("archive_key_prefix", res.ArchiveKeyPrefix).Str("manifest_key", res.ManifestKey).Msg("setup")
	return res, nil
}

// Upload stores the archive at <archiveKeyPrefix><revision>.zip, replacing
// any object already there.
func (a *App) Upload(ctx context.Context, dctx *DeployContext) (res UploadResult, opErr error) {
	start := time.Now()
	resolved, err := Resolve(a.Cfg, dctx)
	if err != nil {
		return UploadResult{}, err
	}
	if resolved.RevisionKey == "" {
		return UploadResult{}, ErrMissingRevision
	}
	key := util.ArchiveKey(resolved.ArchiveKeyPrefix, resolved.RevisionKey)
	defer func() { a.notify("upload", resolved, key, start, opErr) }()

	data, err := archive.Read(dctx.ArchivePath)
	if err != nil {
		return UploadResult{}, err
	}
	a.logArchive(dctx.ArchivePath, data)

	store, err := a.NewStore(resolved.Storage)
	if err != nil {
		return UploadResult{}, err
	}
	if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), archiveOptions(resolved.RevisionKey)); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", key, err)
	}
	a.Log.Info().Str("bucket", resolved.Bucket).Str("key", key).Int("size", len(data)).Msg("revision uploaded")
	return UploadResult{Key: key, Size: int64(len(data))}, nil
}

// FetchRevisions lists the stored revisions, newest first.
func (a *App) FetchRevisions(ctx context.Context, dctx *DeployContext) (FetchResult, error) {
	records, err := a.list(ctx, dctx)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Revisions: records}, nil
}

// FetchInitialRevisions is FetchRevisions for the state before a deploy.
func (a *App) FetchInitialRevisions(ctx context.Context, dctx *DeployContext) (InitialFetchResult, error) {
	records, err := a.list(ctx, dctx)
	if err != nil {
		return InitialFetchResult{}, err
	}
	return InitialFetchResult{InitialRevisions: records}, nil
}

func (a *App) list(ctx context.Context, dctx *DeployContext) ([]revision.Record, error) {
	resolved, err := Resolve(a.Cfg, dctx)
	if err != nil {
		return nil, err
	}
	store, err := a.NewStore(resolved.Storage)
	if err != nil {
		return nil, err
	}
	listing, err := revision.List(ctx, store, resolved.ArchiveKeyPrefix, resolved.ManifestKey)
	if err != nil {
		return nil, err
	}
	if !listing.ManifestFound && resolved.WarnOnMissingManifest {
		a.Log.Warn().Str("manifest_key", resolved.ManifestKey).Msg("no readable manifest; no revision is active")
	}
	a.Log.Debug().Str("prefix", resolved.ArchiveKeyPrefix).Int("revisions", len(listing.Records)).Msg("revisions listed")
	return listing.Records, nil
}

// archiveOptions tags a stored archive with the revision it holds.
func archiveOptions(rev string) storage.PutOptions {
	return storage.PutOptions{
		ContentType: "application/zip",
		Metadata:    map[string]string{"revision": rev},
	}
}

func (a *App) logArchive(path string, data []byte) {
	summary, err := archive.Describe(data)
	if err != nil {
		a.Log.Warn().Err(err).Str("archive", path).Msg("archive is not a readable zip")
		return
	}
	a.Log.Debug().
		Str("archive", path).
		Int("entries", len(summary.Entries)).
		Uint64("uncompressed_bytes", summary.UncompressedSize).
		Msg("archive read")
}

func (a *App) notify(kind string, resolved Resolved, key string, start time.Time, err error) {
	if a.Notifier == nil {
		return
	}
	event := notify.NewEvent(kind, resolved.Bucket, resolved.RevisionKey, key, start, err)
	if nerr := a.Notifier.Notify(context.Background(), event); nerr != nil {
		a.Log.Warn().Err(nerr).Str("event", event.ID).Msg("notification failed")
	}
}
