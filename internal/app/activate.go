package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowjay/fastboot-deploy/internal/storage"
	"github.com/rowjay/fastboot-deploy/internal/util"
)

// Step is the outcome of one activation side effect.
type Step struct {
	Enabled bool
	Key     string
	Err     error
}

// ActivateResult reports both side effects separately. They are not
// transactional: the manifest may be updated while the alias copy failed,
// or the reverse.
type ActivateResult struct {
	Revision   string
	ArchiveKey string
	Manifest   Step
	Alias      Step
}

// Err joins the failures of both steps.
func (r ActivateResult) Err() error {
	var errs []error
	if r.Manifest.Err != nil {
		errs = append(errs, fmt.Errorf("write manifest %s: %w", r.Manifest.Key, r.Manifest.Err))
	}
	if r.Alias.Err != nil {
		errs = append(errs, fmt.Errorf("copy %s to %s: %w", r.ArchiveKey, r.Alias.Key, r.Alias.Err))
	}
	return errors.Join(errs...)
}

// Activate points the fastboot host at a revision by writing the manifest
// and/or copying the archive to its alias key. Enabled steps run
// concurrently and neither cancels the other; nothing is rolled back.
func (a *App) Activate(ctx context.Context, dctx *DeployContext) (res ActivateResult, opErr error) {
	start := time.Now()
	resolved, err := Resolve(a.Cfg, dctx)
	if err != nil {
		return ActivateResult{}, err
	}
	if resolved.RevisionKey == "" {
		return ActivateResult{}, ErrMissingRevision
	}
	if resolved.ActivateZip && resolved.AliasKey == "" {
		return ActivateResult{}, fmt.Errorf("%w: plugin.alias_key (archive prefix %q yields no alias)", ErrMissingConfig, resolved.ArchiveKeyPrefix)
	}

	res = ActivateResult{
		Revision:   resolved.RevisionKey,
		ArchiveKey: util.ArchiveKey(resolved.ArchiveKeyPrefix, resolved.RevisionKey),
		Manifest:   Step{Enabled: resolved.ActivateManifest, Key: resolved.ManifestKey},
		Alias:      Step{Enabled: resolved.ActivateZip, Key: resolved.AliasKey},
	}
	if !res.Manifest.Enabled && !res.Alias.Enabled {
		a.Log.Warn().Str("revision", res.Revision).Msg("activation disabled; nothing to do")
		return res, nil
	}
	defer func() { a.notify("activate", resolved, res.ArchiveKey, start, opErr) }()

	store, err := a.NewStore(resolved.Storage)
	if err != nil {
		return res, err
	}

	var g errgroup.Group
	if res.Manifest.Enabled {
		body := resolved.ManifestContent(resolved.Bucket, res.ArchiveKey)
		g.Go(func() error {
			opts := storage.PutOptions{ACL: storage.ACLPublicRead, ContentType: "application/json"}
			res.Manifest.Err = store.Put(ctx, res.Manifest.Key, strings.NewReader(body), int64(len(body)), opts)
			return res.Manifest.Err
		})
	}
	if res.Alias.Enabled {
		g.Go(func() error {
			opts := archiveOptions(res.Revision)
			opts.ACL = storage.ACLPublicRead
			res.Alias.Err = store.Copy(ctx, res.ArchiveKey, res.Alias.Key, opts)
			return res.Alias.Err
		})
	}
	_ = g.Wait()

	if err := res.Err(); err != nil {
		a.Log.Error().Err(err).Str("revision", res.Revision).Msg("activation incomplete")
		return res, err
	}
	a.Log.Info().
		Str("revision", res.Revision).
		Str("archive_key", res.ArchiveKey).
		Bool("manifest", res.Manifest.Enabled).
		Bool("alias", res.Alias.Enabled).
		Msg("revision activated")
	return res, nil
}
