package app

import (
	"errors"
	"fmt"

	"github.com/rowjay/fastboot-deploy/internal/config"
	"github.com/rowjay/fastboot-deploy/internal/revision"
	"github.com/rowjay/fastboot-deploy/internal/util"
)

var (
	ErrMissingConfig   = errors.New("missing required config")
	ErrMissingRevision = errors.New("no revision key")
)

// Resolved is the configuration for a single hook invocation. It is built
// fresh by Resolve every time and never shared between hooks.
type Resolved struct {
	Storage config.StorageConfig
	Bucket  string

	ArchiveKeyPrefix string
	ManifestKey      string
	RevisionKey      string

	ActivateManifest bool
	ActivateZip      bool
	AliasKey         string
	ManifestContent  revision.ContentFunc

	WarnOnMissingManifest bool
}

// Resolve combines the loaded config with the deploy context. Bucket and
// region are required; their absence fails before any network call.
func Resolve(cfg *config.Config, dctx *DeployContext) (Resolved, error) {
	s3 := cfg.Storage.S3
	if s3.Bucket == "" {
		return Resolved{}, fmt.Errorf("%w: storage.s3.bucket", ErrMissingConfig)
	}
	if s3.Region == "" {
		return Resolved{}, fmt.Errorf("%w: storage.s3.region", ErrMissingConfig)
	}

	keys := setupKeys(cfg.Plugin, dctx)
	if dctx.ArchiveKeyPrefix != "" {
		keys.ArchiveKeyPrefix = dctx.ArchiveKeyPrefix
	}
	if dctx.ManifestKey != "" {
		keys.ManifestKey = dctx.ManifestKey
	}

	aliasKey := cfg.Plugin.AliasKey
	if aliasKey == "" {
		aliasKey = util.AliasKey(keys.ArchiveKeyPrefix)
	}

	return Resolved{
		Storage:               cfg.Storage,
		Bucket:                s3.Bucket,
		ArchiveKeyPrefix:      keys.ArchiveKeyPrefix,
		ManifestKey:           keys.ManifestKey,
		RevisionKey:           revisionKey(cfg.Plugin, dctx),
		ActivateManifest:      cfg.Plugin.ActivateManifest,
		ActivateZip:           cfg.Plugin.ActivateZip,
		AliasKey:              aliasKey,
		ManifestContent:       manifestContent(dctx),
		WarnOnMissingManifest: cfg.Plugin.WarnOnMissingManifest,
	}, nil
}

func setupKeys(plugin config.PluginConfig, dctx *DeployContext) SetupResult {
	manifestName := plugin.ManifestKey
	if manifestName == "" {
		manifestName = config.DefaultManifestKey
	}
	return SetupResult{
		ArchiveKeyPrefix: util.JoinKey(plugin.Prefix, archivePrefix(plugin, dctx)),
		ManifestKey:      util.JoinKey(plugin.Prefix, manifestName),
	}
}

func archivePrefix(plugin config.PluginConfig, dctx *DeployContext) string {
	if plugin.ArchivePrefix != "" {
		return plugin.ArchivePrefix
	}
	return dctx.ArchivePrefix
}

// revisionKey prefers an explicit setting, then the revision named on the
// command line, then the one computed by the revision-data plugin.
func revisionKey(plugin config.PluginConfig, dctx *DeployContext) string {
	switch {
	case plugin.RevisionKey != "":
		return plugin.RevisionKey
	case dctx.CommandOptions.Revision != "":
		return dctx.CommandOptions.Revision
	case dctx.RevisionData.RevisionKey != "":
		return dctx.RevisionData.RevisionKey
	default:
		return dctx.RevisionKey
	}
}

func manifestContent(dctx *DeployContext) revision.ContentFunc {
	if dctx.ManifestContent != nil {
		return dctx.ManifestContent
	}
	return revision.DefaultContent
}
