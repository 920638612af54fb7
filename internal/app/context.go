package app

import "github.com/rowjay/fastboot-deploy/internal/revision"

// DeployContext mirrors the fields of the pipeline runtime's shared deploy
// context that the hooks read. The runtime owns it; hooks only return values
// to be merged back.
type DeployContext struct {
	// ArchivePath is the local zip produced by the packaging step.
	ArchivePath string
	RevisionKey string

	RevisionData   RevisionData
	CommandOptions CommandOptions

	// ArchivePrefix and ManifestContent are supplied by the sibling plugin
	// that builds the fastboot archive and defines the manifest schema.
	ArchivePrefix   string
	ManifestContent revision.ContentFunc

	// Set by Setup.
	ArchiveKeyPrefix string
	ManifestKey      string
}

type RevisionData struct {
	RevisionKey string
}

type CommandOptions struct {
	Revision string
}

// SetupResult holds the keys Setup adds to the deploy context.
type SetupResult struct {
	ArchiveKeyPrefix string `json:"archiveKeyPrefix"`
	ManifestKey      string `json:"manifestKey"`
}

// Merge copies the setup keys into the context.
func (d *DeployContext) Merge(res SetupResult) {
	d.ArchiveKeyPrefix = res.ArchiveKeyPrefix
	d.ManifestKey = res.ManifestKey
}
