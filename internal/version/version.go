package version

// Set via -ldflags "-X github.com/rowjay/fastboot-deploy/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
