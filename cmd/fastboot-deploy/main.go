package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowjay/fastboot-deploy/internal/app"
	"github.com/rowjay/fastboot-deploy/internal/archive"
	"github.com/rowjay/fastboot-deploy/internal/config"
	"github.com/rowjay/fastboot-deploy/internal/cryptoutil"
	"github.com/rowjay/fastboot-deploy/internal/logging"
	"github.com/rowjay/fastboot-deploy/internal/notify"
	"github.com/rowjay/fastboot-deploy/internal/revision"
	"github.com/rowjay/fastboot-deploy/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	JSON       bool
}

type overrideFlags struct {
	Storage     string
	LocalPath   string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    string
	S3PathStyle string

	Prefix           string
	ArchivePrefix    string
	ManifestKey      string
	AliasKey         string
	ActivateManifest string
	ActivateZip      string
}

type contextFlags struct {
	ArchivePath string
	Revision    string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}
	dflags := &contextFlags{}

	rootCmd := &cobra.Command{
		Use:          "fastboot-deploy",
		Short:        "Upload and activate fastboot app revisions in S3",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	pf.StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")
	pf.BoolVar(&root.JSON, "json", false, "Print command results as JSON")

	pf.StringVar(&overrides.Storage, "storage", "", "Storage backend (s3, aws, local)")
	pf.StringVar(&overrides.LocalPath, "storage-path", "", "Local storage path")
	pf.StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint")
	pf.StringVar(&overrides.S3Bucket, "bucket", "", "Bucket holding revisions")
	pf.StringVar(&overrides.S3AccessKey, "access-key-id", "", "S3 access key")
	pf.StringVar(&overrides.S3SecretKey, "secret-access-key", "", "S3 secret key")
	pf.StringVar(&overrides.S3Region, "region", "", "Bucket region")
	pf.StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	pf.StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")

	pf.StringVar(&overrides.Prefix, "prefix", "", "Key segment prepended to archive prefix and manifest key")
	pf.StringVar(&overrides.ArchivePrefix, "archive-prefix", "", "Key prefix of revision archives")
	pf.StringVar(&overrides.ManifestKey, "manifest-key", "", "Manifest object name")
	pf.StringVar(&overrides.AliasKey, "alias-key", "", "Stable key the active archive is copied to")
	pf.StringVar(&overrides.ActivateManifest, "activate-manifest", "", "Write the manifest on activate (true/false)")
	pf.StringVar(&overrides.ActivateZip, "activate-zip", "", "Copy the archive to the alias key on activate (true/false)")

	pf.StringVar(&dflags.ArchivePath, "archive", "", "Path to the revision zip")
	pf.StringVar(&dflags.Revision, "revision", "", "Revision key")

	rootCmd.AddCommand(newSetupCmd(root, overrides, dflags))
	rootCmd.AddCommand(newUploadCmd(root, overrides, dflags))
	rootCmd.AddCommand(newActivateCmd(root, overrides, dflags))
	rootCmd.AddCommand(newListCmd(root, overrides, dflags, false))
	rootCmd.AddCommand(newListCmd(root, overrides, dflags, true))
	rootCmd.AddCommand(newDeployCmd(root, overrides, dflags))
	rootCmd.AddCommand(newInspectCmd(root))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session bundles what every hook command needs.
type session struct {
	log    zerolog.Logger
	app    *app.App
	dctx   *app.DeployContext
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(root *rootFlags, overrides *overrideFlags, dflags *contextFlags) (*session, error) {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return nil, err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	dctx := &app.DeployContext{
		ArchivePath:    dflags.ArchivePath,
		CommandOptions: app.CommandOptions{Revision: dflags.Revision},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
	return &session{
		log:    logger,
		app:    app.New(cfg, logger, notify.FromConfig(cfg.Notifications)),
		dctx:   dctx,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// setup runs the setup hook and merges its keys into the deploy context.
func (s *session) setup() (app.SetupResult, error) {
	res, err := s.app.Setup(s.dctx)
	if err != nil {
		return app.SetupResult{}, err
	}
	s.dctx.Merge(res)
	return res, nil
}

func newSetupCmd(root *rootFlags, overrides *overrideFlags, dflags *contextFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Validate config and print the resolved storage keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(root, overrides, dflags)
			if err != nil {
				return err
			}
			defer s.cancel()
			res, err := s.setup()
			if err != nil {
				return err
			}
			if root.JSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archive prefix\t%s\nmanifest key\t%s\n", res.ArchiveKeyPrefix, res.ManifestKey)
			return nil
		},
	}
}

func newUploadCmd(root *rootFlags, overrides *overrideFlags, dflags *contextFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload a revision archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dflags.ArchivePath == "" {
				return fmt.Errorf("--archive is required")
			}
			s, err := newSession(root, overrides, dflags)
			if err != nil {
				return err
			}
			defer s.cancel()
			if _, err := s.setup(); err != nil {
				return err
			}
			res, err := s.app.Upload(s.ctx, s.dctx)
			if err != nil {
				return err
			}
			if root.JSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Key)
			return nil
		},
	}
}

func newActivateCmd(root *rootFlags, overrides *overrideFlags, dflags *contextFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Point the manifest and/or alias at a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(root, overrides, dflags)
			if err != nil {
				return err
			}
			defer s.cancel()
			if _, err := s.setup(); err != nil {
				return err
			}
			res, err := s.app.Activate(s.ctx, s.dctx)
			printActivation(cmd.OutOrStdout(), res)
			return err
		},
	}
}

func newListCmd(root *rootFlags, overrides *overrideFlags, dflags *contextFlags, initial bool) *cobra.Command {
	use, short := "list", "List uploaded revisions"
	if initial {
		use, short = "initial", "List revisions as they stand before a deploy"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(root, overrides, dflags)
			if err != nil {
				return err
			}
			defer s.cancel()
			if _, err := s.setup(); err != nil {
				return err
			}
			var records []revision.Record
			var payload any
			if initial {
				res, err := s.app.FetchInitialRevisions(s.ctx, s.dctx)
				if err != nil {
					return err
				}
				records, payload = res.InitialRevisions, res
			} else {
				res, err := s.app.FetchRevisions(s.ctx, s.dctx)
				if err != nil {
					return err
				}
				records, payload = res.Revisions, res
			}
			if root.JSON {
				return printJSON(cmd.OutOrStdout(), payload)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
}

func newDeployCmd(root *rootFlags, overrides *overrideFlags, dflags *contextFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Run setup, upload and activate for one revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dflags.ArchivePath == "" || dflags.Revision == "" {
				return fmt.Errorf("--archive and --revision are required")
			}
			s, err := newSession(root, overrides, dflags)
			if err != nil {
				return err
			}
			defer s.cancel()
			if _, err := s.setup(); err != nil {
				return err
			}
			initial, err := s.app.FetchInitialRevisions(s.ctx, s.dctx)
			if err != nil {
				return err
			}
			s.log.Debug().Int("revisions", len(initial.InitialRevisions)).Msg("initial revisions")
			up, err := s.app.Upload(s.ctx, s.dctx)
			if err != nil {
				return err
			}
			res, err := s.app.Activate(s.ctx, s.dctx)
			printActivation(cmd.OutOrStdout(), res)
			if err != nil {
				return err
			}
			s.log.Info().Str("key", up.Key).Msg("deploy completed")
			return nil
		},
	}
}

func newInspectCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive.zip>",
		Short: "List the entries of a revision archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := archive.Read(args[0])
			if err != nil {
				return err
			}
			summary, err := archive.Describe(data)
			if err != nil {
				return err
			}
			if root.JSON {
				return printJSON(cmd.OutOrStdout(), summary)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range summary.Entries {
				fmt.Fprintf(w, "%s\t%d\t%d\n", e.Name, e.CompressedSize, e.UncompressedSize)
			}
			fmt.Fprintf(w, "%d files\t%d\t%d\n", len(summary.Entries), summary.CompressedSize, summary.UncompressedSize)
			return w.Flush()
		},
	}
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			out, err := config.SealConfigFile(input, output, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file (default <input>.enc)")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key, base64 or hex (default $FBD_CONFIG_KEY)")

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a config encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := cryptoutil.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}

	cmd.AddCommand(encrypt, keygen)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fastboot-deploy %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func printRecords(out io.Writer, records []revision.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range records {
		marker := ""
		if r.Active {
			marker = "active"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Revision, r.Timestamp.Format(time.RFC3339), marker)
	}
	return w.Flush()
}

func printActivation(out io.Writer, res app.ActivateResult) {
	for _, step := range []struct {
		name string
		app.Step
	}{{"manifest", res.Manifest}, {"alias", res.Alias}} {
		if !step.Enabled {
			continue
		}
		status := "ok"
		if step.Err != nil {
			status = "failed: " + step.Err.Error()
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", step.name, step.Key, status)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, root, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) error {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.Storage != "" {
		cfg.Storage.Backend = overrides.Storage
	}
	if overrides.LocalPath != "" {
		cfg.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Storage.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Storage.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Storage.S3.Region = overrides.S3Region
	}
	if err := parseBoolFlag("s3-ssl", overrides.S3UseSSL, &cfg.Storage.S3.UseSSL); err != nil {
		return err
	}
	if err := parseBoolFlag("s3-path-style", overrides.S3PathStyle, &cfg.Storage.S3.ForcePathStyle); err != nil {
		return err
	}

	if overrides.Prefix != "" {
		cfg.Plugin.Prefix = overrides.Prefix
	}
	if overrides.ArchivePrefix != "" {
		cfg.Plugin.ArchivePrefix = overrides.ArchivePrefix
	}
	if overrides.ManifestKey != "" {
		cfg.Plugin.ManifestKey = overrides.ManifestKey
	}
	if overrides.AliasKey != "" {
		cfg.Plugin.AliasKey = overrides.AliasKey
	}
	if err := parseBoolFlag("activate-manifest", overrides.ActivateManifest, &cfg.Plugin.ActivateManifest); err != nil {
		return err
	}
	if err := parseBoolFlag("activate-zip", overrides.ActivateZip, &cfg.Plugin.ActivateZip); err != nil {
		return err
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	return nil
}

// parseBoolFlag sets dst from a true/false flag value; empty leaves it alone.
func parseBoolFlag(name, value string, dst *bool) error {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("--%s: invalid boolean %q", name, value)
	}
	*dst = v
	return nil
}
