package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Plugin        PluginConfig        `mapstructure:"plugin"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
}

type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // local, s3, aws
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	SessionToken    string `mapstructure:"session_token"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

// PluginConfig controls where revisions live in the bucket and how a
// revision is activated.
type PluginConfig struct {
	Prefix        string `mapstructure:"prefix"`         // bucket-wide key segment, optional
	ArchivePrefix string `mapstructure:"archive_prefix"` // falls back to the deploy context
	ManifestKey   string `mapstructure:"manifest_key"`
	RevisionKey   string `mapstructure:"revision_key"` // falls back to the deploy context

	ActivateManifest bool   `mapstructure:"activate_manifest"`
	ActivateZip      bool   `mapstructure:"activate_zip"`
	AliasKey         string `mapstructure:"alias_key"` // derived from the archive prefix when empty

	WarnOnMissingManifest bool `mapstructure:"warn_on_missing_manifest"`
}

type NotificationsConfig struct {
	Webhooks   []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost []MattermostHook `mapstructure:"mattermost"`
	Matrix     []MatrixConfig   `mapstructure:"matrix"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}
