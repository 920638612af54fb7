package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/fastboot-deploy/internal/cryptoutil"
)

const (
	envPrefix = "FBD"

	// DefaultManifestKey is the object name the fastboot app server polls.
	DefaultManifestKey = "fastboot-deploy-info.json"
)

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) {
			vp.SetConfigType(configTypeFromPath(resolved))
			key := os.Getenv(configKeyEnv)
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but FBD_CONFIG_KEY is not set")
			}
			plain, decErr := decryptConfig(data, key)
			if decErr != nil {
				return nil, fmt.Errorf("decrypt config: %w", decErr)
			}
			if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigFile(resolved)
			if err := vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("FBD_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"fastboot-deploy.yaml",
		"fastboot-deploy.yml",
		"fastboot-deploy.toml",
		"fastboot-deploy.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "fastboot-deploy")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
			if _, err := os.Stat(p + ".enc"); err == nil {
				return p + ".enc", nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(path, ".enc"), ".encrypted")
	switch {
	case strings.HasSuffix(trimmed, ".toml"):
		return "toml"
	case strings.HasSuffix(trimmed, ".json"):
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "10m")
	vp.SetDefault("storage.backend", "s3")
	vp.SetDefault("storage.local.path", "./revisions")
	vp.SetDefault("storage.s3.endpoint", "s3.amazonaws.com")
	vp.SetDefault("storage.s3.use_ssl", true)
	// Registered so AutomaticEnv can bind them, e.g. FBD_STORAGE_S3_BUCKET.
	for _, key := range []string{
		"storage.s3.region",
		"storage.s3.bucket",
		"storage.s3.access_key",
		"storage.s3.secret_key",
		"storage.s3.session_token",
		"plugin.prefix",
		"plugin.archive_prefix",
		"plugin.revision_key",
		"plugin.alias_key",
	} {
		vp.SetDefault(key, "")
	}
	vp.SetDefault("plugin.manifest_key", DefaultManifestKey)
	vp.SetDefault("plugin.activate_manifest", true)
	vp.SetDefault("plugin.activate_zip", false)
	vp.SetDefault("plugin.warn_on_missing_manifest", true)
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 10 * time.Minute
	}
	if cfg.Plugin.ManifestKey == "" {
		cfg.Plugin.ManifestKey = DefaultManifestKey
	}
}

func expandEnv(cfg *Config) {
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.SessionToken = os.ExpandEnv(cfg.Storage.S3.SessionToken)
	cfg.Storage.S3.Bucket = os.ExpandEnv(cfg.Storage.S3.Bucket)
	cfg.Notifications = expandNotificationEnv(cfg.Notifications)
}

func expandNotificationEnv(cfg NotificationsConfig) NotificationsConfig {
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = os.ExpandEnv(cfg.Webhooks[i].URL)
	}
	for i := range cfg.Mattermost {
		cfg.Mattermost[i].URL = os.ExpandEnv(cfg.Mattermost[i].URL)
	}
	for i := range cfg.Matrix {
		cfg.Matrix[i].ServerURL = os.ExpandEnv(cfg.Matrix[i].ServerURL)
		cfg.Matrix[i].AccessToken = os.ExpandEnv(cfg.Matrix[i].AccessToken)
		cfg.Matrix[i].RoomID = os.ExpandEnv(cfg.Matrix[i].RoomID)
	}
	return cfg
}

func decryptConfig(ciphertext []byte, key string) ([]byte, error) {
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return cryptoutil.DecryptConfig(ciphertext, parsed)
}
