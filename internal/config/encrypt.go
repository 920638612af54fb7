package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/rowjay/fastboot-deploy/internal/cryptoutil"
)

const configKeyEnv = "FBD_CONFIG_KEY"

// SealConfigFile encrypts a plaintext config so Load can read it back.
// An empty output defaults to <input>.enc and an empty key to
// $FBD_CONFIG_KEY. The plaintext must parse before it is sealed.
func SealConfigFile(inputPath, outputPath, key string) (string, error) {
	if outputPath == "" {
		outputPath = inputPath + ".enc"
	}
	if !isEncryptedPath(outputPath) {
		return "", fmt.Errorf("output %q must end in .enc or .encrypted", outputPath)
	}
	if key == "" {
		key = os.Getenv(configKeyEnv)
	}
	if key == "" {
		return "", fmt.Errorf("no key given and %s is not set", configKeyEnv)
	}
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return "", err
	}

	plain, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	vp := viper.New()
	vp.SetConfigType(configTypeFromPath(outputPath))
	if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
		return "", fmt.Errorf("parse %s: %w", inputPath, err)
	}

	sealed, err := cryptoutil.EncryptConfig(plain, parsed)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, sealed, 0o600); err != nil {
		return "", err
	}
	return outputPath, nil
}
