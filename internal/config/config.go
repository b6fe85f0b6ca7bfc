// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the run configuration from the environment, with an
// optional INI profile file merged in as defaults. The resulting Config is
// built once at startup and read-only thereafter.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
	"sigs.k8s.io/yaml"
)

// Environment variable names. The required set must be present or Load
// fails before any network call is made.
const (
	EnvModelName       = "MODEL_NAME"
	EnvBucket          = "S3_BUCKET"
	EnvEndpointURL     = "S3_ENDPOINT_URL"
	EnvAccessKey       = "AWS_ACCESS_KEY_ID"
	EnvSecretKey       = "AWS_SECRET_ACCESS_KEY"
	EnvRegion          = "AWS_REGION"
	EnvPrefix          = "S3_PREFIX"
	EnvHubToken        = "HF_TOKEN"
	EnvWorkDir         = "DOWNLOAD_DIR"
	EnvWorkers         = "UPLOAD_WORKERS"
	EnvDisableProgress = "DISABLE_PROGRESS"
	EnvLogLevel        = "LOG_LEVEL"
	EnvProfilePath     = "MODEL_CACHE_CONFIG"
	EnvProfileSection  = "MODEL_CACHE_ENV"
)

var required = []string{EnvModelName, EnvBucket, EnvEndpointURL, EnvAccessKey, EnvSecretKey}

// Config is the immutable run configuration. Credentials are opaque: only
// the masked form may ever reach a log line.
type Config struct {
	ModelID         string
	Bucket          string
	EndpointURL     string
	Region          string
	AccessKey       string
	SecretKey       string
	Prefix          string
	HubToken        string
	WorkDir         string
	Workers         int
	DisableProgress bool
	LogLevel        string
}

// Load reads the configuration from the environment. A local .env file is
// honored in development; an INI profile named by MODEL_CACHE_CONFIG
// provides defaults that the environment can still override.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(EnvPrefix, "models/")
	v.SetDefault(EnvWorkDir, "/tmp")
	v.SetDefault(EnvWorkers, 10)
	v.SetDefault(EnvRegion, "us-east-1")
	v.SetDefault(EnvLogLevel, "info")
	v.AutomaticEnv()

	for _, key := range []string{
		EnvModelName, EnvBucket, EnvEndpointURL, EnvAccessKey, EnvSecretKey,
		EnvRegion, EnvPrefix, EnvHubToken, EnvWorkDir, EnvWorkers,
		EnvDisableProgress, EnvLogLevel, EnvProfilePath, EnvProfileSection,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if profile := v.GetString(EnvProfilePath); profile != "" {
		if err := mergeProfile(v, profile, v.GetString(EnvProfileSection)); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, key := range required {
		if v.GetString(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		ModelID:         v.GetString(EnvModelName),
		Bucket:          v.GetString(EnvBucket),
		EndpointURL:     v.GetString(EnvEndpointURL),
		Region:          v.GetString(EnvRegion),
		AccessKey:       v.GetString(EnvAccessKey),
		SecretKey:       v.GetString(EnvSecretKey),
		Prefix:          v.GetString(EnvPrefix),
		HubToken:        v.GetString(EnvHubToken),
		WorkDir:         v.GetString(EnvWorkDir),
		Workers:         v.GetInt(EnvWorkers),
		DisableProgress: v.GetBool(EnvDisableProgress),
		LogLevel:        v.GetString(EnvLogLevel),
	}
	if cfg.Workers < 1 {
		cfg.Workers = 10
	}
	return cfg, nil
}

// mergeProfile loads [DEFAULT] plus the selected section of an INI profile
// into viper as defaults. Environment variables keep precedence on Get.
func mergeProfile(v *viper.Viper, path, section string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", path, err)
	}
	sections := []*ini.Section{cfg.Section(ini.DefaultSection)}
	if section != "" && cfg.HasSection(section) {
		sections = append(sections, cfg.Section(section))
	}
	for _, sec := range sections {
		for _, key := range sec.Keys() {
			v.SetDefault(strings.ToUpper(key.Name()), key.Value())
		}
	}
	return nil
}

// ObjectPrefix derives the destination key prefix: the configured prefix,
// normalized to end with '/', followed by the model id and a trailing '/'.
// It doubles as the existence-check prefix and the upload root.
func (c *Config) ObjectPrefix() string {
	p := c.Prefix
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p + c.ModelID + "/"
}

// Mask renders a credential safe for logging: first four and last four
// characters, or "***" when shorter than eight.
func Mask(s string) string {
	if len(s) < 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// redactedView is the loggable projection of Config.
type redactedView struct {
	ModelName       string `json:"model_name"`
	S3Bucket        string `json:"s3_bucket"`
	S3EndpointURL   string `json:"s3_endpoint_url"`
	AwsRegion       string `json:"aws_region"`
	AwsAccessKeyID  string `json:"aws_access_key_id"`
	AwsSecretKey    string `json:"aws_secret_access_key"`
	S3Prefix        string `json:"s3_prefix"`
	HfToken         string `json:"hf_token"`
	DownloadDir     string `json:"download_dir"`
	UploadWorkers   int    `json:"upload_workers"`
	DisableProgress bool   `json:"disable_progress"`
	LogLevel        string `json:"log_level"`
}

// Redacted renders the effective configuration as YAML with all secrets
// masked, for the startup log.
func (c *Config) Redacted() (string, error) {
	token := "not set"
	if c.HubToken != "" {
		token = "***"
	}
	view := redactedView{
		ModelName:       c.ModelID,
		S3Bucket:        c.Bucket,
		S3EndpointURL:   c.EndpointURL,
		AwsRegion:       c.Region,
		AwsAccessKeyID:  Mask(c.AccessKey),
		AwsSecretKey:    Mask(c.SecretKey),
		S3Prefix:        c.Prefix,
		HfToken:         token,
		DownloadDir:     c.WorkDir,
		UploadWorkers:   c.Workers,
		DisableProgress: c.DisableProgress,
		LogLevel:        c.LogLevel,
	}
	out, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("render configuration: %w", err)
	}
	return string(out), nil
}
