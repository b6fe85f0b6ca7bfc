// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvModelName, "meta-llama/Llama-2-7b-hf")
	t.Setenv(EnvBucket, "model-cache")
	t.Setenv(EnvEndpointURL, "https://objectstore.lon1.example.com")
	t.Setenv(EnvAccessKey, "AKIATEST1234567890AB")
	t.Setenv(EnvSecretKey, "secretsecretsecret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "models/" {
		t.Errorf("Prefix = %q, want %q", cfg.Prefix, "models/")
	}
	if cfg.WorkDir != "/tmp" {
		t.Errorf("WorkDir = %q, want /tmp", cfg.WorkDir)
	}
	if cfg.Workers != 10 {
		t.Errorf("Workers = %d, want 10", cfg.Workers)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", cfg.Region)
	}
	if cfg.DisableProgress {
		t.Error("DisableProgress should default to false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvBucket, "")
	t.Setenv(EnvSecretKey, "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when required variables are missing")
	}
	for _, name := range []string{EnvBucket, EnvSecretKey} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should name %s", err, name)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvPrefix, "llm-models")
	t.Setenv(EnvWorkers, "4")
	t.Setenv(EnvDisableProgress, "true")
	t.Setenv(EnvHubToken, "hf_sometoken")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "llm-models" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if !cfg.DisableProgress {
		t.Error("DisableProgress should be true")
	}
	if cfg.HubToken != "hf_sometoken" {
		t.Errorf("HubToken = %q", cfg.HubToken)
	}
}

func TestLoadProfile(t *testing.T) {
	setRequired(t)

	dir := t.TempDir()
	profile := filepath.Join(dir, "model-cache.ini")
	content := "upload_workers = 3\n\n[staging]\ns3_prefix = staging-models/\n"
	if err := os.WriteFile(profile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvProfilePath, profile)
	t.Setenv(EnvProfileSection, "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from profile", cfg.Workers)
	}
	if cfg.Prefix != "staging-models/" {
		t.Errorf("Prefix = %q, want staging-models/ from profile section", cfg.Prefix)
	}

	// Environment still wins over the profile.
	t.Setenv(EnvWorkers, "7")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want 7 from environment", cfg.Workers)
	}
}

func TestObjectPrefix(t *testing.T) {
	tests := []struct {
		prefix, modelID, want string
	}{
		{"models/", "gpt2", "models/gpt2/"},
		{"models", "gpt2", "models/gpt2/"},
		{"", "gpt2", "gpt2/"},
		{"models/", "meta-llama/Llama-2-7b-hf", "models/meta-llama/Llama-2-7b-hf/"},
	}
	for _, tt := range tests {
		c := &Config{Prefix: tt.prefix, ModelID: tt.modelID}
		if got := c.ObjectPrefix(); got != tt.want {
			t.Errorf("ObjectPrefix(%q, %q) = %q, want %q", tt.prefix, tt.modelID, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"AKIATEST1234567890AB", "AKIA***90AB"},
		{"short", "***"},
		{"", "***"},
		{"1234567", "***"},
		{"12345678", "1234***5678"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	c := &Config{
		ModelID:   "gpt2",
		Bucket:    "model-cache",
		AccessKey: "AKIATEST1234567890AB",
		SecretKey: "verysecretverysecret",
		HubToken:  "hf_sometoken",
	}
	out, err := c.Redacted()
	if err != nil {
		t.Fatalf("Redacted: %v", err)
	}
	for _, secret := range []string{"AKIATEST1234567890AB", "verysecretverysecret", "hf_sometoken"} {
		if strings.Contains(out, secret) {
			t.Errorf("redacted config leaks %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, "AKIA***90AB") {
		t.Errorf("redacted config should carry the masked access key:\n%s", out)
	}
}
