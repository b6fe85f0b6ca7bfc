// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodaay/HuggingFaceModelDownloader/pkg/hfdownloader"
	"github.com/rs/zerolog"
)

func stubDownload(t *testing.T, fn func(ctx context.Context, modelID, dest, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error) {
	t.Helper()
	orig := downloadSnapshot
	downloadSnapshot = fn
	t.Cleanup(func() { downloadSnapshot = orig })
}

func TestFetchReturnsDestination(t *testing.T) {
	stubDownload(t, func(ctx context.Context, modelID, dest, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error {
		if modelID != "org/model" {
			t.Errorf("modelID = %q", modelID)
		}
		if token != "hf_tok" {
			t.Errorf("token = %q", token)
		}
		if err := os.MkdirAll(filepath.Join(dest, "sub"), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dest, "config.json"), []byte("{}"), 0o600); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dest, "sub", "weights.bin"), []byte("0123456789"), 0o600)
	})

	dest := t.TempDir()
	f := NewFetcher("hf_tok", 4, zerolog.Nop())
	got, err := f.Fetch(context.Background(), "org/model", dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != dest {
		t.Errorf("Fetch returned %q, want requested destination %q", got, dest)
	}
}

func TestFetchEmptySnapshotIsNotAnError(t *testing.T) {
	stubDownload(t, func(ctx context.Context, modelID, dest, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error {
		return nil // repo had nothing to download
	})

	dest := t.TempDir()
	f := NewFetcher("", 1, zerolog.Nop())
	got, err := f.Fetch(context.Background(), "org/empty", dest)
	if err != nil {
		t.Fatalf("empty snapshot should be a warning, got %v", err)
	}
	if got != dest {
		t.Errorf("Fetch returned %q, want %q", got, dest)
	}
}

func TestFetchWrapsDownloadError(t *testing.T) {
	cause := errors.New("401 unauthorized")
	stubDownload(t, func(ctx context.Context, modelID, dest, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error {
		return cause
	})

	f := NewFetcher("", 1, zerolog.Nop())
	_, err := f.Fetch(context.Background(), "org/gated", t.TempDir())
	if err == nil {
		t.Fatal("expected fetch error")
	}
	var fErr *FetchError
	if !errors.As(err, &fErr) {
		t.Fatalf("error is %T, want *hub.FetchError", err)
	}
	if fErr.Model != "org/gated" {
		t.Errorf("Model = %q", fErr.Model)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestFetchMissingDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "snapshot")
	stubDownload(t, func(ctx context.Context, modelID, d, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error {
		return nil // never created the directory
	})

	f := NewFetcher("", 1, zerolog.Nop())
	_, err := f.Fetch(context.Background(), "org/model", dest)
	if err == nil {
		t.Fatal("a vanished destination directory is a fatal integrity failure")
	}
	var fErr *FetchError
	if !errors.As(err, &fErr) {
		t.Fatalf("error is %T, want *hub.FetchError", err)
	}
}

func TestGatherStats(t *testing.T) {
	dir := t.TempDir()
	sizes := map[string]int{"a.bin": 100, "b.bin": 300, "c/d.bin": 200}
	for rel, n := range sizes {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, make([]byte, n), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := gatherStats(dir)
	if err != nil {
		t.Fatalf("gatherStats: %v", err)
	}
	if stats.files != 3 {
		t.Errorf("files = %d, want 3", stats.files)
	}
	if stats.bytes != 600 {
		t.Errorf("bytes = %d, want 600", stats.bytes)
	}
	if len(stats.largest) != 3 || stats.largest[0].rel != "b.bin" {
		t.Errorf("largest = %+v, want b.bin first", stats.largest)
	}
}
