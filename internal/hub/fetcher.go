// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package hub downloads a complete model snapshot from the HuggingFace hub
// into a local directory. Downloads resume across retried invocations and
// always produce real files, never symlinks into a shared cache, so the
// subsequent directory walk sees actual content.
package hub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bodaay/HuggingFaceModelDownloader/pkg/hfdownloader"
	"github.com/rs/zerolog"
)

// FetchError reports a failed hub download: auth for gated repos, unknown
// repository, or network failure. Fatal for the run; retry policy belongs
// to the pod restart loop, not to this process.
type FetchError struct {
	Model string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s from hub: %v", e.Model, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// downloadSnapshot is a seam for tests.
var downloadSnapshot = func(ctx context.Context, modelID, dest, token string, workers int, onEvent func(hfdownloader.ProgressEvent)) error {
	job := hfdownloader.Job{
		Repo:     modelID,
		Revision: "main",
	}
	cfg := hfdownloader.Settings{
		OutputDir:   dest,
		Concurrency: workers,
		Token:       token,
	}
	return hfdownloader.Download(ctx, job, cfg, onEvent)
}

type Fetcher struct {
	token   string
	workers int
	log     zerolog.Logger
}

// NewFetcher builds a hub fetcher. token may be empty for public repos;
// workers bounds the downloader's own transfer concurrency.
func NewFetcher(token string, workers int, log zerolog.Logger) *Fetcher {
	return &Fetcher{token: token, workers: workers, log: log}
}

// Fetch downloads the full snapshot of modelID into dest, which must
// already exist and be private to the process owner. It returns the
// populated root, which always equals dest. An empty snapshot is reported
// as a warning, not a failure: an empty upstream repo is legitimate.
func (f *Fetcher) Fetch(ctx context.Context, modelID, dest string) (string, error) {
	f.log.Info().Str("model", modelID).Str("dir", dest).Msg("downloading snapshot from hub")

	start := time.Now()
	err := downloadSnapshot(ctx, modelID, dest, f.token, f.workers, func(e hfdownloader.ProgressEvent) {
		f.log.Debug().Str("event", e.Event).Str("path", e.Path).Msg(e.Message)
	})
	if err != nil {
		return "", &FetchError{Model: modelID, Err: err}
	}
	elapsed := time.Since(start)

	if _, err := os.Stat(dest); err != nil {
		return "", &FetchError{Model: modelID, Err: fmt.Errorf("download directory missing after fetch: %w", err)}
	}

	stats, err := gatherStats(dest)
	if err != nil {
		return "", &FetchError{Model: modelID, Err: fmt.Errorf("failed to inspect snapshot: %w", err)}
	}
	if stats.files == 0 {
		f.log.Warn().Str("model", modelID).Msg("snapshot is empty; repository may have no files")
		return dest, nil
	}

	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(stats.bytes) / (1024 * 1024) / secs
	}
	f.log.Info().
		Int("files", stats.files).
		Int64("bytes", stats.bytes).
		Dur("elapsed", elapsed).
		Float64("mb_per_s", speed).
		Msg("snapshot downloaded")
	for _, lf := range stats.largest {
		f.log.Debug().Str("file", lf.rel).Int64("bytes", lf.size).Msg("largest file")
	}

	return dest, nil
}

type snapshotStats struct {
	files   int
	bytes   int64
	largest []fileSize
}

type fileSize struct {
	rel  string
	size int64
}

// gatherStats walks the snapshot counting regular files and total bytes,
// keeping the five largest for the debug log.
func gatherStats(dir string) (snapshotStats, error) {
	var stats snapshotStats
	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		stats.files++
		stats.bytes += info.Size()
		stats.largest = append(stats.largest, fileSize{rel: filepath.ToSlash(rel), size: info.Size()})
		return nil
	})
	if err != nil {
		return snapshotStats{}, err
	}
	sort.Slice(stats.largest, func(i, j int) bool { return stats.largest[i].size > stats.largest[j].size })
	if len(stats.largest) > 5 {
		stats.largest = stats.largest[:5]
	}
	return stats, nil
}
