// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package uploader publishes a local directory tree to object storage with
// a bounded pool of concurrent per-file uploads.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the upload pool when no override is given.
// Storage endpoints throttle; unbounded fan-out exhausts connections.
const DefaultConcurrency = 10

// ObjectPutter is the single store operation the orchestrator needs.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key, localPath string) (int64, error)
}

// Outcome aggregates a completed tree upload.
type Outcome struct {
	Files int
	Bytes int64
}

// task is one file to publish: its absolute local path, the path relative
// to the tree root, and the destination key.
type task struct {
	localPath string
	relPath   string
	key       string
}

type Uploader struct {
	store        ObjectPutter
	concurrency  int
	showProgress bool
	log          zerolog.Logger
}

func New(store ObjectPutter, concurrency int, showProgress bool, log zerolog.Logger) *Uploader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Uploader{
		store:        store,
		concurrency:  concurrency,
		showProgress: showProgress,
		log:          log,
	}
}

// Tree uploads every regular file under localDir to bucket, keyed as
// keyPrefix plus the forward-slash relative path. Files are independent:
// the pool imposes no ordering, and the first failure fails the whole call
// after letting in-flight uploads finish. An empty tree is a warning, not
// an error.
func (u *Uploader) Tree(ctx context.Context, localDir, bucket, keyPrefix string) (Outcome, error) {
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}

	tasks, totalBytes, err := collect(localDir, keyPrefix)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to enumerate %s: %w", localDir, err)
	}
	if len(tasks) == 0 {
		u.log.Warn().Str("dir", localDir).Msg("no files to upload")
		return Outcome{}, nil
	}

	u.log.Info().
		Int("files", len(tasks)).
		Int64("bytes", totalBytes).
		Int("workers", u.concurrency).
		Str("dest", "s3://"+bucket+"/"+keyPrefix).
		Msg("uploading snapshot")

	var gp *globalProgress
	if u.showProgress {
		gp = newGlobalProgress(totalBytes)
	}

	var files, bytes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, t := range tasks {
		if gctx.Err() != nil {
			break // a worker already failed; leave the rest unsubmitted
		}
		g.Go(func() error {
			n, err := u.store.Put(gctx, bucket, t.key, t.localPath)
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", t.relPath, err)
			}
			files.Add(1)
			bytes.Add(n)
			if gp != nil {
				gp.add(n)
				gp.render(false)
			}
			u.log.Debug().Str("file", t.relPath).Str("key", t.key).Msg("uploaded")
			return nil
		})
	}

	err = g.Wait()
	if gp != nil {
		gp.done()
	}

	outcome := Outcome{Files: int(files.Load()), Bytes: bytes.Load()}
	if err != nil {
		return outcome, err
	}

	u.log.Info().Int("files", outcome.Files).Int64("bytes", outcome.Bytes).Msg("upload complete")
	return outcome, nil
}

// collect enumerates every regular file under localDir and derives its
// destination key. Path separators are normalized to '/' regardless of the
// local filesystem convention.
func collect(localDir, keyPrefix string) ([]task, int64, error) {
	var tasks []task
	var total int64
	err := filepath.Walk(localDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		tasks = append(tasks, task{localPath: path, relPath: rel, key: keyPrefix + rel})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}
