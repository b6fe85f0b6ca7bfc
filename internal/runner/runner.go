// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package runner sequences one cache-loading run: validate the inputs,
// probe the bucket, and either stop (already cached) or fetch the snapshot
// and publish it, removing the local copy on every exit path.
package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/scc-digitalhub/model-cache-init/internal/config"
	"github.com/scc-digitalhub/model-cache-init/internal/uploader"
	"github.com/scc-digitalhub/model-cache-init/internal/validate"
)

// Phase names the controller states, logged at each transition.
type Phase string

const (
	PhaseValidating        Phase = "validating"
	PhaseCheckingExistence Phase = "checking-existence"
	PhaseSkippingDownload  Phase = "skipping-download"
	PhaseFetching          Phase = "fetching"
	PhaseUploading         Phase = "uploading"
	PhaseCleaningUp        Phase = "cleaning-up"
)

// Gateway is the existence probe the controller needs from the store.
type Gateway interface {
	Exists(ctx context.Context, bucket, prefix string) (bool, error)
}

// Fetcher retrieves a complete model snapshot into a local directory and
// returns the populated root.
type Fetcher interface {
	Fetch(ctx context.Context, modelID, dest string) (string, error)
}

// Uploader publishes a local tree under a key prefix.
type Uploader interface {
	Tree(ctx context.Context, localDir, bucket, keyPrefix string) (uploader.Outcome, error)
}

type Runner struct {
	cfg      *config.Config
	store    Gateway
	fetcher  Fetcher
	uploader Uploader
	log      zerolog.Logger
}

func New(cfg *config.Config, store Gateway, fetcher Fetcher, up Uploader, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		uploader: up,
		log:      log,
	}
}

func (r *Runner) enter(p Phase) {
	r.log.Info().Str("phase", string(p)).Msg("phase started")
}

// Run executes one cache-loading run. A nil return means the model is
// present in the bucket, either found there or freshly published. The
// local snapshot directory, once created, is removed on every exit path;
// cleanup failure is logged and never alters the outcome.
func (r *Runner) Run(ctx context.Context) error {
	r.enter(PhaseValidating)
	if err := validate.Check(r.cfg.ModelID, r.cfg.Bucket, r.cfg.Prefix); err != nil {
		return err
	}

	objectPrefix := r.cfg.ObjectPrefix()
	target := "s3://" + r.cfg.Bucket + "/" + objectPrefix

	r.enter(PhaseCheckingExistence)
	exists, err := r.store.Exists(ctx, r.cfg.Bucket, objectPrefix)
	if err != nil {
		return err
	}
	if exists {
		r.enter(PhaseSkippingDownload)
		r.log.Info().Str("target", target).Msg("model already cached, skipping download")
		return nil
	}
	r.log.Info().Str("target", target).Msg("model not cached, fetching from hub")

	// 0700 working directory; registered for removal the moment it exists.
	snapshotDir, err := os.MkdirTemp(r.cfg.WorkDir, "hf_model_")
	if err != nil {
		return fmt.Errorf("failed to create snapshot directory in %s: %w", r.cfg.WorkDir, err)
	}
	defer r.cleanup(snapshotDir)

	r.enter(PhaseFetching)
	populated, err := r.fetcher.Fetch(ctx, r.cfg.ModelID, snapshotDir)
	if err != nil {
		return err
	}
	if populated != snapshotDir {
		return fmt.Errorf("fetch integrity failure: populated %s instead of requested %s", populated, snapshotDir)
	}

	r.enter(PhaseUploading)
	if _, err := r.uploader.Tree(ctx, snapshotDir, r.cfg.Bucket, objectPrefix); err != nil {
		return err
	}
	return nil
}

// cleanup removes the local snapshot. Best effort: failure to remove is
// non-fatal because the pod filesystem is ephemeral anyway.
func (r *Runner) cleanup(dir string) {
	r.enter(PhaseCleaningUp)
	if err := os.RemoveAll(dir); err != nil {
		r.log.Warn().Err(err).Str("dir", dir).Msg("cleanup failed")
		return
	}
	r.log.Info().Str("dir", dir).Msg("removed local snapshot")
}
