// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// model-cache-init ensures a HuggingFace model snapshot is present in an
// S3-compatible bucket before the dependent workload starts. Intended to
// run as a Kubernetes init container: configuration comes from the
// environment, the outcome is the exit code (0 ready, 1 failed).
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scc-digitalhub/model-cache-init/internal/config"
	"github.com/scc-digitalhub/model-cache-init/internal/hub"
	"github.com/scc-digitalhub/model-cache-init/internal/runner"
	"github.com/scc-digitalhub/model-cache-init/internal/store"
	"github.com/scc-digitalhub/model-cache-init/internal/uploader"
	"github.com/scc-digitalhub/model-cache-init/internal/validate"
)

var banner = strings.Repeat("=", 60)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	log := newLogger("info")

	log.Info().Msg(banner)
	log.Info().Msg("model cache loader starting")
	log.Info().Msg(banner)

	cfg, err := config.Load()
	if err != nil {
		return fail(log, err)
	}

	runID := strings.ReplaceAll(uuid.New().String(), "-", "")
	log = newLogger(cfg.LogLevel).With().Str("run_id", runID).Logger()

	if dump, err := cfg.Redacted(); err == nil {
		log.Info().Msg("effective configuration:\n" + dump)
	}

	gateway, err := store.NewS3Gateway(ctx, store.Credentials{
		EndpointURL: cfg.EndpointURL,
		Region:      cfg.Region,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
	}, log)
	if err != nil {
		return fail(log, err)
	}

	r := runner.New(
		cfg,
		gateway,
		hub.NewFetcher(cfg.HubToken, cfg.Workers, log),
		uploader.New(gateway, cfg.Workers, !cfg.DisableProgress, log),
		log,
	)

	if err := r.Run(ctx); err != nil {
		return fail(log, err)
	}

	log.Info().Msg(banner)
	log.Info().Msg("SUCCESS: model is ready in object storage")
	log.Info().Msg(banner)
	return 0
}

// fail logs the error under its kind and maps it to exit status 1. Every
// error is fatal for the run; retries belong to the pod restart policy.
func fail(log zerolog.Logger, err error) int {
	log.Error().Msg(banner)

	var (
		vErr    *validate.Error
		sErr    *store.Error
		fErr    *hub.FetchError
		pathErr *fs.PathError
	)
	switch {
	case errors.As(err, &vErr):
		log.Error().Err(err).Msg("FAILED: input validation error")
	case errors.As(err, &sErr):
		log.Error().Err(err).Msg("FAILED: object store error")
	case errors.As(err, &fErr):
		log.Error().Err(err).Msg("FAILED: hub download error")
	case errors.As(err, &pathErr):
		log.Error().Err(err).Msg("FAILED: filesystem error")
	default:
		log.Error().Err(err).Str("type", fmt.Sprintf("%T", err)).Msg("FAILED: unexpected error")
	}

	log.Error().Msg(banner)
	return 1
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	// Kubernetes captures stdout; console writer keeps lines readable in
	// kubectl logs while staying structured.
	out := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
