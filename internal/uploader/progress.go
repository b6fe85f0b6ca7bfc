// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package uploader

import (
	"fmt"
	"os"
	"sync"
	"time"
)

/* ------------ tiny UI helpers for single-line progress ------------ */

// globalProgress renders one stderr line for the whole upload. Guarded by a
// mutex: the pool workers report completions concurrently.
type globalProgress struct {
	mu         sync.Mutex
	totalKnown bool
	totalBytes int64
	doneBytes  int64
	spinIdx    int
	lastTick   time.Time
}

var spinner = []rune{'|', '/', '-', '\\'}

func newGlobalProgress(totalBytes int64) *globalProgress {
	return &globalProgress{
		totalKnown: totalBytes > 0,
		totalBytes: totalBytes,
	}
}

func (gp *globalProgress) add(delta int64) {
	gp.mu.Lock()
	gp.doneBytes += delta
	gp.mu.Unlock()
}

func human(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (gp *globalProgress) render(force bool) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	// throttle to ~10 updates per second
	if !force && time.Since(gp.lastTick) < 100*time.Millisecond {
		return
	}
	gp.lastTick = time.Now()

	if gp.totalKnown && gp.totalBytes > 0 {
		if gp.doneBytes > gp.totalBytes {
			gp.doneBytes = gp.totalBytes
		}
		pct := float64(gp.doneBytes) / float64(gp.totalBytes) * 100
		fmt.Fprintf(os.Stderr, "\rProgress: %6.2f%% (%s / %s)   ",
			pct, human(gp.doneBytes), human(gp.totalBytes))
	} else {
		ch := spinner[gp.spinIdx%len(spinner)]
		gp.spinIdx++
		fmt.Fprintf(os.Stderr, "\rProgress: [%c] %s uploaded   ", ch, human(gp.doneBytes))
	}
}

func (gp *globalProgress) done() {
	gp.render(true)
	fmt.Fprintln(os.Stderr)
}
