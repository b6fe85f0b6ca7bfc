// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package store wraps the object-storage primitives the loader needs:
// a prefix existence probe and single-object upload.
package store

import "fmt"

// Error wraps a failed object-store operation: transport, auth, listing or
// upload. The existence probe never reports false on an error; the error
// always surfaces to the caller.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("s3 %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("s3 %s s3://%s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
