// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package validate gates externally supplied identifiers before any I/O
// happens. Model names and key prefixes arrive from the pod spec and must
// be treated as untrusted: a value like "../../../etc/passwd" would
// otherwise flow straight into object keys and local filesystem paths.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Error reports which input failed validation and why. Never retryable.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	// Hub repo id: "repo-name" or "owner/repo-name". Each segment starts
	// alphanumeric and continues with alphanumerics, dots, hyphens or
	// underscores. At most one '/'.
	modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._-]*)?$`)

	// S3 bucket naming rules: 3-63 chars, lowercase letters, digits, dots
	// and hyphens, first and last char alphanumeric.
	bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// Check validates the model id, bucket name and key prefix. It is pure: no
// I/O, no side effects. The first failing field is reported.
func Check(modelID, bucket, prefix string) error {
	if !modelIDPattern.MatchString(modelID) {
		return &Error{
			Field:  "model id",
			Reason: fmt.Sprintf("%q must start with an alphanumeric character, contain only alphanumerics, dots, hyphens or underscores, and use at most one '/' separator", modelID),
		}
	}
	if !bucketPattern.MatchString(bucket) {
		return &Error{
			Field:  "bucket",
			Reason: fmt.Sprintf("%q must be 3-63 characters of lowercase letters, digits, dots and hyphens, starting and ending alphanumeric", bucket),
		}
	}
	if strings.Contains(prefix, "..") {
		return &Error{
			Field:  "prefix",
			Reason: fmt.Sprintf("%q must not contain '..'", prefix),
		}
	}
	if strings.HasPrefix(prefix, "/") {
		return &Error{
			Field:  "prefix",
			Reason: fmt.Sprintf("%q must not start with '/'", prefix),
		}
	}
	return nil
}
