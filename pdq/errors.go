// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// errors.go
package pdq

import "errors"

// Sentinel errors surfaced at the package boundary. Callers should use
// errors.Is against these rather than matching on error strings.
var (
	// ErrHashMismatch is returned by BuildWitness and Prove when the
	// target hash supplied by the caller disagrees with the hash the
	// external PDQ collaborator reports for the image.
	ErrHashMismatch = errors.New("pdq: target hash does not match the collaborator's PDQ state")

	// ErrToleranceExceeded is returned by BuildWitness when a
	// coefficient's integer/float discrepancy exceeds CorrectionTolerance.
	ErrToleranceExceeded = errors.New("pdq: rounding correction exceeds tolerance")

	// ErrPublicInputLength is returned by Verify when the caller does not
	// supply exactly HashBits public inputs.
	ErrPublicInputLength = errors.New("pdq: wrong number of public inputs")

	// ErrKeyShape is returned by Verify when the verifying key's
	// commitment vector length is inconsistent with the public input
	// count the circuit expects.
	ErrKeyShape = errors.New("pdq: verifying key commitment length inconsistent with public input count")

	// ErrImageDecode wraps a decode failure reported by a Collaborator.
	ErrImageDecode = errors.New("pdq: image could not be decoded")
)
