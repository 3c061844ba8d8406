// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// collaborator.go declares the shape of the data this module consumes from
// an external PDQ implementation. Generating that data — decoding the
// image, extracting luminance, running PDQ's low-pass filter, computing
// the float DCT/median and packing the hash bits — is explicitly out of
// scope here; it is a collaborator this package takes as a dependency.
package pdq

// State is the PDQ state an external collaborator produces for one image:
// the downsampled luminance buffer, the reference float DCT block, its
// median, and the resulting 256-bit hash.
type State struct {
	// Buffer64 is the row-major 64x64 luminance buffer.
	Buffer64 [BufferEdge * BufferEdge]float32
	// DCT16 is the row-major 16x16 block of float DCT coefficients.
	DCT16 [DCTValueCount]float32
	// Median is PDQ's float median over DCT16.
	Median float32
	// Hash is PDQ's 256-bit hash, packed per the convention in §6.
	Hash [HashLen]byte
}

// Collaborator computes PDQ state from raw image bytes. Implementations
// decode the image, extract luminance, and run PDQ's own low-pass filter,
// DCT, median, and bit-extraction steps; this package trusts none of that
// computation and instead re-derives a witness from the returned State and
// checks it against a claimed target hash (see BuildWitness).
type Collaborator interface {
	ComputePDQState(image []byte) (State, error)
}
