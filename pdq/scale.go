// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// scale.go holds the fixed-point encoding scheme: the scaling constants
// PDQ's float pipeline is bridged through, and the quantised DCT kernel
// shared by the off-circuit evaluator (dct.go) and the in-circuit
// synthesiser (circuit.go) so the two agree bit-for-bit.
package pdq

import (
	"math"
	"sync"
)

const (
	// BufferEdge is the edge length of PDQ's downsampled luminance buffer.
	BufferEdge = 64
	// DCTEdge is the edge length of the low-frequency DCT block PDQ keeps.
	DCTEdge = 16
	// DCTValueCount is the number of DCT coefficients (and hash bits).
	DCTValueCount = DCTEdge * DCTEdge
	// HashLen is the length in bytes of a PDQ hash.
	HashLen = 32
	// HashBits is the number of bits in a PDQ hash (== DCTValueCount).
	HashBits = HashLen * 8

	// LumaScale is the fixed-point scale applied to luminance pixels.
	LumaScale int64 = 1 << 12
	// DCTScale is the fixed-point scale applied to each DCT kernel entry.
	DCTScale int64 = 1 << 14
	// CorrectionBits bounds the rounding-slack range check.
	CorrectionBits = 46
	// CorrectionTolerance is the maximum permitted rounding slack per
	// coefficient: 2^CorrectionBits.
	CorrectionTolerance int64 = 1 << CorrectionBits
)

// FinalScale is the scale of an output DCT coefficient after the two-stage
// multiply: LumaScale * DCTScale^2 == 2^40.
var FinalScale = LumaScale * DCTScale * DCTScale

// kernel is the lazily-computed 16x64 quantised DCT kernel, shared by the
// off-circuit evaluator and the circuit synthesiser. It is process-wide,
// initialised once on first access, and never mutated afterwards.
var (
	kernelOnce  sync.Once
	kernelTable [DCTEdge][BufferEdge]int64
)

// dctKernel returns the shared quantised DCT kernel table, computing it on
// first use from the closed-form unnormalised DCT-II basis
//
//	kernel[r][c] = cos(pi/64 * (c + 0.5) * r)
//
// which is the basis PDQ thresholds its DCT block against (see GLOSSARY).
// Each entry is scaled by DCTScale and rounded to the nearest integer, so
// the off-circuit and in-circuit DCT evaluators compute on exactly the
// same integers.
func dctKernel() *[DCTEdge][BufferEdge]int64 {
	kernelOnce.Do(func() {
		for r := 0; r < DCTEdge; r++ {
			for c := 0; c < BufferEdge; c++ {
				angle := math.Pi / float64(BufferEdge) * (float64(c) + 0.5) * float64(r)
				kernelTable[r][c] = int64(math.Round(math.Cos(angle) * float64(DCTScale)))
			}
		}
	})
	return &kernelTable
}

// quantizeBuffer converts a row-major 64x64 float luminance buffer into a
// row-major vector of 4096 signed fixed-point pixels.
func quantizeBuffer(buf [BufferEdge * BufferEdge]float32) []int64 {
	out := make([]int64, len(buf))
	for i, v := range buf {
		out[i] = int64(math.Round(float64(v) * float64(LumaScale)))
	}
	return out
}

// roundScaled rounds v*scale to the nearest integer.
func roundScaled(v float64, scale float64) int64 {
	return int64(math.Round(v * scale))
}
