// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// circuit.go emits the rank-1 constraint system: pixel allocation, the
// in-field DCT matmul (all affine, since the kernel is constant), 256
// per-coefficient sign/equality gadgets, and the rounding-slack bit-range
// checks (spec §4.4).
package pdq

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	gbits "github.com/consensys/gnark/std/math/bits"
)

// Circuit is the gnark circuit re-executing PDQ's DCT-and-median pipeline
// in field arithmetic and binding each coefficient's sign to a public hash
// bit. Allocation order matches spec §4.4: hash bits, median, pixels, then
// per-coefficient sign-gadget witnesses.
type Circuit struct {
	// HashBits are the 256 public hash bits, one per DCT coefficient in
	// row-major order, reconstructed per the convention in spec §6.
	HashBits [HashBits]frontend.Variable `gnark:",public"`

	// Median is the fixed-point scaled DCT median.
	Median frontend.Variable

	// Pixels are the 4096 quantised luminance pixels, row-major.
	Pixels [BufferEdge * BufferEdge]frontend.Variable

	// Per-coefficient sign-gadget witnesses (spec §3, §4.4).
	Pos       [DCTValueCount]frontend.Variable
	Neg       [DCTValueCount]frontend.Variable
	Inv       [DCTValueCount]frontend.Variable
	FloatDiff [DCTValueCount]frontend.Variable
	CorrPos   [DCTValueCount]frontend.Variable
	CorrNeg   [DCTValueCount]frontend.Variable
}

// sumTerms returns api.Add applied to every element of terms, handling the
// one- and two-term cases api.Add's variadic signature requires.
func sumTerms(api frontend.API, terms []frontend.Variable) frontend.Variable {
	switch len(terms) {
	case 0:
		return 0
	case 1:
		return terms[0]
	default:
		return api.Add(terms[0], terms[1], terms[2:]...)
	}
}

// Define synthesises the PDQ hash circuit.
func (circuit *Circuit) Define(api frontend.API) error {
	kernel := dctKernel()

	// First-stage matmul: M[r][c] = sum_k K[r][k] * pixel[k*64 + c].
	intermediate := make([]frontend.Variable, DCTEdge*BufferEdge)
	for r := 0; r < DCTEdge; r++ {
		for col := 0; col < BufferEdge; col++ {
			terms := make([]frontend.Variable, BufferEdge)
			for k := 0; k < BufferEdge; k++ {
				terms[k] = api.Mul(circuit.Pixels[k*BufferEdge+col], big.NewInt(kernel[r][k]))
			}
			intermediate[r*BufferEdge+col] = sumTerms(api, terms)
		}
	}

	// Second-stage matmul: D[r][c] = sum_k K[c][k] * M[r][k].
	dctValues := make([]frontend.Variable, DCTValueCount)
	for r := 0; r < DCTEdge; r++ {
		for col := 0; col < DCTEdge; col++ {
			terms := make([]frontend.Variable, BufferEdge)
			for k := 0; k < BufferEdge; k++ {
				terms[k] = api.Mul(intermediate[r*BufferEdge+k], big.NewInt(kernel[col][k]))
			}
			dctValues[r*DCTEdge+col] = sumTerms(api, terms)
		}
	}

	// Per-coefficient sign gadget.
	for i := 0; i < DCTValueCount; i++ {
		pos := circuit.Pos[i]
		neg := circuit.Neg[i]
		inv := circuit.Inv[i]
		floatDiff := circuit.FloatDiff[i]
		corrPos := circuit.CorrPos[i]
		corrNeg := circuit.CorrNeg[i]
		bit := circuit.HashBits[i]

		// Range-check the rounding slack into [0, 2^CorrectionBits).
		gbits.ToBinary(api, corrPos, gbits.WithNbDigits(CorrectionBits))
		gbits.ToBinary(api, corrNeg, gbits.WithNbDigits(CorrectionBits))

		// Rounding reconciliation: (dct_i - median) - float_diff = corr_pos - corr_neg.
		diff := api.Sub(dctValues[i], circuit.Median)
		api.AssertIsEqual(api.Sub(diff, floatDiff), api.Sub(corrPos, corrNeg))
		// At most one correction direction is active.
		api.AssertIsEqual(api.Mul(corrPos, corrNeg), 0)

		// Sign split of the float difference.
		api.AssertIsEqual(api.Sub(pos, neg), floatDiff)
		api.AssertIsEqual(api.Mul(pos, neg), 0)

		// bit=1 => neg=0; bit=0 => pos=0.
		api.AssertIsEqual(api.Mul(bit, neg), 0)
		api.AssertIsEqual(api.Mul(api.Sub(1, bit), pos), 0)

		// bit=1 => float_diff != 0, witnessed by the presence of its inverse.
		diffProduct := api.Mul(floatDiff, inv)
		api.AssertIsEqual(api.Mul(bit, api.Sub(diffProduct, 1)), 0)
	}

	return nil
}
