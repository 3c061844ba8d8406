// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// witness.go derives every witness slot the circuit needs from external
// PDQ state: quantised pixels, the integer median, signed coefficient
// differences, their positive/negative parts, multiplicative inverses,
// and the rounding-slack pairs that reconcile the integer DCT with PDQ's
// float reference (spec §4.3).
package pdq

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Witness holds every per-proof value the circuit synthesiser needs,
// already derived from external PDQ state and ready for assignment.
type Witness struct {
	Pixels  []int64 // BufferEdge*BufferEdge quantised luminance pixels
	Median  int64   // round(float_median * FinalScale)
	Hash    [HashLen]byte

	Pos       []int64     // positive part of float_diff, per coefficient
	Neg       []int64     // negative part of float_diff, per coefficient
	Inv       []fr.Element // field inverse of float_diff (zero if float_diff == 0)
	FloatDiff []int64     // round((float_dct - float_median) * FinalScale)
	CorrPos   []int64     // positive rounding slack
	CorrNeg   []int64     // negative rounding slack
}

// frFromInt64 embeds a signed int64 into the BLS12-381 scalar field by
// mapping negatives to the additive inverse of their magnitude.
func frFromInt64(v int64) fr.Element {
	var e fr.Element
	if v >= 0 {
		e.SetUint64(uint64(v))
	} else {
		e.SetUint64(uint64(-v))
		e.Neg(&e)
	}
	return e
}

// BuildWitness derives the full witness for proving that image hashes to
// targetHash, from externally supplied PDQ state. It fails with
// ErrHashMismatch when state.Hash disagrees with targetHash (the
// collaborator is trusted to report its own hash honestly; this check
// only prevents proving a lie about which hash that is), and with
// ErrToleranceExceeded when a coefficient's integer/float discrepancy
// exceeds CorrectionTolerance.
func BuildWitness(state State, targetHash [HashLen]byte) (*Witness, error) {
	if state.Hash != targetHash {
		return nil, fmt.Errorf("%w: collaborator reports %x, target is %x", ErrHashMismatch, state.Hash, targetHash)
	}

	pixels := quantizeBuffer(state.Buffer64)
	median := roundScaled(float64(state.Median), float64(FinalScale))
	dct := computeIntegerDCT(pixels)

	w := &Witness{
		Pixels:    pixels,
		Median:    median,
		Hash:      targetHash,
		Pos:       make([]int64, DCTValueCount),
		Neg:       make([]int64, DCTValueCount),
		Inv:       make([]fr.Element, DCTValueCount),
		FloatDiff: make([]int64, DCTValueCount),
		CorrPos:   make([]int64, DCTValueCount),
		CorrNeg:   make([]int64, DCTValueCount),
	}

	for i := 0; i < DCTValueCount; i++ {
		integerDiff := dct[i] - median
		floatDiff := roundScaled(float64(state.DCT16[i])-float64(state.Median), float64(FinalScale))
		delta := integerDiff - floatDiff

		var corrPos, corrNeg int64
		if delta >= 0 {
			corrPos = delta
		} else {
			corrNeg = -delta
		}
		if corrPos > CorrectionTolerance || corrNeg > CorrectionTolerance {
			return nil, fmt.Errorf("%w: coefficient %d delta=%d exceeds %d", ErrToleranceExceeded, i, delta, CorrectionTolerance)
		}

		w.FloatDiff[i] = floatDiff
		w.CorrPos[i] = corrPos
		w.CorrNeg[i] = corrNeg

		if floatDiff > 0 {
			w.Pos[i] = floatDiff
		} else {
			w.Neg[i] = -floatDiff
		}

		diff := frFromInt64(floatDiff)
		if diff.IsZero() {
			w.Inv[i] = fr.Element{}
		} else {
			w.Inv[i].Inverse(&diff)
		}
	}

	return w, nil
}
