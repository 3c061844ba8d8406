// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package pdq

import (
	"math"
	"math/rand"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// floatDCTValue is the unrounded float64 DCT-II basis the real PDQ pipeline
// uses, kept separate from dctKernel's fixed-point table so fixtures built
// here exercise the same float-vs-field reconciliation BuildWitness does.
func floatDCTValue(row, col int) float64 {
	return math.Cos(math.Pi / 64 * (float64(col) + 0.5) * float64(row))
}

// buildSyntheticState constructs a self-consistent State from a
// deterministic pseudo-random luminance buffer: its DCT16, Median, and Hash
// are all derived from Buffer64 by direct floating-point computation,
// independent of the circuit's fixed-point path. Real PDQ hash generation
// is out of scope for this module; this only needs to be internally
// consistent for exercising the prover end to end.
func buildSyntheticState(seed int64) State {
	rng := rand.New(rand.NewSource(seed))

	var buf [BufferEdge * BufferEdge]float32
	for i := range buf {
		buf[i] = float32(rng.Intn(256))
	}

	intermediate := make([]float64, DCTEdge*BufferEdge)
	for r := 0; r < DCTEdge; r++ {
		for col := 0; col < BufferEdge; col++ {
			var sum float64
			for k := 0; k < BufferEdge; k++ {
				sum += floatDCTValue(r, k) * float64(buf[k*BufferEdge+col])
			}
			intermediate[r*BufferEdge+col] = sum
		}
	}

	dctValues := make([]float64, DCTValueCount)
	for r := 0; r < DCTEdge; r++ {
		for col := 0; col < DCTEdge; col++ {
			var sum float64
			for k := 0; k < BufferEdge; k++ {
				sum += floatDCTValue(col, k) * intermediate[r*BufferEdge+k]
			}
			dctValues[r*DCTEdge+col] = sum
		}
	}

	sorted := append([]float64(nil), dctValues...)
	sort.Float64s(sorted)
	median := (sorted[DCTValueCount/2-1] + sorted[DCTValueCount/2]) / 2

	var dct16 [DCTValueCount]float32
	bs := bitset.New(HashBits)
	for i, v := range dctValues {
		dct16[i] = float32(v)
		if v-median > 0 {
			bs.Set(uint(i))
		}
	}

	return State{
		Buffer64: buf,
		DCT16:    dct16,
		Median:   float32(median),
		Hash:     bitsetToHash(bs),
	}
}
