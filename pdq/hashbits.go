// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// hashbits.go implements the hash <-> bit-vector convention from spec §6:
// bit i corresponds to bit (i mod 8) of hash byte (HashLen - 1 - i/8), i.e.
// reverse-byte order with each byte read least-significant-bit first.
package pdq

import (
	"fmt"
	"math/big"

	"github.com/bits-and-blooms/bitset"
)

// bitIndexToByte returns the (byteIndex, bitInByte) pair for hash bit i,
// per the convention in spec §6.
func bitIndexToByte(i int) (byteIndex int, bitInByte uint) {
	return HashLen - 1 - i/8, uint(i % 8)
}

// hashToBitset decodes a 32-byte PDQ hash into a 256-bit set using the
// bit-extraction convention bit_i = (hash[31-i/8] >> (i%8)) & 1.
func hashToBitset(hash [HashLen]byte) *bitset.BitSet {
	bs := bitset.New(HashBits)
	for i := 0; i < HashBits; i++ {
		byteIdx, shift := bitIndexToByte(i)
		if (hash[byteIdx]>>shift)&1 == 1 {
			bs.Set(uint(i))
		}
	}
	return bs
}

// bitsetToHash repacks a 256-bit set into its 32-byte hash, inverting
// hashToBitset.
func bitsetToHash(bs *bitset.BitSet) [HashLen]byte {
	var hash [HashLen]byte
	for i := 0; i < HashBits; i++ {
		if bs.Test(uint(i)) {
			byteIdx, shift := bitIndexToByte(i)
			hash[byteIdx] |= 1 << shift
		}
	}
	return hash
}

// PublicInputsFromHash extracts the 256 public hash-bit field elements (in
// ascending coefficient index) that the circuit's public inputs must
// equal for the given hash.
func PublicInputsFromHash(hash [HashLen]byte) [HashBits]*big.Int {
	bs := hashToBitset(hash)
	var out [HashBits]*big.Int
	for i := 0; i < HashBits; i++ {
		if bs.Test(uint(i)) {
			out[i] = big.NewInt(1)
		} else {
			out[i] = big.NewInt(0)
		}
	}
	return out
}

// HashFromPublicInputs reassembles a 32-byte hash from a public input
// vector, validating that it has exactly HashBits elements each equal to
// 0 or 1. This is the inverse of PublicInputsFromHash and backs the
// bit-packing round-trip property in spec §8.
func HashFromPublicInputs(inputs []*big.Int) ([HashLen]byte, error) {
	var zero [HashLen]byte
	if len(inputs) != HashBits {
		return zero, fmt.Errorf("%w: got %d, want %d", ErrPublicInputLength, len(inputs), HashBits)
	}
	bs := bitset.New(HashBits)
	for i, v := range inputs {
		switch {
		case v == nil:
			return zero, fmt.Errorf("pdq: public input %d is nil", i)
		case v.Sign() == 0:
			// bit is zero, nothing to set
		case v.Cmp(big.NewInt(1)) == 0:
			bs.Set(uint(i))
		default:
			return zero, fmt.Errorf("pdq: public input %d is not boolean: %s", i, v.String())
		}
	}
	return bitsetToHash(bs), nil
}
