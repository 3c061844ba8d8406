// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package pdq

import (
	"math/big"
	"testing"
)

func TestBitIndexToByte_Endpoints(t *testing.T) {
	byteIdx, bit := bitIndexToByte(0)
	if byteIdx != HashLen-1 || bit != 0 {
		t.Fatalf("bitIndexToByte(0) = (%d, %d), want (%d, 0)", byteIdx, bit, HashLen-1)
	}
	byteIdx, bit = bitIndexToByte(HashBits - 1)
	if byteIdx != 0 || bit != 7 {
		t.Fatalf("bitIndexToByte(%d) = (%d, %d), want (0, 7)", HashBits-1, byteIdx, bit)
	}
}

func TestHashToBitset_RoundTrip(t *testing.T) {
	var hash [HashLen]byte
	for i := range hash {
		hash[i] = byte(i * 7)
	}
	bs := hashToBitset(hash)
	got := bitsetToHash(bs)
	if got != hash {
		t.Fatalf("round trip mismatch: got %x, want %x", got, hash)
	}
}

func TestHashToBitset_AllZero(t *testing.T) {
	var hash [HashLen]byte
	bs := hashToBitset(hash)
	if bs.Count() != 0 {
		t.Fatalf("expected 0 set bits, got %d", bs.Count())
	}
}

func TestHashToBitset_AllOnes(t *testing.T) {
	var hash [HashLen]byte
	for i := range hash {
		hash[i] = 0xff
	}
	bs := hashToBitset(hash)
	if bs.Count() != HashBits {
		t.Fatalf("expected %d set bits, got %d", HashBits, bs.Count())
	}
}

func TestPublicInputsFromHash_MatchesHashFromPublicInputs(t *testing.T) {
	var hash [HashLen]byte
	for i := range hash {
		hash[i] = byte(i*31 + 5)
	}
	inputs := PublicInputsFromHash(hash)

	slice := make([]*big.Int, HashBits)
	for i := range inputs {
		slice[i] = inputs[i]
	}

	got, err := HashFromPublicInputs(slice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != hash {
		t.Fatalf("round trip mismatch: got %x, want %x", got, hash)
	}
}

func TestPublicInputsFromHash_ElementsAreBoolean(t *testing.T) {
	var hash [HashLen]byte
	hash[0] = 0b10110001
	inputs := PublicInputsFromHash(hash)
	for i, v := range inputs {
		if v.Sign() != 0 && v.Cmp(big.NewInt(1)) != 0 {
			t.Fatalf("input %d = %s, not boolean", i, v.String())
		}
	}
}

func TestHashFromPublicInputs_WrongLength(t *testing.T) {
	_, err := HashFromPublicInputs(make([]*big.Int, HashBits-1))
	if err == nil {
		t.Fatal("expected error for short input vector")
	}
}

func TestHashFromPublicInputs_NonBoolean(t *testing.T) {
	inputs := make([]*big.Int, HashBits)
	for i := range inputs {
		inputs[i] = big.NewInt(0)
	}
	inputs[3] = big.NewInt(2)
	_, err := HashFromPublicInputs(inputs)
	if err == nil {
		t.Fatal("expected error for a non-boolean public input")
	}
}

func TestHashFromPublicInputs_Nil(t *testing.T) {
	inputs := make([]*big.Int, HashBits)
	_, err := HashFromPublicInputs(inputs)
	if err == nil {
		t.Fatal("expected error for a nil public input element")
	}
}
