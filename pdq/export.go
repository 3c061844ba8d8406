// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// export.go packages a proof, its verifying key, and its public input
// vector for transport. Unlike a multi-curve export layer that must
// decompose each curve point into named fields, this module proves over a
// single fixed curve (BLS12-381, see prove.go's scalarField), so artifacts
// are serialised through gnark's own canonical WriteTo encoding — the same
// encoding ceremony.go already uses for pk.bin/vk.bin/ccs.bin — rather than
// a hand-rolled per-point layout.
package pdq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	blsfr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/backend/groth16"
	backend_witness "github.com/consensys/gnark/backend/witness"
)

// Artifacts is the exported bundle of a proof, its verifying key, and its
// public input vector — everything a remote verifier needs. VK and Proof
// hold gnark's canonical binary encoding; encoding/json marshals them as
// base64 automatically, and the cbor encoder as a byte string.
type Artifacts struct {
	VK     []byte   `json:"vk" cbor:"vk"`
	Proof  []byte   `json:"proof" cbor:"proof"`
	Public []string `json:"public" cbor:"public"`
}

// BuildArtifacts assembles the exportable bundle for a proof/vk/public
// witness triple.
func BuildArtifacts(vk groth16.VerifyingKey, proof groth16.Proof, publicWitness backend_witness.Witness) (Artifacts, error) {
	var vkBuf bytes.Buffer
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		return Artifacts{}, fmt.Errorf("pdq: serialise verifying key: %w", err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return Artifacts{}, fmt.Errorf("pdq: serialise proof: %w", err)
	}

	public, err := normalizedPublicInputs(publicWitness)
	if err != nil {
		return Artifacts{}, err
	}

	return Artifacts{VK: vkBuf.Bytes(), Proof: proofBuf.Bytes(), Public: public}, nil
}

// exportPublicInputs returns the raw decimal-string public vector from a
// witness. This module only ever proves over BLS12-381 (prove.go's
// scalarField is fixed), so it asserts the concrete Fr element slice
// directly rather than carrying a multi-curve reflection fallback.
func exportPublicInputs(publicWitness backend_witness.Witness) ([]string, error) {
	v, ok := publicWitness.Vector().([]blsfr.Element)
	if !ok {
		return nil, fmt.Errorf("pdq: unexpected public witness vector type %T (want []fr.Element)", publicWitness.Vector())
	}
	out := make([]string, len(v))
	for i := range v {
		var bi big.Int
		v[i].BigInt(&bi)
		out[i] = bi.String()
	}
	return out, nil
}

// normalizedPublicInputs returns exactly HashBits decimal-string public
// inputs, dropping a leading one-wire element if the witness vector
// includes one.
func normalizedPublicInputs(publicWitness backend_witness.Witness) ([]string, error) {
	raw, err := exportPublicInputs(publicWitness)
	if err != nil {
		return nil, err
	}
	if len(raw) == HashBits {
		return raw, nil
	}
	if len(raw) == HashBits+1 && (raw[0] == "0" || raw[0] == "1") {
		return raw[1:], nil
	}
	return nil, fmt.Errorf("%w: witness vector has %d elements", ErrPublicInputLength, len(raw))
}

// WriteJSON writes artifacts.json into dir.
func (a Artifacts) WriteJSON(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "artifacts.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	return writeIndentedJSON(f, a)
}

// MarshalCBOR encodes the artifact bundle as a single compact CBOR blob,
// for transports where JSON's base64 blowup on VK/Proof is a liability.
func (a Artifacts) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a)
}

// ArtifactsFromCBOR decodes a bundle previously produced by MarshalCBOR.
func ArtifactsFromCBOR(data []byte) (Artifacts, error) {
	var a Artifacts
	if err := cbor.Unmarshal(data, &a); err != nil {
		return Artifacts{}, fmt.Errorf("pdq: decode cbor artifacts: %w", err)
	}
	return a, nil
}

// writeIndentedJSON writes v to w as indented JSON, shared by WriteJSON and
// the ceremony's manifest output.
func writeIndentedJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
