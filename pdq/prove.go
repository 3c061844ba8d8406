// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// prove.go is the proving system façade: Setup, Prove, and Verify, plus
// public-input packing of the 256 hash bits (spec §4.5).
package pdq

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bls "github.com/consensys/gnark/backend/groth16/bls12-381"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	backend_witness "github.com/consensys/gnark/backend/witness"
)

// scalarField is the BLS12-381 scalar field every circuit in this package
// is compiled and assigned over.
var scalarField = ecc.BLS12_381.ScalarField()

// CompileCircuit compiles the PDQ hash circuit into a rank-1 constraint
// system over the BLS12-381 scalar field.
func CompileCircuit() (constraint.ConstraintSystem, error) {
	var circuit Circuit
	return frontend.Compile(scalarField, r1cs.NewBuilder, &circuit)
}

// Setup runs Groth16's circuit-specific setup over the PDQ circuit shape,
// returning the compiled constraint system alongside the proving and
// verifying keys. See SPEC_FULL.md §7 for why this does not take a
// caller-supplied source of randomness: gnark's groth16.Setup sources its
// own.
func Setup() (groth16.ProvingKey, groth16.VerifyingKey, constraint.ConstraintSystem, error) {
	log := gnarklogger.Logger()

	ccs, err := CompileCircuit()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compile: %w", err)
	}
	log.Info().Int("constraints", ccs.GetNbConstraints()).Msg("pdq circuit compiled")

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup: %w", err)
	}
	log.Info().Msg("pdq groth16 setup complete")
	return pk, vk, ccs, nil
}

// circuitAssignment builds a full circuit assignment from a witness.
func circuitAssignment(w *Witness) *Circuit {
	c := &Circuit{}

	hashBits := PublicInputsFromHash(w.Hash)
	for i := range c.HashBits {
		c.HashBits[i] = hashBits[i]
	}

	c.Median = big.NewInt(w.Median)
	for i, p := range w.Pixels {
		c.Pixels[i] = big.NewInt(p)
	}
	for i := 0; i < DCTValueCount; i++ {
		c.Pos[i] = big.NewInt(w.Pos[i])
		c.Neg[i] = big.NewInt(w.Neg[i])
		c.FloatDiff[i] = big.NewInt(w.FloatDiff[i])
		c.CorrPos[i] = big.NewInt(w.CorrPos[i])
		c.CorrNeg[i] = big.NewInt(w.CorrNeg[i])

		inv := new(big.Int)
		w.Inv[i].BigInt(inv)
		c.Inv[i] = inv
	}
	return c
}

// Prove obtains PDQ state for image from collaborator, builds the witness
// against targetHash, and produces a Groth16 proof over ccs/pk. It returns
// the full witness; callers needing only the public part should call
// fullWitness.Public().
func Prove(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, collaborator Collaborator, image []byte, targetHash [HashLen]byte) (groth16.Proof, backend_witness.Witness, error) {
	log := gnarklogger.Logger()

	state, err := collaborator.ComputePDQState(image)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	w, err := BuildWitness(state, targetHash)
	if err != nil {
		return nil, nil, err
	}

	fullWitness, err := frontend.NewWitness(circuitAssignment(w), scalarField)
	if err != nil {
		return nil, nil, fmt.Errorf("new witness: %w", err)
	}

	log.Info().Msg("pdq groth16 proving")
	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		return nil, nil, fmt.Errorf("prove: %w", err)
	}

	return proof, fullWitness, nil
}

// Verify checks a Groth16 proof against a verifying key and a 256-element
// public input vector (each element 0 or 1, ascending coefficient index).
// It rejects structurally malformed inputs with a named error, and
// returns (false, nil) — never an error — for a merely invalid proof, so
// that protocol errors are distinguishable from proof rejections (spec
// §7).
func Verify(vk groth16.VerifyingKey, proof groth16.Proof, publicInputs []*big.Int) (bool, error) {
	if len(publicInputs) != HashBits {
		return false, fmt.Errorf("%w: got %d, want %d", ErrPublicInputLength, len(publicInputs), HashBits)
	}

	concreteVK, ok := vk.(*groth16bls.VerifyingKey)
	if !ok {
		return false, fmt.Errorf("pdq: unexpected verifying key type %T", vk)
	}
	if len(concreteVK.G1.K) != HashBits+1 {
		return false, fmt.Errorf("%w: len(IC)=%d, want %d", ErrKeyShape, len(concreteVK.G1.K), HashBits+1)
	}

	assignment := &Circuit{}
	for i, v := range publicInputs {
		assignment.HashBits[i] = v
	}

	publicWitness, err := frontend.NewWitness(assignment, scalarField, frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("pdq: build public witness: %w", err)
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
