// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package pdq

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildArtifacts_AndWriteJSON(t *testing.T) {
	if testing.Short() {
		t.Skip("skip full proving pipeline in -short mode")
	}

	pk, vk, ccs, err := Setup()
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	state := buildSyntheticState(201)
	collaborator := fixedStateCollaborator{state: state}

	proof, fullWitness, err := Prove(ccs, pk, collaborator, nil, state.Hash)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}

	artifacts, err := BuildArtifacts(vk, proof, publicWitness)
	if err != nil {
		t.Fatalf("BuildArtifacts: %v", err)
	}
	if len(artifacts.Public) != HashBits {
		t.Fatalf("public input count = %d, want %d", len(artifacts.Public), HashBits)
	}
	if len(artifacts.VK) == 0 {
		t.Fatal("expected nonempty serialized verifying key")
	}
	if len(artifacts.Proof) == 0 {
		t.Fatal("expected nonempty serialized proof")
	}

	dir := t.TempDir()
	if err := artifacts.WriteJSON(dir); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var roundTrip Artifacts
	raw, err := os.ReadFile(filepath.Join(dir, "artifacts.json"))
	if err != nil {
		t.Fatalf("read artifacts.json: %v", err)
	}
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		t.Fatalf("unmarshal artifacts.json: %v", err)
	}
	if !bytes.Equal(roundTrip.VK, artifacts.VK) {
		t.Fatal("artifacts.json round trip mismatch on VK")
	}
	if len(roundTrip.Public) != len(artifacts.Public) {
		t.Fatalf("artifacts.json round trip public input count mismatch: got %d, want %d", len(roundTrip.Public), len(artifacts.Public))
	}
}

func TestArtifacts_CBORRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skip full proving pipeline in -short mode")
	}

	pk, vk, ccs, err := Setup()
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	state := buildSyntheticState(202)
	collaborator := fixedStateCollaborator{state: state}

	proof, fullWitness, err := Prove(ccs, pk, collaborator, nil, state.Hash)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}

	artifacts, err := BuildArtifacts(vk, proof, publicWitness)
	if err != nil {
		t.Fatalf("BuildArtifacts: %v", err)
	}

	blob, err := artifacts.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	if len(blob) == 0 {
		t.Fatal("expected a nonempty CBOR blob")
	}

	back, err := ArtifactsFromCBOR(blob)
	if err != nil {
		t.Fatalf("ArtifactsFromCBOR: %v", err)
	}
	if !bytes.Equal(back.Proof, artifacts.Proof) {
		t.Fatal("cbor round trip mismatch on Proof")
	}
	if len(back.Public) != len(artifacts.Public) {
		t.Fatalf("cbor round trip public input count mismatch: got %d, want %d", len(back.Public), len(artifacts.Public))
	}
}
