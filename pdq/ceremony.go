// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// ceremony.go implements the multi-party computation (MPC) setup ceremony
// for the Groth16 proving system on BLS12-381, retargeted at the PDQ
// circuit. It wraps gnark's mpcsetup package to provide a file-based
// ceremony workflow with two phases:
//   - Phase 1 (Powers of Tau): circuit-independent, produces SRS commons
//   - Phase 2: circuit-specific, produces the final proving and verifying keys
//
// This is a production-grade alternative to Setup's single-party trusted
// setup (spec §7): any number of participants may each contribute entropy
// in sequence, and no single contributor need be trusted alone.
//
// A ceremony directory is bound to one PDQ circuit shape by manifest.json
// (see pdqCircuitManifest), written at CeremonyInit and re-checked against
// the loaded R1CS by CeremonyFinalizePhase1 and CeremonyFinalizePhase2; the
// contribute and verify stages do not consult it. That binding matters here in a
// way it wouldn't for a generic circuit ceremony: this circuit's public
// input count (HashBits) and internal coefficient layout (DCTValueCount,
// CorrectionBits) are exactly the knobs spec.md allows a deployment to
// disagree about, so a ceremony directory silently reused across two
// incompatible builds of the circuit is the failure mode most worth
// catching before keys are handed to a verifier.
package pdq

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bls "github.com/consensys/gnark/backend/groth16/bls12-381"
	mpcsetup "github.com/consensys/gnark/backend/groth16/bls12-381/mpcsetup"
	"github.com/consensys/gnark/constraint"
	cs "github.com/consensys/gnark/constraint/bls12-381"
	gnarklogger "github.com/consensys/gnark/logger"
)

// pdqCircuitManifest binds a ceremony directory to the shape of the PDQ
// circuit it was compiled against, so a later stage can refuse to operate
// on a ccs.bin that no longer matches it (e.g. a HashBits or
// CorrectionBits change between CeremonyInit and CeremonyFinalizePhase2).
type pdqCircuitManifest struct {
	Circuit        string `json:"circuit"`
	HashBits       int    `json:"hashBits"`
	DCTValueCount  int    `json:"dctValueCount"`
	CorrectionBits int    `json:"correctionBits"`
	NbConstraints  int    `json:"nbConstraints"`
	NbPublicInputs int    `json:"nbPublicInputs"`
	DomainSize     uint64 `json:"domainSize"`
}

func manifestPath(dir string) string {
	return filepath.Join(dir, "manifest.json")
}

func saveManifest(dir string, m pdqCircuitManifest) error {
	f, err := os.Create(manifestPath(dir))
	if err != nil {
		return fmt.Errorf("create manifest.json: %w", err)
	}
	defer f.Close()
	return writeIndentedJSON(f, m)
}

func loadManifest(dir string) (pdqCircuitManifest, error) {
	var m pdqCircuitManifest
	data, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return m, fmt.Errorf("read manifest.json: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest.json: %w", err)
	}
	return m, nil
}

// verifyingKeyShape re-checks a freshly finalized verifying key's public
// input count against HashBits, the same shape Verify enforces on every
// verifying key it is handed (prove.go's ErrKeyShape). A ceremony that
// finalizes a key pair from a stale or mismatched manifest should fail at
// finalization, not silently hand a deployment a vk.bin no State will ever
// verify against.
func verifyingKeyShape(vk groth16.VerifyingKey) error {
	concrete, ok := vk.(*groth16bls.VerifyingKey)
	if !ok {
		return fmt.Errorf("%w: unexpected verifying key type %T", ErrKeyShape, vk)
	}
	if len(concrete.G1.K) != HashBits+1 {
		return fmt.Errorf("%w: len(IC)=%d, want %d", ErrKeyShape, len(concrete.G1.K), HashBits+1)
	}
	return nil
}

// validateCircuitShape checks a compiled PDQ circuit's public interface
// against the shape constants this binary was built with, returning
// ErrKeyShape if they disagree. A ccs.bin compiled under a different
// HashBits (say, a future wider hash) has a different public input count,
// and must not silently feed a ceremony whose beacon and keys the caller
// expects to match today's HashBits.
func validateCircuitShape(ccs constraint.ConstraintSystem) error {
	wantPublic := HashBits + 1 // +1 for the constant one-wire
	if got := ccs.GetNbPublicVariables(); got != wantPublic {
		return fmt.Errorf("%w: circuit has %d public variables, want %d for HashBits=%d", ErrKeyShape, got, wantPublic, HashBits)
	}
	return nil
}

func manifestFor(ccs constraint.ConstraintSystem) pdqCircuitManifest {
	return pdqCircuitManifest{
		Circuit:        "pdq",
		HashBits:       HashBits,
		DCTValueCount:  DCTValueCount,
		CorrectionBits: CorrectionBits,
		NbConstraints:  ccs.GetNbConstraints(),
		NbPublicInputs: ccs.GetNbPublicVariables(),
		DomainSize:     domainSize(ccs),
	}
}

// checkManifestMatches re-validates a loaded R1CS against the manifest
// recorded at CeremonyInit, catching a ceremony directory whose ccs.bin was
// swapped or regenerated under different circuit parameters mid-ceremony.
func checkManifestMatches(dir string, r1cs constraint.ConstraintSystem) error {
	m, err := loadManifest(dir)
	if err != nil {
		return err
	}
	if m.HashBits != HashBits || m.DCTValueCount != DCTValueCount || m.CorrectionBits != CorrectionBits {
		return fmt.Errorf("%w: ceremony manifest was recorded for hashBits=%d dctValueCount=%d correctionBits=%d, this binary uses hashBits=%d dctValueCount=%d correctionBits=%d",
			ErrKeyShape, m.HashBits, m.DCTValueCount, m.CorrectionBits, HashBits, DCTValueCount, CorrectionBits)
	}
	if m.NbConstraints != r1cs.GetNbConstraints() {
		return fmt.Errorf("%w: ceremony manifest recorded %d constraints, loaded ccs.bin has %d", ErrKeyShape, m.NbConstraints, r1cs.GetNbConstraints())
	}
	return nil
}

// findContributions returns sorted file paths matching phase{N}_NNNN.bin in dir.
func findContributions(dir string, phase int) ([]string, error) {
	prefix := fmt.Sprintf("phase%d_", phase)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bin") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// latestContribution returns the path and index of the highest-numbered contribution.
func latestContribution(dir string, phase int) (string, int, error) {
	paths, err := findContributions(dir, phase)
	if err != nil {
		return "", 0, err
	}
	if len(paths) == 0 {
		return "", 0, fmt.Errorf("no phase %d contributions found in %s", phase, dir)
	}
	last := paths[len(paths)-1]
	base := filepath.Base(last)
	numStr := strings.TrimPrefix(base, fmt.Sprintf("phase%d_", phase))
	numStr = strings.TrimSuffix(numStr, ".bin")
	idx, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse contribution index from %s: %w", base, err)
	}
	return last, idx, nil
}

// contributionPath returns the file path for a contribution with the given phase and index.
func contributionPath(dir string, phase, index int) string {
	return filepath.Join(dir, fmt.Sprintf("phase%d_%04d.bin", phase, index))
}

// fileHash computes the SHA-256 hash of a file and returns it as a hex string.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func savePhase1(path string, p *mpcsetup.Phase1) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := p.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadPhase1(path string) (*mpcsetup.Phase1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p := new(mpcsetup.Phase1)
	if _, err := p.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p, nil
}

func savePhase2(path string, p *mpcsetup.Phase2) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := p.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadPhase2(path string) (*mpcsetup.Phase2, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p := new(mpcsetup.Phase2)
	if _, err := p.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p, nil
}

func saveSrsCommons(path string, c *mpcsetup.SrsCommons) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := c.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadSrsCommons(path string) (*mpcsetup.SrsCommons, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	c := new(mpcsetup.SrsCommons)
	if _, err := c.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}

func saveCCS(path string, ccs constraint.ConstraintSystem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := ccs.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadR1CS(path string) (*cs.R1CS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ccs := groth16.NewCS(ecc.BLS12_381)
	if _, err := ccs.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r1cs, ok := ccs.(*cs.R1CS)
	if !ok {
		return nil, fmt.Errorf("CCS is not *bls12381.R1CS: %T", ccs)
	}
	return r1cs, nil
}

// LoadProvingKey reads a proving key previously written to pk.bin by
// CeremonyFinalizePhase2.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BLS12_381)
	if _, err := pk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return pk, nil
}

// LoadVerifyingKey reads a verifying key previously written to vk.bin by
// CeremonyFinalizePhase2.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BLS12_381)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vk, nil
}

// domainSize computes the FFT domain size from a constraint system.
func domainSize(ccs constraint.ConstraintSystem) uint64 {
	return ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))
}

// CeremonyInit compiles the PDQ circuit, validates its public-input shape,
// saves ccs.bin and manifest.json, and creates the initial Phase1
// accumulator.
func CeremonyInit(dir string, force bool) error {
	log := gnarklogger.Logger()

	if _, err := os.Stat(filepath.Join(dir, "ccs.bin")); err == nil && !force {
		return fmt.Errorf("ceremony already initialized in %s (use force to overwrite)", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	ccs, err := CompileCircuit()
	if err != nil {
		return err
	}
	log.Info().Int("constraints", ccs.GetNbConstraints()).Msg("pdq circuit compiled")

	if err := validateCircuitShape(ccs); err != nil {
		return err
	}

	if err := saveCCS(filepath.Join(dir, "ccs.bin"), ccs); err != nil {
		return err
	}

	m := manifestFor(ccs)
	if err := saveManifest(dir, m); err != nil {
		return err
	}

	p1 := mpcsetup.NewPhase1(m.DomainSize)
	if err := savePhase1(contributionPath(dir, 1, 0), p1); err != nil {
		return err
	}

	log.Info().
		Int("hashBits", m.HashBits).
		Int("nbConstraints", m.NbConstraints).
		Uint64("domainSize", m.DomainSize).
		Msg("pdq ceremony initialized")
	return nil
}

// CeremonyContributePhase1 loads the latest Phase1 accumulator, contributes, and saves the result.
func CeremonyContributePhase1(dir string) (int, string, error) {
	log := gnarklogger.Logger()

	latestPath, idx, err := latestContribution(dir, 1)
	if err != nil {
		return 0, "", err
	}

	p1, err := loadPhase1(latestPath)
	if err != nil {
		return 0, "", fmt.Errorf("load latest phase1: %w", err)
	}

	p1.Contribute()

	nextIdx := idx + 1
	nextPath := contributionPath(dir, 1, nextIdx)
	if err := savePhase1(nextPath, p1); err != nil {
		return 0, "", err
	}

	hash, err := fileHash(nextPath)
	if err != nil {
		return nextIdx, "", fmt.Errorf("hash contribution: %w", err)
	}

	log.Info().Int("phase", 1).Int("contribution", nextIdx).Str("hash", hash).Msg("pdq ceremony phase1 contribution")
	return nextIdx, hash, nil
}

// CeremonyContributePhase2 loads the latest Phase2 accumulator, contributes, and saves the result.
func CeremonyContributePhase2(dir string) (int, string, error) {
	log := gnarklogger.Logger()

	latestPath, idx, err := latestContribution(dir, 2)
	if err != nil {
		return 0, "", err
	}

	p2, err := loadPhase2(latestPath)
	if err != nil {
		return 0, "", fmt.Errorf("load latest phase2: %w", err)
	}

	p2.Contribute()

	nextIdx := idx + 1
	nextPath := contributionPath(dir, 2, nextIdx)
	if err := savePhase2(nextPath, p2); err != nil {
		return 0, "", err
	}

	hash, err := fileHash(nextPath)
	if err != nil {
		return nextIdx, "", fmt.Errorf("hash contribution: %w", err)
	}

	log.Info().Int("phase", 2).Int("contribution", nextIdx).Str("hash", hash).Msg("pdq ceremony phase2 contribution")
	return nextIdx, hash, nil
}

// CeremonyVerifyPhase1 loads all Phase1 contributions and verifies each pair sequentially.
func CeremonyVerifyPhase1(dir string) (int, error) {
	paths, err := findContributions(dir, 1)
	if err != nil {
		return 0, err
	}
	if len(paths) < 2 {
		return 0, fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}

	prev, err := loadPhase1(paths[0])
	if err != nil {
		return 0, fmt.Errorf("load initial: %w", err)
	}

	verified := 0
	for i := 1; i < len(paths); i++ {
		next, err := loadPhase1(paths[i])
		if err != nil {
			return verified, fmt.Errorf("load contribution %d: %w", i, err)
		}
		if err := prev.Verify(next); err != nil {
			return verified, fmt.Errorf("contribution %d invalid: %w", i, err)
		}
		verified++
		prev = next
	}

	return verified, nil
}

// CeremonyVerifyPhase2 loads all Phase2 contributions and verifies each pair sequentially.
func CeremonyVerifyPhase2(dir string) (int, error) {
	paths, err := findContributions(dir, 2)
	if err != nil {
		return 0, err
	}
	if len(paths) < 2 {
		return 0, fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}

	prev, err := loadPhase2(paths[0])
	if err != nil {
		return 0, fmt.Errorf("load initial: %w", err)
	}

	verified := 0
	for i := 1; i < len(paths); i++ {
		next, err := loadPhase2(paths[i])
		if err != nil {
			return verified, fmt.Errorf("load contribution %d: %w", i, err)
		}
		if err := prev.Verify(next); err != nil {
			return verified, fmt.Errorf("contribution %d invalid: %w", i, err)
		}
		verified++
		prev = next
	}

	return verified, nil
}

// CeremonyFinalizePhase1 verifies all Phase1 contributions against the
// circuit manifest, seals with the beacon, produces SRS commons, and
// initializes Phase2.
func CeremonyFinalizePhase1(dir string, beacon []byte) error {
	log := gnarklogger.Logger()

	r1cs, err := loadR1CS(filepath.Join(dir, "ccs.bin"))
	if err != nil {
		return fmt.Errorf("load ccs: %w", err)
	}
	if err := checkManifestMatches(dir, r1cs); err != nil {
		return err
	}
	n := domainSize(r1cs)

	paths, err := findContributions(dir, 1)
	if err != nil {
		return err
	}
	if len(paths) < 2 {
		return fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}

	contributions := make([]*mpcsetup.Phase1, len(paths)-1)
	for i := 1; i < len(paths); i++ {
		p, err := loadPhase1(paths[i])
		if err != nil {
			return fmt.Errorf("load phase1 contribution %d: %w", i, err)
		}
		contributions[i-1] = p
	}

	commons, err := mpcsetup.VerifyPhase1(n, beacon, contributions...)
	if err != nil {
		return fmt.Errorf("verify phase1: %w", err)
	}

	if err := saveSrsCommons(filepath.Join(dir, "commons.bin"), &commons); err != nil {
		return err
	}

	var p2 mpcsetup.Phase2
	p2.Initialize(r1cs, &commons)
	if err := savePhase2(contributionPath(dir, 2, 0), &p2); err != nil {
		return err
	}

	log.Info().Int("contributions", len(contributions)).Msg("pdq ceremony phase1 finalized")
	return nil
}

// CeremonyFinalizePhase2 verifies all Phase2 contributions, seals with the
// beacon, extracts the proving and verifying keys, validates the finalized
// verifying key's shape against HashBits, and writes the binary keys
// alongside a manifest recording the finalized circuit parameters.
func CeremonyFinalizePhase2(dir string, beacon []byte) error {
	log := gnarklogger.Logger()

	r1cs, err := loadR1CS(filepath.Join(dir, "ccs.bin"))
	if err != nil {
		return fmt.Errorf("load ccs: %w", err)
	}
	if err := checkManifestMatches(dir, r1cs); err != nil {
		return err
	}

	commons, err := loadSrsCommons(filepath.Join(dir, "commons.bin"))
	if err != nil {
		return fmt.Errorf("load commons: %w", err)
	}

	paths, err := findContributions(dir, 2)
	if err != nil {
		return err
	}
	if len(paths) < 2 {
		return fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}

	contributions := make([]*mpcsetup.Phase2, len(paths)-1)
	for i := 1; i < len(paths); i++ {
		p, err := loadPhase2(paths[i])
		if err != nil {
			return fmt.Errorf("load phase2 contribution %d: %w", i, err)
		}
		contributions[i-1] = p
	}

	pk, vk, err := mpcsetup.VerifyPhase2(r1cs, commons, beacon, contributions...)
	if err != nil {
		return fmt.Errorf("verify phase2: %w", err)
	}

	if err := verifyingKeyShape(vk); err != nil {
		return fmt.Errorf("finalized verifying key: %w", err)
	}

	pkPath := filepath.Join(dir, "pk.bin")
	pkFile, err := os.Create(pkPath)
	if err != nil {
		return fmt.Errorf("create pk.bin: %w", err)
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("write pk.bin: %w", err)
	}

	vkPath := filepath.Join(dir, "vk.bin")
	vkFile, err := os.Create(vkPath)
	if err != nil {
		return fmt.Errorf("create vk.bin: %w", err)
	}
	defer vkFile.Close()
	if _, err := vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("write vk.bin: %w", err)
	}

	finalManifest := manifestFor(r1cs)
	if err := saveManifest(dir, finalManifest); err != nil {
		return fmt.Errorf("write manifest.json: %w", err)
	}

	log.Info().Str("dir", dir).Int("contributions", len(contributions)).Msg("pdq ceremony finalized")
	return nil
}
