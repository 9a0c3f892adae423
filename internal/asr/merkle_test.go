package asr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func fakeSignature(i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
	return hex.EncodeToString(sum[:])
}

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaves := []string{fakeSignature(0)}
	root, proofs := BuildTree(leaves)
	if root != leaves[0] {
		t.Fatalf("single-leaf root should equal the leaf, got %s", root)
	}
	if !VerifyProof(leaves[0], proofs[0], root) {
		t.Fatal("single-leaf proof should verify")
	}
}

func TestBuildTree_FiftyLeaves_AllProofsVerify(t *testing.T) {
	leaves := make([]string, 50)
	for i := range leaves {
		leaves[i] = fakeSignature(i)
	}
	root, proofs := BuildTree(leaves)
	if root == "" {
		t.Fatal("expected non-empty root")
	}
	for i, leaf := range leaves {
		if !VerifyProof(leaf, proofs[i], root) {
			t.Fatalf("proof for leaf %d failed to verify", i)
		}
	}
}

func TestBuildTree_OddLeafCount_LastLeafDuplicated(t *testing.T) {
	leaves := make([]string, 7)
	for i := range leaves {
		leaves[i] = fakeSignature(i)
	}
	root, proofs := BuildTree(leaves)
	for i, leaf := range leaves {
		if !VerifyProof(leaf, proofs[i], root) {
			t.Fatalf("proof for leaf %d failed to verify with odd leaf count", i)
		}
	}
}

func TestVerifyProof_TamperedLeafFails(t *testing.T) {
	leaves := make([]string, 10)
	for i := range leaves {
		leaves[i] = fakeSignature(i)
	}
	root, proofs := BuildTree(leaves)

	tampered := fakeSignature(999)
	if VerifyProof(tampered, proofs[3], root) {
		t.Fatal("expected proof verification to fail for a tampered leaf")
	}
}

func TestVerifyProof_TamperedRootFails(t *testing.T) {
	leaves := make([]string, 10)
	for i := range leaves {
		leaves[i] = fakeSignature(i)
	}
	_, proofs := BuildTree(leaves)

	badRoot := fakeSignature(999)
	if VerifyProof(leaves[3], proofs[3], badRoot) {
		t.Fatal("expected proof verification to fail against a tampered root")
	}
}
