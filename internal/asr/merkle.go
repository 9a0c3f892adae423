package asr

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrProofInvalid = errors.New("asr: merkle proof does not verify against root")

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Sibling string // hex-encoded
	OnRight bool   // true if Sibling is the right-hand node at this layer
}

// leafHash and nodeHash both operate on hex-encoded strings for storage
// convenience; the underlying digest is always raw SHA-256.
func leafHash(signatureHex string) string {
	return signatureHex
}

func nodeHash(leftHex, rightHex string) string {
	left, _ := hex.DecodeString(leftHex)
	right, _ := hex.DecodeString(rightHex)
	sum := sha256.Sum256(append(append([]byte{}, left...), right...))
	return hex.EncodeToString(sum[:])
}

// BuildTree constructs a Merkle root over a batch's record signatures using
// the last-leaf duplication rule: an odd layer duplicates its final node
// before pairing. Returns the root and, for each leaf index, the sibling
// path needed to reconstruct it.
func BuildTree(leaves []string) (root string, proofs [][]ProofStep) {
	n := len(leaves)
	if n == 0 {
		return "", nil
	}
	if n == 1 {
		return leaves[0], [][]ProofStep{{}}
	}

	layers := [][]string{append([]string{}, leaves...)}
	for len(layers[len(layers)-1]) > 1 {
		cur := layers[len(layers)-1]
		if len(cur)%2 == 1 {
			cur = append(cur, cur[len(cur)-1])
		}
		next := make([]string, 0, len(cur)/2)
		for i := 0; i < len(cur); i += 2 {
			next = append(next, nodeHash(cur[i], cur[i+1]))
		}
		layers = append(layers, next)
	}
	root = layers[len(layers)-1][0]

	proofs = make([][]ProofStep, n)
	for leafIdx := 0; leafIdx < n; leafIdx++ {
		idx := leafIdx
		var path []ProofStep
		for layer := 0; layer < len(layers)-1; layer++ {
			cur := layers[layer]
			// mirror the duplication applied during construction
			paddedLen := len(cur)
			if paddedLen%2 == 1 {
				paddedLen++
			}
			siblingIdx := idx ^ 1
			var sibling string
			if siblingIdx < len(cur) {
				sibling = cur[siblingIdx]
			} else {
				sibling = cur[idx] // duplicated final node
			}
			path = append(path, ProofStep{Sibling: sibling, OnRight: idx%2 == 0})
			idx /= 2
		}
		proofs[leafIdx] = path
	}
	return root, proofs
}

// VerifyProof recomputes the root for signatureHex along path and compares
// it to root.
func VerifyProof(signatureHex string, path []ProofStep, root string) bool {
	cur := leafHash(signatureHex)
	for _, step := range path {
		if step.OnRight {
			cur = nodeHash(cur, step.Sibling)
		} else {
			cur = nodeHash(step.Sibling, cur)
		}
	}
	return cur == root
}
