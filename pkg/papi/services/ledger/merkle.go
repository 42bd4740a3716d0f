package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Hash is a 32 byte keccak-256 digest.
type Hash [32]byte

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func keccak(parts ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// LeafHash matches the vault contract's leaf:
//
//	keccak256(abi.encodePacked(uint256 payrollId, uint32 index, address employee,
//	    address token, bytes32 keccak256(ciphertext), bytes32 encryptedRef))
func LeafHash(payrollID *big.Int, index uint32, employee, token string, ciphertext []byte, encryptedRef string) (Hash, error) {
	if payrollID.Sign() < 0 || payrollID.BitLen() > 256 {
		return Hash{}, fmt.Errorf("payroll id out of uint256 range")
	}
	emp, err := decodeFixed(employee, 20)
	if err != nil {
		return Hash{}, fmt.Errorf("employee: %w", err)
	}
	tok, err := decodeFixed(token, 20)
	if err != nil {
		return Hash{}, fmt.Errorf("token: %w", err)
	}
	ref, err := decodeFixed(encryptedRef, 32)
	if err != nil {
		return Hash{}, fmt.Errorf("encrypted_ref: %w", err)
	}

	var pid [32]byte
	payrollID.FillBytes(pid[:])
	idx := []byte{byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)}
	ct := keccak(ciphertext)

	return keccak(pid[:], idx, emp, tok, ct[:], ref), nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("want %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// Tree holds every level of a merkle tree, leaves first. Odd nodes are
// paired with themselves.
type Tree [][]Hash

func BuildTree(leaves []Hash) (Tree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("no leaves")
	}
	level := append([]Hash(nil), leaves...)
	tree := Tree{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, keccak(left[:], right[:]))
		}
		level = next
		tree = append(tree, level)
	}
	return tree, nil
}

func (t Tree) Root() Hash { return t[len(t)-1][0] }

// Proof returns the sibling path of leaf index from the bottom up.
func (t Tree) Proof(index int) []Hash {
	var proof []Hash
	idx := index
	for _, level := range t[:len(t)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		} else {
			proof = append(proof, level[idx])
		}
		idx /= 2
	}
	return proof
}

// VerifyProof recomputes the root from a leaf and its proof.
func VerifyProof(leaf Hash, index int, proof []Hash, root Hash) bool {
	node := leaf
	idx := index
	for _, sib := range proof {
		if idx%2 == 0 {
			node = keccak(node[:], sib[:])
		} else {
			node = keccak(sib[:], node[:])
		}
		idx /= 2
	}
	return node == root
}
