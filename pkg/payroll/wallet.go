package payroll

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ZeroRef is the encrypted_ref used when a commit item carries none.
const ZeroRef = "0x0000000000000000000000000000000000000000000000000000000000000000"

var (
	addressRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	bytes32Re = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

// NormalizeWallet lowercases and trims an address and checks it is 0x
// followed by 40 hex digits.
func NormalizeWallet(s string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(s))
	if !addressRe.MatchString(w) {
		return "", fmt.Errorf("invalid wallet address %q", s)
	}
	return w, nil
}

// IsBytes32 reports whether s is 0x followed by 64 hex digits.
func IsBytes32(s string) bool {
	return bytes32Re.MatchString(strings.ToLower(s))
}

// NormalizeTxHash validates a transaction hash and returns it lowercased.
func NormalizeTxHash(s string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(s))
	if !bytes32Re.MatchString(h) {
		return "", fmt.Errorf("invalid tx hash %q", s)
	}
	return h, nil
}

// ChecksumAddress renders a wallet in EIP-55 mixed case.
func ChecksumAddress(s string) (string, error) {
	w, err := NormalizeWallet(s)
	if err != nil {
		return "", err
	}
	hexAddr := w[2:]

	d := sha3.NewLegacyKeccak256()
	d.Write([]byte(hexAddr))
	hash := hex.EncodeToString(d.Sum(nil))

	out := []byte(hexAddr)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}
