// Package codes generates and canonicalizes account backup codes.
//
// Plaintext codes exist only in memory at generation time; callers persist
// the salted SHA-256 hashes and show the formatted plaintext to the account
// holder exactly once.
package codes

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"strings"
)

// Alphabet excludes 0/O/1/I to keep codes transcription-safe.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Record holds the hash of a single backup code.
type Record struct {
	Hash [32]byte
}

// GenerateSet creates count codes of the given length. It returns the hash
// records for persistence and the display-formatted plaintext codes in the
// same order.
func GenerateSet(accountID string, count, length int) ([]Record, []string, error) {
	records := make([]Record, 0, count)
	plain := make([]string, 0, count)

	for i := 0; i < count; i++ {
		raw, err := New(length)
		if err != nil {
			return nil, nil, err
		}
		canonical := Canonicalize(raw)
		records = append(records, Record{Hash: Hash(accountID, canonical)})
		plain = append(plain, Format(raw))
	}

	return records, plain, nil
}

// New creates a single raw backup code of the given length.
func New(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(Alphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n])
	}
	return b.String(), nil
}

// Format inserts a mid-point dash for readability on codes of 8+ characters.
func Format(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// Canonicalize upper-cases the code and strips separators so user input
// matches the stored hash regardless of formatting.
func Canonicalize(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// Hash binds the code to its account so identical codes on different
// accounts produce distinct hashes.
func Hash(accountID, canonicalCode string) [32]byte {
	data := make([]byte, 0, len(accountID)+1+len(canonicalCode))
	data = append(data, accountID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	return sha256.Sum256(data)
}

func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
