package backupcode

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
)

// Alphabet excludes characters that are easy to confuse when typed (I, O, 0, 1).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCount  = 10
	DefaultLength = 10
)

// RandomIndex returns a uniform integer in [0, n).
type RandomIndex func(n int) (int, error)

// Generate returns count distinct codes of the given length drawn from
// Alphabet using crypto/rand. A nil randomIndex selects crypto/rand.
func Generate(count, length int, randomIndex RandomIndex) ([]string, error) {
	if count <= 0 || length <= 0 {
		return nil, errors.New("backupcode: count and length must be positive")
	}
	if randomIndex == nil {
		randomIndex = cryptoRandomIndex
	}

	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for attempts := 0; len(codes) < count; attempts++ {
		if attempts > count*4 {
			return nil, errors.New("backupcode: random source produced too many duplicates")
		}
		code, err := newCode(length, randomIndex)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Canonicalize uppercases code and strips separators a user may type.
func Canonicalize(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// LooksLike reports whether canonical has the shape of a backup code of the
// given length.
func LooksLike(canonical string, length int) bool {
	if len(canonical) != length {
		return false
	}
	for i := 0; i < len(canonical); i++ {
		if strings.IndexByte(Alphabet, canonical[i]) < 0 {
			return false
		}
	}
	return true
}

// Hash binds a canonical code to its owner so equal codes of two users never
// share a stored value.
func Hash(userID, canonicalCode string) [32]byte {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	return sha256.Sum256(data)
}

// HashAll hashes every code for userID.
func HashAll(userID string, codes []string) [][32]byte {
	out := make([][32]byte, 0, len(codes))
	for _, c := range codes {
		out = append(out, Hash(userID, Canonicalize(c)))
	}
	return out
}

func newCode(length int, randomIndex RandomIndex) (string, error) {
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

func cryptoRandomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
