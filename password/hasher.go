package password

import "errors"

var (
	// ErrEmptyPassword is returned when hashing an empty input.
	ErrEmptyPassword = errors.New("password: empty password")
	// ErrPasswordTooLong is returned when the input exceeds the hasher's limit.
	ErrPasswordTooLong = errors.New("password: password too long")
	// ErrMalformedHash is returned when an encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Hasher is the one-way hash and compare primitive used by the engine.
//
// Verify returns (false, nil) on mismatch. Implementations must compare in
// constant time and must never log their inputs.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
}

// Scheme is a Hasher that can recognize its own encodings.
type Scheme interface {
	Hasher
	Recognizes(encodedHash string) bool
}

// Multi hashes with Primary and verifies with whichever scheme recognizes the
// stored encoding, so stores holding bcrypt hashes keep working after the
// primary moves to argon2id.
type Multi struct {
	Primary   Scheme
	Fallbacks []Scheme
}

func (m Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m Multi) Verify(password string, encodedHash string) (bool, error) {
	if m.Primary.Recognizes(encodedHash) {
		return m.Primary.Verify(password, encodedHash)
	}
	for _, s := range m.Fallbacks {
		if s.Recognizes(encodedHash) {
			return s.Verify(password, encodedHash)
		}
	}
	return false, ErrMalformedHash
}

// New builds a Multi whose primary is selected by algorithm ("argon2id" or
// "bcrypt"); the other scheme is kept as a verification fallback.
func New(algorithm string, argon Argon2Params, bcryptCost int) (Multi, error) {
	a, err := NewArgon2(argon)
	if err != nil {
		return Multi{}, err
	}
	b, err := NewBcrypt(bcryptCost)
	if err != nil {
		return Multi{}, err
	}

	switch algorithm {
	case "", algorithmID:
		return Multi{Primary: a, Fallbacks: []Scheme{b}}, nil
	case "bcrypt":
		return Multi{Primary: b, Fallbacks: []Scheme{a}}, nil
	default:
		return Multi{}, errors.New("password: unsupported algorithm " + algorithm)
	}
}
