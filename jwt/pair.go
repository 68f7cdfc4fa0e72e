package jwt

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"time"
)

// ErrSharedKeys is returned when access and refresh tokens would be signed
// with the same key material.
var ErrSharedKeys = errors.New("jwt: access and refresh tokens must use distinct keys")

// Pair is a signed access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessID         string
	RefreshID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs access and refresh tokens with separate managers.
type Issuer struct {
	access  *Manager
	refresh *Manager
}

// NewIssuer builds both managers and rejects shared keys.
func NewIssuer(access, refresh Config) (*Issuer, error) {
	access.Kind = KindAccess
	refresh.Kind = KindRefresh

	if len(access.PrivateKey) > 0 && bytes.Equal(access.PrivateKey, refresh.PrivateKey) {
		return nil, ErrSharedKeys
	}
	if len(access.PublicKey) > 0 && bytes.Equal(access.PublicKey, refresh.PublicKey) {
		return nil, ErrSharedKeys
	}
	if access.TTL >= refresh.TTL {
		return nil, errors.New("jwt: access TTL must be shorter than refresh TTL")
	}

	a, err := NewManager(access)
	if err != nil {
		return nil, err
	}
	r, err := NewManager(refresh)
	if err != nil {
		return nil, err
	}
	return &Issuer{access: a, refresh: r}, nil
}

// Issue signs a fresh pair for subject.
func (i *Issuer) Issue(subject string) (Pair, error) {
	access, ac, err := i.access.Issue(subject)
	if err != nil {
		return Pair{}, err
	}
	refresh, rc, err := i.refresh.Issue(subject)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessID:         ac.ID,
		RefreshID:        rc.ID,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) ParseAccess(token string) (*Claims, error)  { return i.access.Parse(token) }
func (i *Issuer) ParseRefresh(token string) (*Claims, error) { return i.refresh.Parse(token) }

func (i *Issuer) AccessTTL() time.Duration  { return i.access.TTL() }
func (i *Issuer) RefreshTTL() time.Duration { return i.refresh.TTL() }

// HashToken is the digest under which refresh tokens are persisted.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
