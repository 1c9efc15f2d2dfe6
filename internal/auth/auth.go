// Package auth builds the credentials a client presents at login. The
// shared secret never leaves the process: the server receives a digest of
// identity, nonce and secret and recomputes it on its side.
package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names the digest function.
type Algorithm string

const (
	MD5     Algorithm = "md5"
	BLAKE2b Algorithm = "blake2b"
)

// Valid reports whether a is a known algorithm. Empty selects MD5.
func (a Algorithm) Valid() bool {
	switch a {
	case "", MD5, BLAKE2b:
		return true
	}
	return false
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case "", MD5:
		return md5.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("auth: unknown digest algorithm %q", string(a))
	}
}

// Digest returns hex(H(identity || nonce || secret)).
func Digest(a Algorithm, identity, nonce, secret string) (string, error) {
	h, err := a.newHash()
	if err != nil {
		return "", err
	}
	_, _ = io.WriteString(h, identity)
	_, _ = io.WriteString(h, nonce)
	_, _ = io.WriteString(h, secret)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NewNonce returns a fresh single-use nonce.
func NewNonce() string {
	return uuid.NewString()
}

// Credentials is one login attempt.
type Credentials struct {
	Identity string
	Nonce    string
	Digest   string
}

// Sign builds Credentials for identity with a fresh nonce.
func Sign(a Algorithm, identity, secret string) (Credentials, error) {
	return SignWithNonce(a, identity, NewNonce(), secret)
}

// SignWithNonce is Sign with a caller-chosen nonce.
func SignWithNonce(a Algorithm, identity, nonce, secret string) (Credentials, error) {
	d, err := Digest(a, identity, nonce, secret)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Identity: identity, Nonce: nonce, Digest: d}, nil
}

// Query encodes the credentials as the id/nonce/digest query parameters
// the server also accepts on the upgrade request.
func (c Credentials) Query() url.Values {
	v := url.Values{}
	v.Set("id", c.Identity)
	v.Set("nonce", c.Nonce)
	v.Set("digest", c.Digest)
	return v
}
