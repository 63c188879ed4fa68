// Package creds generates member passwords and produces/verifies the tagged
// crypt(3) hashes stored on directory entries. The directory service verifies
// binds against the same SHA-512 crypt scheme, so hashes written here stay
// compatible with it.
package creds

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/netsoclabs/memberd/internal/common"
)

// SchemeTag prefixes every stored hash so a verifier can identify the
// algorithm. Matching is case-insensitive: some directory tooling rewrites
// it as {CRYPT}.
const SchemeTag = "{crypt}"

// Issuer generates plaintext passwords and hashes/verifies them.
type Issuer interface {
	GeneratePassword(minLen, maxLen int) (string, error)
	HashPassword(plaintext string) (string, error)
	Verify(plaintext, taggedHash string) bool
}

// CryptIssuer implements Issuer with SHA-512 crypt and a random salt.
type CryptIssuer struct{}

func NewCryptIssuer() *CryptIssuer {
	return &CryptIssuer{}
}

// GeneratePassword samples a uniform length in [minLen, maxLen] and fills it
// from [A-Za-z0-9] using crypto/rand. These are live login credentials.
func (i *CryptIssuer) GeneratePassword(minLen, maxLen int) (string, error) {
	length, err := common.RandIntRange(minLen, maxLen)
	if err != nil {
		return "", fmt.Errorf("sampling password length: %w", err)
	}
	password, err := common.RandString(length, common.AlphabetAlphanumeric)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return password, nil
}

// HashPassword returns the tagged SHA-512 crypt hash of plaintext with a
// freshly generated salt, e.g. "{crypt}$6$<salt>$<digest>".
func (i *CryptIssuer) HashPassword(plaintext string) (string, error) {
	hash, err := sha512_crypt.New().Generate([]byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return SchemeTag + hash, nil
}

// Verify recomputes the crypt digest of plaintext using the salt embedded in
// taggedHash and compares in constant time. An unrecognized scheme tag or a
// malformed stored value reads as false, never as an error.
func (i *CryptIssuer) Verify(plaintext, taggedHash string) bool {
	hash := taggedHash
	if strings.HasPrefix(hash, "{") {
		if len(hash) < len(SchemeTag) || !strings.EqualFold(hash[:len(SchemeTag)], SchemeTag) {
			return false
		}
		hash = hash[len(SchemeTag):]
	}

	recomputed, err := sha512_crypt.New().Generate([]byte(plaintext), []byte(hash))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(recomputed), []byte(hash)) == 1
}
