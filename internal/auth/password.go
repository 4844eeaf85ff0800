package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters used when hashing.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultParams follow the OWASP Argon2id recommendation.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

// GenerateToken returns a fresh station token: a random UUID rendered as
// 32 lowercase hex characters without dashes.
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// credential is the secret material hashed for a station. Binding the
// identity into it means a hash cannot be replayed for a different station.
func credential(id int64, token string) []byte {
	return []byte(strconv.FormatInt(id, 10) + ":" + token)
}

// HashStationToken hashes "<id>:<token>" with DefaultParams and returns a
// PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashStationToken(id int64, token string) (string, error) {
	return HashWithParams(credential(id, token), DefaultParams)
}

// VerifyStationToken reports whether token is the credential of station id
// under encodedHash. A malformed hash is an error; a mismatch is not.
func VerifyStationToken(id int64, token, encodedHash string) (bool, error) {
	return verify(credential(id, token), encodedHash)
}

// HashWithParams hashes secret with explicit cost parameters.
func HashWithParams(secret []byte, p Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verify(secret []byte, encodedHash string) (bool, error) {
	salt, hash, p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, uint32(len(hash))) //nolint:gosec // hash length fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// decodePHC parses an Argon2id PHC string into salt, hash and parameters.
func decodePHC(encoded string) (salt, hash []byte, p Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, p, ErrInvalidHash
	}

	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("%w: parsing version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("%w: parsing parameters: %v", ErrInvalidHash, err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: decoding salt: %v", ErrInvalidHash, err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: decoding hash: %v", ErrInvalidHash, err)
	}
	if len(hash) == 0 {
		return nil, nil, p, fmt.Errorf("%w: empty hash", ErrInvalidHash)
	}

	return salt, hash, p, nil
}
