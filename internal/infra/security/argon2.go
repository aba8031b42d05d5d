package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/argon2"
)

var errMalformedHash = errors.New("argon2: malformed encoded hash")

// Argon2Config holds the Argon2id cost parameters. Stored hashes embed the
// parameters they were produced with, so the config can be tuned without
// invalidating existing credentials.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2: memory below 8 MiB")
	case c.Iterations == 0:
		return errors.New("argon2: iterations must be positive")
	case c.Parallelism == 0:
		return errors.New("argon2: parallelism must be positive")
	case c.SaltLength < 8:
		return errors.New("argon2: salt shorter than 8 bytes")
	case c.KeyLength < 16:
		return errors.New("argon2: key shorter than 16 bytes")
	}
	return nil
}

var activeConfig atomic.Pointer[Argon2Config]

func init() {
	activeConfig.Store(&Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	})
}

// ConfigureArgon2 replaces the hashing parameters used for new hashes.
func ConfigureArgon2(cfg Argon2Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	activeConfig.Store(&cfg)
	return nil
}

// CurrentArgon2Config returns the parameters new hashes are produced with.
func CurrentArgon2Config() Argon2Config {
	return *activeConfig.Load()
}

// HashPassword derives an Argon2id hash of the password under the active
// parameters. The encoding is
// argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>
// with raw-std base64 for the binary segments.
func HashPassword(password string) (string, error) {
	cfg := CurrentArgon2Config()

	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		cfg.Memory, cfg.Iterations, cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether the password matches the stored hash. An
// empty password or empty hash compares false without error, so accounts
// without a password (provider-only logins) fail closed instead of erroring.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	salt, key, cfg, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, cfg Argon2Config, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return nil, nil, cfg, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, cfg, errMalformedHash
	}
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Iterations, &cfg.Parallelism); err != nil {
		return nil, nil, cfg, errMalformedHash
	}
	if cfg.Iterations == 0 || cfg.Memory == 0 || cfg.Parallelism == 0 {
		return nil, nil, cfg, errMalformedHash
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return nil, nil, cfg, fmt.Errorf("argon2: decode salt: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, cfg, fmt.Errorf("argon2: decode key: %w", err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return nil, nil, cfg, errMalformedHash
	}
	return salt, key, cfg, nil
}
