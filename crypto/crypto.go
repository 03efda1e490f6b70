// Package crypto is the primitives façade for the identity manager: EdDSA
// sign/verify, X25519 keypair derivation, a password-based KDF and an
// authenticated secret-box, all chosen to match NaCl/libsodium semantics
// bit-for-bit since the encrypted client envelope (see package client) is
// only ever consumed by this same software.
//
// The signature and secret-box primitives here mirror the way the teacher
// package (github.com/bwesterb/go-xmssmt) structures its own cryptographic
// façade in context.go/hash.go: a small set of free functions plus fixed
// size constants, no interfaces. The secret-box choice (nacl/secretbox) is
// grounded on the sibling rclone backend/crypt package, which uses the same
// package for its data key; the KDF (argon2) is grounded on the other
// example corpus's keygen.go, which derives symmetric keys from a password
// with golang.org/x/crypto/argon2.
package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/amosson/public-keys/errs"

	"golang.org/x/crypto/argon2"
)

// Sizes that must match libsodium bit-for-bit, since they are baked into
// persisted chain entries and the client envelope.
const (
	// SignatureSize is the size of a detached EdDSA signature.
	SignatureSize = ed25519.SignatureSize // 64

	// SeedSize is the size of the seed used to derive a signing or
	// Diffie-Hellman keypair.
	SeedSize = 32

	// PublicKeySize is the size of an Ed25519 or X25519 public key.
	PublicKeySize = 32

	// SaltBytes is the size of the salt given to the password KDF.
	SaltBytes = 16

	// SecretboxKeySize is the size of the key consumed by SecretboxEncrypt.
	SecretboxKeySize = 32

	// SecretboxNonceSize is the size of a secretbox nonce.
	SecretboxNonceSize = 24

	// SecretboxOverhead is the size of the authentication tag prepended
	// to a secretbox ciphertext.
	SecretboxOverhead = secretbox.Overhead
)

// Argon2i parameters matching libsodium's crypto_pwhash_argon2i
// OPSLIMIT_INTERACTIVE / MEMLIMIT_INTERACTIVE pair, which the Client
// envelope (package client) must reproduce across implementations of the
// same software.
const (
	kdfTime    = 4         // opslimit, interactive
	kdfMemory  = 32 * 1024 // memlimit in KiB, interactive (32 MiB)
	kdfThreads = 1
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto/rand: %w", err)
	}
	return b, nil
}

// Ed25519FromSeed derives a signing keypair from a 32 byte seed, as
// NaCl's crypto_sign_seed_keypair does.
func Ed25519FromSeed(seed []byte) (priv ed25519.PrivateKey, pub ed25519.PublicKey, err error) {
	if len(seed) != SeedSize {
		return nil, nil, errs.New(errs.CryptoError, "ed25519 seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	priv = ed25519.NewKeyFromSeed(seed)
	pub = priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// X25519FromSeed derives a Diffie-Hellman (Curve25519) keypair from a
// 32 byte seed, as NaCl's crypto_box_seed_keypair does: the scalar is the
// first 32 bytes of SHA-512(seed), clamped by the underlying implementation.
func X25519FromSeed(seed []byte) (priv, pub []byte, err error) {
	if len(seed) != SeedSize {
		return nil, nil, errs.New(errs.CryptoError, "x25519 seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	h := sha512.Sum512(seed)
	priv = make([]byte, SeedSize)
	copy(priv, h[:SeedSize])
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, errs.Wrap(errs.CryptoError, err, "curve25519.X25519")
	}
	return priv, pub, nil
}

// SignDetached returns a 64 byte detached EdDSA signature of msg under priv.
func SignDetached(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// VerifyDetached checks a detached EdDSA signature of msg under pub.
func VerifyDetached(pub ed25519.PublicKey, msg, sig []byte) error {
	if len(sig) != SignatureSize {
		return errs.New(errs.BadSignature, "signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	if !ed25519.Verify(pub, msg, sig) {
		return errs.New(errs.BadSignature, "signature verification failed")
	}
	return nil
}

// KDF derives outLen bytes of key material from password and salt using
// Argon2i at libsodium's INTERACTIVE operations/memory limits.
func KDF(outLen int, password, salt []byte) ([]byte, error) {
	if len(salt) != SaltBytes {
		return nil, errs.New(errs.CryptoError, "salt must be %d bytes, got %d", SaltBytes, len(salt))
	}
	return argon2.Key(password, salt, kdfTime, kdfMemory, kdfThreads, uint32(outLen)), nil
}

// SecretboxEncrypt authenticates and encrypts plaintext under key, using a
// freshly generated random nonce that is prepended to the ciphertext.
func SecretboxEncrypt(key *[SecretboxKeySize]byte, plaintext []byte) ([]byte, error) {
	var nonce [SecretboxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("crypto/rand: %w", err)
	}
	out := make([]byte, SecretboxNonceSize, SecretboxNonceSize+len(plaintext)+SecretboxOverhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// SecretboxDecrypt authenticates and decrypts a ciphertext produced by
// SecretboxEncrypt. A wrong password or any tampering surfaces as
// errs.CryptoError, never silently as corrupt data.
func SecretboxDecrypt(key *[SecretboxKeySize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < SecretboxNonceSize+SecretboxOverhead {
		return nil, errs.New(errs.CryptoError, "ciphertext too short")
	}
	var nonce [SecretboxNonceSize]byte
	copy(nonce[:], ciphertext[:SecretboxNonceSize])
	plaintext, ok := secretbox.Open(nil, ciphertext[SecretboxNonceSize:], &nonce, key)
	if !ok {
		return nil, errs.New(errs.CryptoError, "secretbox: failed to decrypt (wrong password or tampered data)")
	}
	return plaintext, nil
}

// HMACSHA256 computes HMAC-SHA256(key, data), used by Client.Generate to
// derive domain-separated sub-seeds from one master seed (spec.md §6,
// "Domain-separation labels").
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Sum256Hex is sha256(data) formatted as lowercase hex, used to link
// sigchain entries together (prev_hash).
func Sum256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
