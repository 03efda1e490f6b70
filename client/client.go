// Package client implements the device-identity half of the module: key
// generation, sigchain association, and the password-protected at-rest
// envelope that a bootstrap tool uses to persist a Client between runs. It
// is grounded on original_source/src/public_keys/client/core.py (Client,
// PosixClient) for the generate/_store/_load contract, generalized with
// exported fields/methods and the errs/crypto packages in place of PyNaCl
// calls made inline.
package client

import (
	"crypto/ed25519"
	"encoding/json"
	"io"

	"github.com/amosson/public-keys/crypto"
	"github.com/amosson/public-keys/errs"
	"github.com/amosson/public-keys/keyring"
	"github.com/amosson/public-keys/logging"
	"github.com/amosson/public-keys/sigchain"
)

// Domain-separation labels fed as the HMAC-SHA256 *message* (keyed by the
// master seed) to derive a device's signing and encryption sub-seeds.
// These exact bytes are part of the wire contract (spec.md §6): changing
// them changes every key a given seed derives.
const (
	deviceSigningLabel    = "Derived-Device-NaCl-EdDSA-1"
	deviceEncryptionLabel = "Derived-User-NaCl-DH-1"
)

// deviceKind tags every AddDevice statement this package emits. The
// original source's AddDevice.kind is a caller-supplied free-form string
// with no fixed vocabulary; this module always identifies itself the same
// way since nothing here distinguishes device categories.
const deviceKind = "client-device"

// Client holds one device's identity: a random id, a display name, its
// local Keyring, and (once associated) the SigChain vouching for it.
// Mirrors original_source's Client/PosixClient, collapsed into one type
// since this module has no separate POSIX-path subclass.
type Client struct {
	ID       string
	Name     string
	Keyring  *keyring.Keyring
	Sigchain *sigchain.SigChain

	log logging.Logger
}

// New returns an empty, ungenerated Client.
func New() *Client {
	return &Client{log: logging.Discard}
}

// SetLogger overrides the Logger used by this Client and any SigChain it
// associates.
func (c *Client) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.Discard
	}
	c.log = l
	if c.Sigchain != nil {
		c.Sigchain.SetLogger(l)
	}
}

// Generate assigns a fresh random id, derives a device signing keypair and
// a device encryption keypair from one random master seed via two
// domain-separated HMAC-SHA256 sub-derivations, and builds a Keyring
// holding both. If sigchainLoc is non-empty, it then calls
// AssociateSigchain(sigchainLoc). Mirrors Client.generate (spec.md §4.F).
func (c *Client) Generate(name, sigchainLoc string) error {
	idBytes, err := crypto.RandomBytes(32)
	if err != nil {
		return err
	}
	c.ID = hexEncode(idBytes)
	c.Name = name

	seed, err := crypto.RandomBytes(crypto.SeedSize)
	if err != nil {
		return err
	}
	signingSeed := crypto.HMACSHA256(seed, []byte(deviceSigningLabel))
	dhSeed := crypto.HMACSHA256(seed, []byte(deviceEncryptionLabel))

	signingPriv, signingPub, err := crypto.Ed25519FromSeed(signingSeed)
	if err != nil {
		return err
	}
	dhPriv, dhPub, err := crypto.X25519FromSeed(dhSeed)
	if err != nil {
		return err
	}

	c.Keyring = keyring.New(map[keyring.KeyKind][]keyring.Key{
		keyring.DeviceSigning: {{
			Kind: keyring.DeviceSigning,
			Priv: []byte(signingPriv),
			Pub:  []byte(signingPub),
		}},
		keyring.DeviceEncryption: {{
			Kind: keyring.DeviceEncryption,
			Priv: dhPriv,
			Pub:  dhPub,
		}},
	})

	if sigchainLoc != "" {
		return c.AssociateSigchain(sigchainLoc)
	}
	return nil
}

// AssociateSigchain constructs a SigChain over the store named by loc and
// emits a self-signed AddDevice entry for this client's device-signing key
// followed by a SignedKid entry attesting the device-encryption public key
// (spec.md §4.F). Each missing precondition fails with a distinct
// PreconditionViolated error whose message ends in a fixed stable suffix,
// so callers and tests can match on error text alone.
func (c *Client) AssociateSigchain(loc string) error {
	if c.Keyring == nil {
		return errs.New(errs.PreconditionViolated, "cannot associate sigchain: no keyring")
	}
	signingKey, ok := c.Keyring.Latest(keyring.DeviceSigning)
	if !ok {
		return errs.New(errs.PreconditionViolated, "cannot associate sigchain: no DEVICE SIGNING KEY")
	}
	encryptionKey, ok := c.Keyring.Latest(keyring.DeviceEncryption)
	if !ok {
		return errs.New(errs.PreconditionViolated, "cannot associate sigchain: no DEVICE ENCRYPTION KEY")
	}
	if c.Sigchain != nil {
		return errs.New(errs.PreconditionViolated, "client already has a sigchain: associate a new one")
	}
	if c.ID == "" || c.Name == "" {
		return errs.New(errs.PreconditionViolated, "cannot associate sigchain: no name or no id")
	}

	store, err := sigchain.CreateStore(loc, nil)
	if err != nil {
		return err
	}
	sc := sigchain.New(store)
	sc.SetLogger(c.log)

	signingPriv := ed25519.PrivateKey(signingKey.Priv)
	if _, err := sc.CreateDeviceAndAdd(c.Name, c.Name, deviceKind, signingPriv, c.ID); err != nil {
		return err
	}

	encKid := hexEncode(encryptionKey.Pub)
	if err := sc.SignKidAndAdd(encKid, signingPriv, c.Name, true); err != nil {
		return err
	}

	c.Sigchain = sc
	return nil
}

// envelope is the JSON shape encrypted inside the at-rest blob. Field
// order id, name, sigchain.location is fixed by spec.md §6; encoding/json
// on a struct with exported fields preserves declaration order, so no
// hand-rolled canonical encoder is needed here (unlike package sigchain's
// signed entries, this blob is never independently re-derived or verified
// by a third party — only ever read back by this same software).
type envelope struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	SigchainLocation *string `json:"sigchain.location"`
}

// Store encrypts this Client's (id, name, sigchain location) under a key
// derived from password via Argon2i, and writes salt||ciphertext to sink.
// Mirrors Client._store (spec.md §4.F, §6).
func (c *Client) Store(password string, sink io.Writer) error {
	salt, err := crypto.RandomBytes(crypto.SaltBytes)
	if err != nil {
		return err
	}
	if _, err := sink.Write(salt); err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to write client envelope salt")
	}

	keyBytes, err := crypto.KDF(crypto.SecretboxKeySize, []byte(password), salt)
	if err != nil {
		return err
	}
	var key [crypto.SecretboxKeySize]byte
	copy(key[:], keyBytes)

	env := envelope{ID: c.ID, Name: c.Name}
	if c.Sigchain != nil {
		loc := c.Sigchain.Location()
		env.SigchainLocation = &loc
	}
	plaintext, err := json.Marshal(env)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to marshal client envelope")
	}

	ciphertext, err := crypto.SecretboxEncrypt(&key, plaintext)
	if err != nil {
		return err
	}
	if _, err := sink.Write(ciphertext); err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to write client envelope ciphertext")
	}

	return c.Keyring.Lock(password)
}

// Load reads a salt||ciphertext blob written by Store, decrypts it under a
// key derived from password, and restores id/name. If the envelope names a
// sigchain location, that chain is reconstructed and loaded too. A wrong
// password or any tampering of the blob surfaces as errs.CryptoError, never
// silently as malformed data (spec.md §4.F, §7).
func (c *Client) Load(password string, source io.Reader) error {
	salt := make([]byte, crypto.SaltBytes)
	if _, err := io.ReadFull(source, salt); err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to read client envelope salt")
	}
	ciphertext, err := io.ReadAll(source)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to read client envelope ciphertext")
	}

	keyBytes, err := crypto.KDF(crypto.SecretboxKeySize, []byte(password), salt)
	if err != nil {
		return err
	}
	var key [crypto.SecretboxKeySize]byte
	copy(key[:], keyBytes)

	plaintext, err := crypto.SecretboxDecrypt(&key, ciphertext)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return errs.Wrap(errs.CryptoError, err, "client envelope decrypted to invalid JSON")
	}

	c.ID = env.ID
	c.Name = env.Name

	if env.SigchainLocation != nil {
		store, err := sigchain.CreateStore(*env.SigchainLocation, nil)
		if err != nil {
			return err
		}
		sc := sigchain.New(store)
		sc.SetLogger(c.log)
		if err := sc.Load(); err != nil {
			return err
		}
		c.Sigchain = sc
	}

	return nil
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
