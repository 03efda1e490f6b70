// Package sigchain implements the tamper-evident, append-only signature
// chain that is the authoritative record of a user's devices and the
// subordinate keys attested to by each device. It is grounded on
// original_source/src/public_keys/sigchain/core.py (the Python SigChain
// this spec distills) and, for its persistence and error shapes, on the
// teacher package's PrivateKeyContainer/Error types.
package sigchain

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/amosson/public-keys/crypto"
	"github.com/amosson/public-keys/logging"
)

// zeroHash is the prev value of the first entry in any chain: 64 hex
// nibbles of zero (spec.md §3, invariant 3).
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// SigChain replays, validates and appends to a sequence of Entries backed
// by a Store. It is single-threaded and synchronous (spec.md §5): callers
// sharing a SigChain across goroutines must serialize their own access.
type SigChain struct {
	store Store
	log   logging.Logger

	rawChain  []string
	dataChain []ParsedEntry
	devices   map[string]*Device

	prevHash string

	errorEntry       string
	hasErrorEntry    bool
	errorEntryAsDict ParsedEntry
	errorReason      string
}

// New returns a SigChain over store. Call Load to replay any existing
// entries.
func New(store Store) *SigChain {
	return &SigChain{
		store:    store,
		log:      logging.Discard,
		devices:  make(map[string]*Device),
		prevHash: zeroHash,
	}
}

// SetLogger overrides the Logger used by this SigChain; the default is a
// no-op, matching the teacher package's dummyLogger default.
func (sc *SigChain) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.Discard
	}
	sc.log = l
}

// Len returns the number of accepted entries.
func (sc *SigChain) Len() int { return len(sc.rawChain) }

// IsValid reports whether no load error has been recorded.
func (sc *SigChain) IsValid() bool { return !sc.hasErrorEntry }

// PrevHash returns the hash that the next appended entry's prev field
// must equal.
func (sc *SigChain) PrevHash() string { return sc.prevHash }

// Location returns the backing Store's round-trippable locator string, the
// same value a Client envelope persists under "sigchain.location".
func (sc *SigChain) Location() string { return sc.store.Location() }

// RawChain returns the accepted entries' base64 wire form, in order.
func (sc *SigChain) RawChain() []string { return append([]string(nil), sc.rawChain...) }

// DataChain returns the accepted entries' parsed form, in order.
func (sc *SigChain) DataChain() []ParsedEntry { return append([]ParsedEntry(nil), sc.dataChain...) }

// Devices returns the device index, keyed by signing-kid.
func (sc *SigChain) Devices() map[string]*Device {
	out := make(map[string]*Device, len(sc.devices))
	for k, v := range sc.devices {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Device looks up one device by its signing-kid.
func (sc *SigChain) Device(signingKid string) (*Device, bool) {
	d, ok := sc.devices[signingKid]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

// ErrorReason returns the reason the first invalid entry was rejected, if
// any: "Hash mismatch" or "Bad signature".
func (sc *SigChain) ErrorReason() string { return sc.errorReason }

// Load replays every entry in the backing Store. On the first invalid
// entry it records the error and stops without continuing past it
// (spec.md §4.D). An invalid entry is never returned as an error — it is
// recorded on the SigChain and observed via IsValid/ErrorReason; only a
// failure of the backing Store's Load is returned.
func (sc *SigChain) Load() error {
	raw, err := sc.store.Load()
	if err != nil {
		return err
	}

	for _, entry := range raw {
		newHash, parsed, reason, verr := sc.validateEntry(entry, sc.prevHash)
		if verr != nil {
			return verr
		}
		if reason != "" {
			sc.errorEntry = entry
			sc.errorEntryAsDict = parsed
			sc.hasErrorEntry = true
			sc.errorReason = reason
			sc.log.Logf("sigchain: rejecting entry at seq %d: %s", len(sc.rawChain), reason)
			break
		}

		sc.rawChain = append(sc.rawChain, entry)
		sc.dataChain = append(sc.dataChain, parsed)
		sc.applyStatement(parsed)
		sc.prevHash = newHash
	}

	return nil
}

// validateEntry implements spec.md §4.D's validate_entry: base64-decode,
// check the hash link, verify the signature, and on success return the
// hash that the *next* entry's prev must equal.
func (sc *SigChain) validateEntry(raw, prevHash string) (newHash string, parsed ParsedEntry, reason string, err error) {
	sig, payload, parsed, derr := decodeRawEntry(raw)
	if derr != nil {
		// A corrupt/unparseable entry is reported the same way an
		// authentic-but-wrong signature would be: as a load error, not
		// a hard failure, so that the accepted prefix remains usable.
		return "", parsed, "Bad signature", nil
	}

	if parsed.Prev != prevHash {
		return "", parsed, "Hash mismatch", nil
	}

	pubBytes, herr := hex.DecodeString(parsed.Authority.Kid)
	if herr != nil || len(pubBytes) != ed25519.PublicKeySize {
		return "", parsed, "Bad signature", nil
	}

	// PyNaCl's VerifyKey.verify(sig||message) strips the leading 64 byte
	// signature and checks it against the remaining message; this is
	// equivalent to a detached verification of sig over payload (spec.md
	// §3 invariant 5, §4.D step 4).
	if verr := crypto.VerifyDetached(ed25519.PublicKey(pubBytes), payload, sig); verr != nil {
		return "", parsed, "Bad signature", nil
	}

	return crypto.Sum256Hex([]byte(raw)), parsed, "", nil
}

// applyStatement updates the device index for one accepted entry,
// implementing spec.md §3 invariant 8.
func (sc *SigChain) applyStatement(parsed ParsedEntry) {
	switch classifyStatement(parsed.Statement) {
	case statementAddDevice:
		kid := stringField(parsed.Statement, "kid")
		sc.devices[kid] = &Device{
			DeviceID:   stringField(parsed.Statement, "device_id"),
			SigningKid: kid,
			Name:       stringField(parsed.Statement, "name"),
			Kind:       stringField(parsed.Statement, "kind"),
		}
	case statementSignedKid:
		targetKid := stringField(parsed.Statement, "kid")
		if d, ok := sc.devices[targetKid]; ok {
			d.SignedByKid = parsed.Authority.Kid
		} else if d, ok := sc.devices[parsed.Authority.Kid]; ok {
			d.EncryptionKey = targetKid
		}
	}
}

// append signs and appends one entry, iff the chain is currently valid.
// It is a no-op on a poisoned chain, per spec.md §4.D/§7.
func (sc *SigChain) append(stmt Statement, authority Authority, signDetached func([]byte) []byte) (ParsedEntry, bool, error) {
	if !sc.IsValid() {
		return ParsedEntry{}, false, nil
	}

	entry := Entry{
		Statement: stmt,
		Authority: authority,
		Prev:      sc.prevHash,
		Seq:       uint64(len(sc.rawChain)),
	}
	signed := entry.Sign(signDetached)

	if err := sc.store.Add(signed); err != nil {
		return ParsedEntry{}, false, err
	}

	_, parsed, _, err := decodeRawEntry(signed)
	if err != nil {
		return ParsedEntry{}, false, err
	}

	sc.rawChain = append(sc.rawChain, signed)
	sc.dataChain = append(sc.dataChain, parsed)
	sc.applyStatement(parsed)
	sc.prevHash = crypto.Sum256Hex([]byte(signed))

	return parsed, true, nil
}

// CreateDeviceAndAdd builds and appends a self-signed AddDevice entry for
// a new device, implementing spec.md §4.D. If signingKey is nil, a fresh
// Ed25519 signing keypair is generated and its private half returned;
// when the caller supplies its own signingKey, nil is returned to signal
// that the caller already owns the key. If deviceID is "", a fresh 32
// random byte hex id is generated. On a poisoned chain nothing is appended
// and it returns nil, nil.
func (sc *SigChain) CreateDeviceAndAdd(name, account, kind string, signingKey ed25519.PrivateKey, deviceID string) (ed25519.PrivateKey, error) {
	var generatedKey ed25519.PrivateKey
	priv := signingKey
	if priv == nil {
		_, sk, err := ed25519GenerateKey()
		if err != nil {
			return nil, err
		}
		priv = sk
		generatedKey = sk
	}
	pub := priv.Public().(ed25519.PublicKey)
	kid := hex.EncodeToString(pub)

	if deviceID == "" {
		idBytes, err := crypto.RandomBytes(32)
		if err != nil {
			return nil, err
		}
		deviceID = hex.EncodeToString(idBytes)
	}

	stmt := NewAddDevice(deviceID, kind, name, kid)
	authority := Authority{Username: account, Kid: kid}

	_, ok, err := sc.append(stmt, authority, func(msg []byte) []byte {
		return crypto.SignDetached(priv, msg)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return generatedKey, nil
}

// SignKidAndAdd builds and appends a SignedKid entry attesting to
// targetKid, signed by signer, implementing spec.md §4.D. If kind is
// keyring.DeviceEncryption (signalled here by isEncryptionAttestation),
// the signer's own device record gets its EncryptionKey updated;
// otherwise the target device's SignedByKid is updated. On a poisoned
// chain nothing is appended and it returns nil.
func (sc *SigChain) SignKidAndAdd(targetKid string, signer ed25519.PrivateKey, account string, isEncryptionAttestation bool) error {
	signerPub := signer.Public().(ed25519.PublicKey)
	signerKid := hex.EncodeToString(signerPub)

	stmt := NewSignedKid(targetKid, func(msg []byte) []byte {
		return crypto.SignDetached(signer, msg)
	})
	authority := Authority{Username: account, Kid: signerKid}

	_, ok, err := sc.append(stmt, authority, func(msg []byte) []byte {
		return crypto.SignDetached(signer, msg)
	})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if isEncryptionAttestation {
		if d, ok := sc.devices[signerKid]; ok {
			d.EncryptionKey = targetKid
		}
	} else if d, ok := sc.devices[targetKid]; ok {
		d.SignedByKid = signerKid
	}

	return nil
}

// ed25519GenerateKey generates a fresh Ed25519 keypair from a random seed,
// routed through package crypto's seed-based constructor so every keypair
// in this module is derived the same way.
func ed25519GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	seed, err := crypto.RandomBytes(crypto.SeedSize)
	if err != nil {
		return nil, nil, err
	}
	priv, pub, err := crypto.Ed25519FromSeed(seed)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}
