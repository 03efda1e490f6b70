// Package keyring holds the per-device key material used to sign and
// encrypt on behalf of a Client. It is grounded on the same get/set/delete
// shape as the teacher package's PrivateKeyContainer (container.go); the
// package provides one concrete in-memory Keyring type and no interface. A hardened, at-rest-encrypted keyring is
// an external collaborator (spec.md §4.E) and is not implemented by this
// package.
package keyring

//go:generate enumer -type KeyKind -json

// KeyKind tags the purpose of a Key. Ordinal values are stable because
// they may appear in persisted metadata.
type KeyKind int

const (
	// Unknown is the zero value; it should never be attached to a real key.
	Unknown KeyKind = iota
	// DeviceSigning is a device's EdDSA signing key.
	DeviceSigning
	// DeviceEncryption is a device's X25519 encryption key.
	DeviceEncryption
	// DeviceSeed is the seed a device's signing/encryption keys were
	// derived from.
	DeviceSeed
	// PukSigning is reserved for a future per-user signing key. No core
	// behaviour produces or consumes keys of this kind (spec.md §9, open
	// questions).
	PukSigning
	// PukEncryption is reserved for a future per-user encryption key.
	PukEncryption
	// PukSeed is reserved for a future per-user key seed.
	PukSeed
)

// Key is one entry of a Keyring: a kind tag, the (possibly absent) private
// half, and the always-present public half.
type Key struct {
	Kind KeyKind
	Priv []byte // nil if locked or public-only
	Pub  []byte
}

// Keyring maps a KeyKind to the ordered list of Keys of that kind, newest
// last. Unlike the legacy Python InMemoryTestingRing this spec replaces
// (spec.md §9: "mutable global in the legacy in-memory keyring... is a
// bug"), state here lives entirely on the *Keyring value: there is no
// package-level map shared across instances.
type Keyring struct {
	keys map[KeyKind][]Key
}

// New returns an empty Keyring, or one pre-seeded with a copy of d (key
// lists and key bytes included) if given.
func New(d map[KeyKind][]Key) *Keyring {
	kr := &Keyring{keys: make(map[KeyKind][]Key)}
	for k, v := range d {
		cp := make([]Key, len(v))
		copy(cp, v)
		for i := range cp {
			cp[i].Priv = append([]byte(nil), cp[i].Priv...)
			cp[i].Pub = append([]byte(nil), cp[i].Pub...)
		}
		kr.keys[k] = cp
	}
	return kr
}

// Get returns the ordered list of Keys of the given kind.
func (kr *Keyring) Get(kind KeyKind) []Key {
	return kr.keys[kind]
}

// Latest returns the most recently added Key of the given kind, if any.
func (kr *Keyring) Latest(kind KeyKind) (Key, bool) {
	ks := kr.keys[kind]
	if len(ks) == 0 {
		return Key{}, false
	}
	return ks[len(ks)-1], true
}

// Set replaces the list of Keys of the given kind.
func (kr *Keyring) Set(kind KeyKind, keys []Key) {
	kr.keys[kind] = keys
}

// Add appends a Key to the list for its kind.
func (kr *Keyring) Add(k Key) {
	kr.keys[k.Kind] = append(kr.keys[k.Kind], k)
}

// Delete removes all Keys of the given kind.
func (kr *Keyring) Delete(kind KeyKind) {
	delete(kr.keys, kind)
}

// Kinds iterates the KeyKinds currently present in the Keyring.
func (kr *Keyring) Kinds() []KeyKind {
	out := make([]KeyKind, 0, len(kr.keys))
	for k := range kr.keys {
		out = append(out, k)
	}
	return out
}

// Len returns the number of distinct KeyKinds held.
func (kr *Keyring) Len() int {
	return len(kr.keys)
}

// Lock is a hook for wrapping the private halves of every Key in a
// password-derived secretbox. The in-memory Keyring used by this module
// is a no-op, per spec.md §4.E; a hardened keyring is an external
// collaborator.
func (kr *Keyring) Lock(password string) error {
	return nil
}

// Unlock is the corresponding hook for restoring private key material.
// count is the number of keys the caller expects to unlock, used by a
// hardened implementation to detect partial failures; the in-memory
// Keyring ignores it.
func (kr *Keyring) Unlock(password string, count int) error {
	return nil
}
