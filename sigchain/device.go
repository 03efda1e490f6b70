package sigchain

// Device summarizes one device's keys and attestations as derived purely
// by chain replay (spec.md §3). The device index is keyed by signing-kid
// per spec.md §9 ("The authoritative choice for this spec is: key by
// signing-kid"); DeviceID is carried on the record but never used as a
// lookup key.
type Device struct {
	DeviceID     string
	SigningKid   string
	Name         string
	Kind         string
	EncryptionKey string // hex X25519 public key, once attested
	SignedByKid   string // hex signing kid of the device that vouched for this one
	// RevokeSeq is reserved for future revocation support (spec.md §1,
	// §9). No core operation sets it; it round-trips as zero.
	RevokeSeq uint64
}
