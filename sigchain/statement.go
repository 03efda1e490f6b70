package sigchain

import "encoding/hex"

// Statement is a closed tagged union of AddDevice and SignedKid. It is
// grounded on the original Python Statement/AddDevice/SignedKid dataclasses
// (original_source/src/public_keys/sigchain/core.py): replay discriminates
// between the two by the exact key set of the parsed JSON object, while
// emission always carries an explicit discriminator for AddDevice
// (statement_type) as spec.md §9 prescribes.
type Statement interface {
	// CanonicalJSON returns this statement's canonical JSON object, used
	// as the "statement" field when signing an Entry.
	CanonicalJSON() string
}

// AddDevice self-signs a new device into the chain.
type AddDevice struct {
	DeviceID      string
	Kind          string
	Name          string
	Kid           string
	StatementType string
}

// NewAddDevice returns an AddDevice statement with the fixed, stable
// statement_type discriminator.
func NewAddDevice(deviceID, kind, name, kid string) AddDevice {
	return AddDevice{
		DeviceID:      deviceID,
		Kind:          kind,
		Name:          name,
		Kid:           kid,
		StatementType: "self-signed-device",
	}
}

// addDeviceKeys is the field set original_source discriminates AddDevice
// entries by when replaying a chain that predates the statement_type
// discriminator.
var addDeviceKeys = map[string]struct{}{
	"device_id":      {},
	"kind":           {},
	"name":           {},
	"kid":            {},
	"statement_type": {},
}

// CanonicalJSON implements Statement. Field order is fixed:
// device_id, kind, name, kid, statement_type (spec.md §4.C).
func (a AddDevice) CanonicalJSON() string {
	return canonicalJSON(
		kv{"device_id", jsonString(a.DeviceID)},
		kv{"kind", jsonString(a.Kind)},
		kv{"name", jsonString(a.Name)},
		kv{"kid", jsonString(a.Kid)},
		kv{"statement_type", jsonString(a.StatementType)},
	)
}

// SignedKid attests that the signer's device has signed another kid: a
// device's own encryption key, or another device's signing key.
type SignedKid struct {
	Kid       string
	SignedKid string // hex of the detached signature over utf8(Kid)
}

// NewSignedKid builds a SignedKid statement, signing kid with signer.
func NewSignedKid(kid string, signDetached func([]byte) []byte) SignedKid {
	sig := signDetached([]byte(kid))
	return SignedKid{Kid: kid, SignedKid: hex.EncodeToString(sig)}
}

var signedKidKeys = map[string]struct{}{
	"kid":        {},
	"signed_kid": {},
}

// CanonicalJSON implements Statement. Field order is fixed: kid,
// signed_kid (spec.md §4.C).
func (s SignedKid) CanonicalJSON() string {
	return canonicalJSON(
		kv{"kid", jsonString(s.Kid)},
		kv{"signed_kid", jsonString(s.SignedKid)},
	)
}

// Authority is the (username, signing key) pair that signs an Entry.
type Authority struct {
	Username string
	Kid      string // hex of the signing public key
}

// CanonicalJSON implements the authority.dict() contract of spec.md §4.C.
// Field order is fixed: kid, username.
func (a Authority) CanonicalJSON() string {
	return canonicalJSON(
		kv{"kid", jsonString(a.Kid)},
		kv{"username", jsonString(a.Username)},
	)
}
