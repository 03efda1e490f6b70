package sigchain

import (
	"encoding/base64"
	"encoding/json"

	"github.com/amosson/public-keys/errs"
)

// Entry wraps one statement with the authority that signs it, its
// position in the chain, and a hash link to the entry before it. This
// mirrors original_source's Entry class (sigchain/core.go's equivalent in
// Python), generalized with exported fields and a canonical JSON encoder
// instead of json.dumps(self.as_dict()).
type Entry struct {
	Statement Statement
	Authority Authority
	Prev      string
	Seq       uint64
}

// CanonicalJSON returns the exact bytes that get signed: an object with
// keys statement, authority, prev, seq in that order (spec.md §4.C).
func (e Entry) CanonicalJSON() string {
	return canonicalJSON(
		kv{"statement", e.Statement.CanonicalJSON()},
		kv{"authority", e.Authority.CanonicalJSON()},
		kv{"prev", jsonString(e.Prev)},
		kv{"seq", jsonUint(e.Seq)},
	)
}

// Sign signs the entry's canonical JSON with signDetached and returns the
// base64 wire form: base64(signature(64 bytes) || canonical_json_bytes).
func (e Entry) Sign(signDetached func(msg []byte) []byte) string {
	msg := []byte(e.CanonicalJSON())
	sig := signDetached(msg)
	raw := make([]byte, 0, len(sig)+len(msg))
	raw = append(raw, sig...)
	raw = append(raw, msg...)
	return base64.StdEncoding.EncodeToString(raw)
}

// ParsedAuthority is the decoded authority object of a parsed Entry.
type ParsedAuthority struct {
	Kid      string `json:"kid"`
	Username string `json:"username"`
}

// ParsedEntry is the JSON-decoded form of an Entry, as produced while
// replaying a chain. Statement is left as a generic map so that replay
// can discriminate AddDevice from SignedKid by key set, per spec.md §3
// ("The set of keys in a statement's canonical dict is the statement's
// discriminator during replay") and §9.
type ParsedEntry struct {
	Statement map[string]interface{} `json:"statement"`
	Authority ParsedAuthority         `json:"authority"`
	Prev      string                  `json:"prev"`
	Seq       uint64                  `json:"seq"`
}

const signatureSize = 64

// decodeRawEntry base64-decodes raw and splits it into its detached
// signature and the JSON payload that was signed, returning the parsed
// payload alongside both halves.
func decodeRawEntry(raw string) (sig, payload []byte, parsed ParsedEntry, err error) {
	decoded, derr := base64.StdEncoding.DecodeString(raw)
	if derr != nil {
		return nil, nil, ParsedEntry{}, errs.Wrap(errs.BadSignature, derr, "failed to base64-decode chain entry")
	}
	if len(decoded) < signatureSize {
		return nil, nil, ParsedEntry{}, errs.New(errs.BadSignature, "chain entry shorter than a signature")
	}
	sig = decoded[:signatureSize]
	payload = decoded[signatureSize:]

	if jerr := json.Unmarshal(payload, &parsed); jerr != nil {
		return nil, nil, ParsedEntry{}, errs.Wrap(errs.BadSignature, jerr, "failed to parse chain entry JSON")
	}
	return sig, payload, parsed, nil
}

// statementKind classifies a parsed statement's key set, matching
// spec.md §3/§9's "discriminate by exact key-set" rule.
type statementKind int

const (
	statementUnknown statementKind = iota
	statementAddDevice
	statementSignedKid
)

func classifyStatement(stmt map[string]interface{}) statementKind {
	if sameKeySet(stmt, addDeviceKeys) {
		return statementAddDevice
	}
	if sameKeySet(stmt, signedKidKeys) {
		return statementSignedKid
	}
	return statementUnknown
}

func sameKeySet(m map[string]interface{}, keys map[string]struct{}) bool {
	if len(m) != len(keys) {
		return false
	}
	for k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
