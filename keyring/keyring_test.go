package keyring

import "testing"

func TestKeyringSetGetDelete(t *testing.T) {
	kr := New(nil)
	if kr.Len() != 0 {
		t.Fatalf("expected empty keyring, got len %d", kr.Len())
	}

	k := Key{Kind: DeviceSigning, Priv: []byte{1, 2, 3}, Pub: []byte{4, 5, 6}}
	kr.Add(k)

	got := kr.Get(DeviceSigning)
	if len(got) != 1 || string(got[0].Pub) != string(k.Pub) {
		t.Fatalf("Get returned unexpected keys: %+v", got)
	}

	latest, ok := kr.Latest(DeviceSigning)
	if !ok || string(latest.Priv) != string(k.Priv) {
		t.Fatalf("Latest returned unexpected key: %+v, ok=%v", latest, ok)
	}

	kr.Delete(DeviceSigning)
	if len(kr.Get(DeviceSigning)) != 0 {
		t.Fatalf("expected no keys after Delete")
	}
}

func TestKeyringNewDoesNotAliasCallerMap(t *testing.T) {
	d := map[KeyKind][]Key{
		DeviceSigning: {{Kind: DeviceSigning, Pub: []byte{1}}},
	}
	kr := New(d)
	d[DeviceSigning][0].Pub[0] = 0xff

	got := kr.Get(DeviceSigning)
	if got[0].Pub[0] == 0xff {
		t.Fatalf("Keyring aliased the caller's slice backing array")
	}
}

func TestKeyringInstancesAreIndependent(t *testing.T) {
	// Regression guard for the legacy "mutable global" bug named in the
	// design notes: two Keyrings must never share state.
	a := New(nil)
	b := New(nil)

	a.Add(Key{Kind: DeviceSigning, Pub: []byte{1}})

	if len(b.Get(DeviceSigning)) != 0 {
		t.Fatalf("Keyring state leaked across instances")
	}
}

func TestKeyKindStringRoundTrip(t *testing.T) {
	for _, kind := range KeyKindValues() {
		s := kind.String()
		got, err := KeyKindString(s)
		if err != nil {
			t.Fatalf("KeyKindString(%q): %v", s, err)
		}
		if got != kind {
			t.Fatalf("round trip mismatch: %v -> %q -> %v", kind, s, got)
		}
	}
}

func TestKeyKindJSON(t *testing.T) {
	data, err := DeviceEncryption.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"DEVICE_ENCRYPTION"` {
		t.Fatalf("unexpected JSON: %s", data)
	}

	var k KeyKind
	if err := k.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if k != DeviceEncryption {
		t.Fatalf("unexpected round trip: %v", k)
	}
}

func TestLockUnlockAreNoOps(t *testing.T) {
	kr := New(nil)
	kr.Add(Key{Kind: DeviceSigning, Priv: []byte{1}, Pub: []byte{2}})
	if err := kr.Lock("password"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := kr.Unlock("password", 1); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if len(kr.Get(DeviceSigning)) != 1 {
		t.Fatalf("Lock/Unlock should not mutate state in the in-memory keyring")
	}
}
