package client

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/amosson/public-keys/errs"
	"github.com/amosson/public-keys/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithoutSigchain(t *testing.T) {
	c := New()
	require.NoError(t, c.Generate("alice", ""))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "alice", c.Name)
	assert.Nil(t, c.Sigchain)

	signing, ok := c.Keyring.Latest(keyring.DeviceSigning)
	require.True(t, ok)
	assert.Len(t, signing.Pub, 32)
}

func TestGenerateWithSigchainAssociation(t *testing.T) {
	c := New()
	require.NoError(t, c.Generate("alice", "@inmemory"))

	require.NotNil(t, c.Sigchain)
	assert.Equal(t, 2, c.Sigchain.Len())
	assert.True(t, c.Sigchain.IsValid())
	assert.Len(t, c.Sigchain.Devices(), 1)
}

// TestGenerateProducesDistinctIdentities checks that two independent
// generations, each from its own random seed, yield different ids and
// signing keys. Same-seed determinism is not tested here, since Generate
// does not expose its seed.
func TestGenerateProducesDistinctIdentities(t *testing.T) {
	a, b := New(), New()
	require.NoError(t, a.Generate("alice", ""))
	require.NoError(t, b.Generate("alice", ""))
	assert.NotEqual(t, a.ID, b.ID)

	aSigning, _ := a.Keyring.Latest(keyring.DeviceSigning)
	bSigning, _ := b.Keyring.Latest(keyring.DeviceSigning)
	assert.NotEqual(t, aSigning.Pub, bSigning.Pub)
}

func TestAssociateSigchainPreconditions(t *testing.T) {
	t.Run("no keyring", func(t *testing.T) {
		c := New()
		c.ID, c.Name = "id", "name"
		err := c.AssociateSigchain("@inmemory")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.PreconditionViolated))
		assert.Contains(t, err.Error(), "no keyring")
	})

	t.Run("already associated", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Generate("alice", "@inmemory"))
		err := c.AssociateSigchain("@inmemory")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "associate a new one")
	})

	t.Run("no name or id", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Generate("alice", ""))
		c.ID = ""
		err := c.AssociateSigchain("@inmemory")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no name or no id")
	})
}

func TestEnvelopeRoundTrip(t *testing.T) {
	// A file-backed chain, since an @inmemory locator reloads as a fresh,
	// empty MemoryStore.
	loc := filepath.Join(t.TempDir(), "chain") + "@localhost"
	c := New()
	require.NoError(t, c.Generate("alice", loc))

	var buf bytes.Buffer
	require.NoError(t, c.Store("hunter2", &buf))

	restored := New()
	require.NoError(t, restored.Load("hunter2", bytes.NewReader(buf.Bytes())))

	assert.Equal(t, c.ID, restored.ID)
	assert.Equal(t, c.Name, restored.Name)
	require.NotNil(t, restored.Sigchain)
	assert.Equal(t, c.Sigchain.Len(), restored.Sigchain.Len())
}

// TestEnvelopeWrongPassword mirrors spec.md §8 scenario 7: decrypting with
// the wrong password surfaces CryptoError rather than corrupt data.
func TestEnvelopeWrongPassword(t *testing.T) {
	c := New()
	require.NoError(t, c.Generate("alice", ""))

	var buf bytes.Buffer
	require.NoError(t, c.Store("password", &buf))

	restored := New()
	err := restored.Load("password1", bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CryptoError))
}

func TestEnvelopeTamperedCiphertext(t *testing.T) {
	c := New()
	require.NoError(t, c.Generate("alice", ""))

	var buf bytes.Buffer
	require.NoError(t, c.Store("password", &buf))

	tampered := buf.Bytes()
	tampered[len(tampered)-1] ^= 0xFF

	restored := New()
	err := restored.Load("password", bytes.NewReader(tampered))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CryptoError))
}
