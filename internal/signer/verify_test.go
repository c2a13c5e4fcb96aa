package signer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyConfig = &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA}

func newEntity(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "test", name+"@example.com", keyConfig)
	require.NoError(t, err)
	return e
}

func writeKeyring(t *testing.T, e *openpgp.Entity, armored bool) string {
	t.Helper()
	var buf bytes.Buffer
	if armored {
		w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
		require.NoError(t, err)
		require.NoError(t, e.Serialize(w))
		require.NoError(t, w.Close())
	} else {
		require.NoError(t, e.Serialize(&buf))
	}
	path := filepath.Join(t.TempDir(), "keyring.gpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func signFile(t *testing.T, e *openpgp.Entity, path string, armored bool) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	if armored {
		require.NoError(t, openpgp.ArmoredDetachSign(&buf, e, bytes.NewReader(data), nil))
	} else {
		require.NoError(t, openpgp.DetachSign(&buf, e, bytes.NewReader(data), nil))
	}
	sigPath := filepath.Join(filepath.Dir(path), SignatureFile)
	require.NoError(t, os.WriteFile(sigPath, buf.Bytes(), 0644))
	return sigPath
}

func TestVerifyDetached(t *testing.T) {
	e := newEntity(t, "repo")

	for _, armored := range []bool{true, false} {
		release := writeRelease(t)
		sig := signFile(t, e, release, armored)
		keyring := writeKeyring(t, e, armored)

		fingerprint, err := VerifyDetached(release, sig, keyring)
		require.NoError(t, err, "armored=%v", armored)
		assert.Len(t, fingerprint, 40)
	}
}

func TestVerifyDetachedRejects(t *testing.T) {
	e := newEntity(t, "repo")
	release := writeRelease(t)
	sig := signFile(t, e, release, true)

	other := writeKeyring(t, newEntity(t, "other"), true)
	_, err := VerifyDetached(release, sig, other)
	assert.True(t, models.IsType(err, models.ErrSignatureInvalid), "got %v", err)

	keyring := writeKeyring(t, e, true)
	require.NoError(t, os.WriteFile(release, []byte("Origin: Tampered\n"), 0644))
	_, err = VerifyDetached(release, sig, keyring)
	assert.True(t, models.IsType(err, models.ErrSignatureInvalid), "got %v", err)

	_, err = VerifyDetached(release, sig, filepath.Join(t.TempDir(), "none.gpg"))
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)
}

func TestSignVerifiesWithKeyring(t *testing.T) {
	e := newEntity(t, "repo")
	release := writeRelease(t)

	// The stub copies a signature prepared in advance
	prepared := signFile(t, e, release, true)
	stash := filepath.Join(t.TempDir(), "prepared.asc")
	require.NoError(t, os.Rename(prepared, stash))
	script := writeScript(t, "cp '"+stash+"' Release.gpg\n")

	s, err := NewCommandSigner(&models.SignOptions{Command: script, VerifyKeyring: writeKeyring(t, e, false)})
	require.NoError(t, err)
	result, err := s.Sign(context.Background(), release, testContext)
	require.NoError(t, err)
	assert.Equal(t, models.SignSigned, result.Status)
	assert.NotEmpty(t, result.SignedBy)

	bad, err := NewCommandSigner(&models.SignOptions{Command: script, VerifyKeyring: writeKeyring(t, newEntity(t, "other"), false)})
	require.NoError(t, err)
	_, err = bad.Sign(context.Background(), release, testContext)
	assert.True(t, models.IsType(err, models.ErrSignatureInvalid), "got %v", err)
	assert.True(t, models.IsSigningError(err))
}
