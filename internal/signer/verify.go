package signer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sassoftware/debpkgr/internal/models"
)

var armorPrefix = []byte("-----BEGIN ")

// VerifyDetached checks a detached signature over releasePath against the
// public keys in keyringPath. Keyring and signature may each be armored or
// binary. It returns the fingerprint of the signing key.
func VerifyDetached(releasePath, sigPath, keyringPath string) (string, error) {
	invalid := func(err error) error {
		return models.NewError(models.ErrSignatureInvalid, models.StageSign, sigPath, err)
	}

	keyring, err := readKeyRing(keyringPath)
	if err != nil {
		return "", models.NewError(models.ErrConfig, models.StageSign, keyringPath,
			fmt.Errorf("failed to read keyring: %w", err))
	}

	signed, err := os.Open(releasePath)
	if err != nil {
		return "", models.NewError(models.ErrIO, models.StageSign, releasePath, err)
	}
	defer signed.Close()

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return "", invalid(err)
	}

	var entity *openpgp.Entity
	if isArmored(sig) {
		entity, err = openpgp.CheckArmoredDetachedSignature(keyring, signed, bytes.NewReader(sig), nil)
	} else {
		entity, err = openpgp.CheckDetachedSignature(keyring, signed, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", invalid(fmt.Errorf("signature check failed: %w", err))
	}
	return hex.EncodeToString(entity.PrimaryKey.Fingerprint), nil
}

func readKeyRing(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keyring openpgp.EntityList
	if isArmored(data) {
		keyring, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	} else {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("no keys found in %s", path)
	}
	return keyring, nil
}

func isArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), armorPrefix)
}
