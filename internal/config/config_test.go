package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: internal
distribution: bookworm
description: Internal packages
architectures: [amd64, arm64]
compressions: [gz, xz]
workers: 4
errorPolicy: collect
signing:
  command: /usr/local/bin/sign-release
  keyId: "0xDEADBEEF"
  timeout: 90s
  extra:
    profile: ci
`), 0644))

	f, err := Load(path)
	require.NoError(t, err)

	d, err := f.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, "internal", d.Name)
	assert.Equal(t, "bookworm", d.Distribution)
	assert.Equal(t, "bookworm", d.Suite)
	assert.Equal(t, "Bookworm", d.Origin)
	assert.Equal(t, "main", d.Component, "unset keys keep defaults")
	assert.Equal(t, []string{"amd64", "arm64"}, d.Architectures)
	assert.Equal(t, []string{"gz", "xz"}, d.Compressions)
	assert.Equal(t, 4, d.Workers)
	assert.Equal(t, models.CollectErrors, d.ErrorPolicy)

	opts, err := f.SignOptions()
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.Equal(t, "/usr/local/bin/sign-release", opts.Command)
	assert.Equal(t, "0xDEADBEEF", opts.KeyID)
	assert.Equal(t, 90*time.Second, opts.Timeout)
	assert.Equal(t, map[string]string{"profile": "ci"}, opts.Extra)
}

func TestDefaults(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)

	d, err := f.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, "stable", d.Distribution)
	assert.Equal(t, []string{"amd64"}, d.Architectures)
	assert.Equal(t, models.FailFast, d.ErrorPolicy)

	opts, err := f.SignOptions()
	require.NoError(t, err)
	assert.Nil(t, opts)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("distribution: [unclosed\n"), 0644))
	_, err = Load(bad)
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("codename: stable\n"), 0644))
	_, err = Load(unknown)
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)
}

func TestInvalidValues(t *testing.T) {
	f, err := Parse([]byte("architectures: [all]\n"))
	require.NoError(t, err)
	_, err = f.Descriptor()
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)

	for _, timeout := range []string{"soon", "-1s", "0s"} {
		f, err := Parse([]byte("signing:\n  command: /bin/true\n  timeout: " + timeout + "\n"))
		require.NoError(t, err)
		_, err = f.SignOptions()
		assert.True(t, models.IsType(err, models.ErrConfig), "timeout %s: got %v", timeout, err)
	}
}

func TestSigningWithoutCommand(t *testing.T) {
	for _, section := range []string{
		"signing:\n  keyId: ABCD\n",
		"signing:\n  timeout: 10s\n",
		"signing:\n  verifyKeyring: /etc/keys.gpg\n",
	} {
		f, err := Parse([]byte(section))
		require.NoError(t, err)
		_, err = f.SignOptions()
		assert.True(t, models.IsType(err, models.ErrConfig), "%q: got %v", section, err)
	}

	f, err := Parse([]byte("signing: {}\n"))
	require.NoError(t, err)
	opts, err := f.SignOptions()
	require.NoError(t, err)
	assert.Nil(t, opts)
}

func TestPoolMode(t *testing.T) {
	f, err := Parse([]byte("poolMode: symlink\n"))
	require.NoError(t, err)
	d, err := f.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, models.PoolSymlink, d.PoolMode)

	f, err = Parse([]byte("poolMode: hardlink\n"))
	require.NoError(t, err)
	_, err = f.Descriptor()
	assert.True(t, models.IsType(err, models.ErrConfig), "got %v", err)
}
