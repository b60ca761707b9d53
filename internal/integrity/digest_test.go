package integrity_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDigest = "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestSumBytes_KnownValues(t *testing.T) {
	assert.Equal(t, integrity.Digest(helloDigest), integrity.SumBytes([]byte("hello")))
	assert.Equal(t,
		integrity.Digest("sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		integrity.SumBytes(nil))
}

func TestSumFile_MatchesSumBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignment.json")
	content := []byte(`{"payload":{"tempo_start":90}}`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	d1, n, err := integrity.SumFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	d2, _, err := integrity.SumFile(path)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Equal(t, integrity.SumBytes(content), d1)
}

func TestSumFile_Missing(t *testing.T) {
	_, _, err := integrity.SumFile(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, os.IsNotExist(err))
}

func TestSumReader_DetectsSingleByteChange(t *testing.T) {
	a, _, err := integrity.SumReader(bytes.NewReader([]byte("groove")))
	require.NoError(t, err)
	b, _, err := integrity.SumReader(bytes.NewReader([]byte("grooVe")))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseDigest(t *testing.T) {
	d, err := integrity.ParseDigest(helloDigest)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(helloDigest, "sha256:"), d.Hex())

	for _, bad := range []string{
		"",
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		"md5:2cf24dba5fb0a30e26e83b2ac5b9e29e",
		"sha256:2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824",
		"sha256:abc",
	} {
		_, err := integrity.ParseDigest(bad)
		assert.Error(t, err, "should reject %q", bad)
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "attachments"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifest.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "attachments", "b.txt"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assignment.json"), []byte("{}"), 0644))
	require.NoError(t, os.Symlink("manifest.json", filepath.Join(root, "link.json")))

	files, special, err := integrity.ListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"assignment.json", "attachments/b.txt", "manifest.json"}, files)
	assert.Equal(t, []string{"link.json"}, special)
}
