package pathutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName_Valid(t *testing.T) {
	for _, name := range []string{"rock_straight_v1", "ota_bundle__groove_foundations_v1", "v1.0", "A-Z.test"} {
		assert.NoError(t, pathutil.ValidateName(name), "should accept: %s", name)
	}
}

func TestValidateName_Invalid(t *testing.T) {
	for _, name := range []string{"", "..", ".", "a/b", "a\\b", "a..b", "hello\x00world", "with space", "café"} {
		err := pathutil.ValidateName(name)
		require.ErrorIs(t, err, errclass.ErrNameInvalid, "should reject: %q", name)
	}
}

func TestCleanRel(t *testing.T) {
	got, err := pathutil.CleanRel("attachments/./notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "attachments/notes.txt", got)

	for _, rel := range []string{"", ".", "..", "../x", "a/../../x", "/etc/passwd", "a\\b"} {
		_, err := pathutil.CleanRel(rel)
		assert.ErrorIs(t, err, errclass.ErrPathEscape, "should reject: %q", rel)
	}
}

func TestJoinWithin(t *testing.T) {
	root := t.TempDir()
	p, err := pathutil.JoinWithin(root, "rock_straight_v1/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "rock_straight_v1", "manifest.json"), p)

	_, err = pathutil.JoinWithin(root, "../outside.json")
	assert.ErrorIs(t, err, errclass.ErrPathEscape)
}

func TestIsStrictlyWithin(t *testing.T) {
	root := filepath.Join("tmp", "bundle")
	assert.True(t, pathutil.IsStrictlyWithin(root, filepath.Join(root, "a")))
	assert.True(t, pathutil.IsStrictlyWithin(root, filepath.Join(root, "a", "b.json")))
	assert.False(t, pathutil.IsStrictlyWithin(root, root))
	assert.False(t, pathutil.IsStrictlyWithin(root, filepath.Join("tmp", "bundle2")))
	assert.False(t, pathutil.IsStrictlyWithin(root, filepath.Join(root, "..", "x")))
}

func TestValidatePathSafety_UnderRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "sub", "file.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
	assert.NoError(t, pathutil.ValidatePathSafety(root, filepath.Join(root, "missing", "deep")))
}

func TestValidatePathSafety_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))
	err := pathutil.ValidatePathSafety(root, filepath.Join(link, "x"))
	assert.ErrorIs(t, err, errclass.ErrPathEscape)
}
