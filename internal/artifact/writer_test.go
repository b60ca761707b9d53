package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smartguitar/sgc/internal/artifact"
	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteRecordsDigestOfBytesWritten(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ota_bundle__rock_straight_v1")
	w := artifact.NewWriter(root)

	a, err := w.Write("nested/dir/notes.txt", []byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, "nested/dir/notes.txt", a.Path)
	assert.Equal(t, artifact.KindText, a.Kind)
	assert.Equal(t, int64(5), a.Size)
	assert.Equal(t, integrity.SumBytes([]byte("hello")), a.SHA256)

	onDisk, _, err := integrity.SumFile(filepath.Join(root, "nested", "dir", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, a.SHA256, onDisk)
}

func TestWriter_RefusesExisting(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root)
	_, err := w.Write("a.json", []byte("{}"), artifact.KindJSON)
	require.NoError(t, err)

	_, err = w.Write("a.json", []byte(`{"x":1}`), artifact.KindJSON)
	require.ErrorIs(t, err, errclass.ErrArtifactExists)

	data, err := os.ReadFile(filepath.Join(root, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data), "existing file must be untouched")
	assert.Len(t, w.Artifacts(), 1)
}

func TestWriter_WriteRequiredRejectsEmpty(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root)
	_, err := w.WriteRequired("summary.json", nil, artifact.KindJSON)
	require.ErrorIs(t, err, errclass.ErrArtifactEmpty)
	_, statErr := os.Stat(filepath.Join(root, "summary.json"))
	assert.True(t, os.IsNotExist(statErr))

	a, err := w.Write("empty.txt", nil, artifact.KindText)
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.Size)
}

func TestWriter_RejectsEscapingPaths(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	for _, rel := range []string{"../evil.json", "/abs.json", "a/../../b"} {
		_, err := w.Write(rel, []byte("x"), "")
		assert.ErrorIs(t, err, errclass.ErrPathEscape, rel)
	}
}

func TestWriter_WriteJSONIsCanonical(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root)
	a, err := w.WriteJSON("assignment.json", map[string]any{"b": 1, "a": "x"}, artifact.KindAssignment)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "assignment.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"x\",\n  \"b\": 1\n}\n", string(data))
	assert.Equal(t, artifact.KindAssignment, a.Kind)
}

func TestWriter_CopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "groove.mid")
	require.NoError(t, os.WriteFile(src, []byte("MThd\x00\x00\x00\x06"), 0644))

	var recorded []artifact.Artifact
	root := t.TempDir()
	w := artifact.NewWriter(root, artifact.WithRecorder(func(a artifact.Artifact) {
		recorded = append(recorded, a)
	}))
	a, err := w.CopyFile("attachments/groove.mid", src, "")
	require.NoError(t, err)
	assert.Equal(t, artifact.KindMIDI, a.Kind)
	assert.Equal(t, int64(8), a.Size)
	require.Len(t, recorded, 1)
	assert.Equal(t, a, recorded[0])

	_, err = w.CopyFile("attachments/missing.mid", filepath.Join(t.TempDir(), "missing.mid"), "")
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, artifact.KindMIDI, artifact.InferKind("a/b.MID"))
	assert.Equal(t, artifact.KindJSON, artifact.InferKind("x.json"))
	assert.Equal(t, artifact.KindText, artifact.InferKind("README.md"))
	assert.Equal(t, artifact.KindBinary, artifact.InferKind("blob"))
}
