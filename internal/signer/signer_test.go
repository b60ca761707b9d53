package signer_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSigner(t *testing.T, secret string) *signer.Signer {
	t.Helper()
	s, err := signer.New([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSign_KnownVector(t *testing.T) {
	s := mustSigner(t, "S1")
	sig, err := s.Sign(map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, signer.Algorithm, sig.Alg)
	assert.Equal(t, "26741f4bd46290882a355db38e321ab427303a055851d14d9c57c9ee4abb1209", sig.Value)
}

func TestSign_IgnoresExistingSignatureMember(t *testing.T) {
	s := mustSigner(t, "S1")
	a, err := s.Sign(map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	b, err := s.Sign(map[string]any{"a": 1, "b": "x", "signature": map[string]any{"alg": "HMAC-SHA256", "value": "00"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNew_RejectsEmptySecret(t *testing.T) {
	_, err := signer.New(nil)
	assert.ErrorIs(t, err, errclass.ErrSecretInvalid)
}

func TestVerify_WrongSecret(t *testing.T) {
	doc := map[string]any{"bundle_name": "ota_bundle__rock_straight_v1"}
	sig, err := mustSigner(t, "S1").Sign(doc)
	require.NoError(t, err)

	require.NoError(t, mustSigner(t, "S1").Verify(doc, &sig))
	err = mustSigner(t, "S2").Verify(doc, &sig)
	assert.ErrorIs(t, err, errclass.ErrSignatureInvalid)
}

func TestVerify_RejectsBadSections(t *testing.T) {
	s := mustSigner(t, "S1")
	doc := map[string]any{"a": 1}
	assert.ErrorIs(t, s.Verify(doc, nil), errclass.ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify(doc, &signer.Signature{Alg: "HMAC-MD5", Value: "00"}), errclass.ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify(doc, &signer.Signature{Alg: signer.Algorithm, Value: "zz"}), errclass.ErrSignatureInvalid)
}

// withSignature appends a signature member to a one-line JSON object.
func withSignature(raw string, sig signer.Signature) []byte {
	return []byte(fmt.Sprintf(`%s,"signature":{"alg":%q,"value":%q}}`, strings.TrimSuffix(raw, "}"), sig.Alg, sig.Value))
}

func TestSignedDocumentCheck(t *testing.T) {
	s := mustSigner(t, "S1")
	raw := `{"product":"smart-guitar","artifacts":[{"path":"assignment.json"}]}`
	sig, err := s.Sign([]byte(raw))
	require.NoError(t, err)
	signed := withSignature(raw, sig)

	status, err := s.CheckDocument(signed, false)
	require.NoError(t, err)
	assert.Equal(t, signer.StatusValid, status)

	status, err = mustSigner(t, "S2").CheckDocument(signed, false)
	assert.ErrorIs(t, err, errclass.ErrSignatureInvalid)
	assert.Equal(t, signer.StatusInvalid, status)
}

func TestCheckDocument_TamperedPayload(t *testing.T) {
	s := mustSigner(t, "S1")
	raw := []byte(`{"tempo":90}`)
	sig, err := s.Sign(raw)
	require.NoError(t, err)
	signed := withSignature(`{"tempo":91}`, sig)

	_, err = s.CheckDocument(signed, false)
	assert.ErrorIs(t, err, errclass.ErrSignatureInvalid)
}

func TestCheckDocument_Unsigned(t *testing.T) {
	s := mustSigner(t, "S1")
	for _, raw := range []string{`{"a":1}`, `{"a":1,"signature":null}`} {
		status, err := s.CheckDocument([]byte(raw), false)
		assert.ErrorIs(t, err, errclass.ErrSignatureInvalid, raw)
		assert.Equal(t, signer.StatusUnsigned, status)

		status, err = s.CheckDocument([]byte(raw), true)
		assert.NoError(t, err, raw)
		assert.Equal(t, signer.StatusUnsigned, status)
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	_, err := signer.Extract([]byte(`{`))
	assert.ErrorIs(t, err, errclass.ErrManifestInvalid)
}

func TestLoadSecret(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(file, []byte("  from-file\n"), 0600))

	secret, err := signer.LoadSecret("", file)
	require.NoError(t, err)
	assert.Equal(t, []byte("from-file"), secret)

	secret, err = signer.LoadSecret("inline", file)
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), secret)

	secret, err = signer.LoadSecret("", "")
	require.NoError(t, err)
	assert.Nil(t, secret)

	_, err = signer.LoadSecret("", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0600))
	_, err = signer.LoadSecret("", empty)
	assert.ErrorIs(t, err, errclass.ErrSecretInvalid)
}
