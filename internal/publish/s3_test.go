package publish

import (
	"context"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSHA256(t *testing.T) {
	// sha256("") in base64, as S3 expects it.
	got, err := encodeSHA256(integrity.SumBytes(nil))
	require.NoError(t, err)
	assert.Equal(t, "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", got)

	_, err = encodeSHA256("sha256:XYZ")
	assert.Error(t, err)
}

func TestNewS3Client_PartialCredentials(t *testing.T) {
	t.Setenv(EnvAccessKey, "AKIDEXAMPLE")
	t.Setenv(EnvSecretKey, "")
	_, err := NewS3Client(context.Background(), config.Default().Publish)
	assert.Error(t, err)
}

func TestNewS3Client_CustomEndpoint(t *testing.T) {
	t.Setenv(EnvAccessKey, "AKIDEXAMPLE")
	t.Setenv(EnvSecretKey, "secret")
	cfg := config.Default().Publish
	cfg.Endpoint = "127.0.0.1:8333"
	c, err := NewS3Client(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.api)
}

func TestNewS3Client_CustomCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(nil)
	defer srv.Close()
	bundle := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, pemBytes, 0o600))

	t.Setenv("AWS_CA_BUNDLE", bundle)
	t.Setenv(EnvAccessKey, "AKIDEXAMPLE")
	t.Setenv(EnvSecretKey, "secret")
	cfg := config.Default().Publish
	cfg.Endpoint = srv.URL
	c, err := NewS3Client(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.api)
}
