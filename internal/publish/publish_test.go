package publish_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartguitar/sgc/internal/bundle"
	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/internal/publish"
	"github.com/smartguitar/sgc/internal/verify"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, key string
	data        []byte
	digest      integrity.Digest
}

type fakeStore struct {
	puts    []putCall
	failKey string
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, digest integrity.Digest) error {
	if key == f.failKey {
		return errors.New("injected failure")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, data: data, digest: digest})
	return nil
}

func buildZips(t *testing.T, zip bool) (out, manifestPath string) {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)
	out = t.TempDir()
	res, err := bundle.Build(context.Background(), bundle.Options{
		Selector:    bundle.Selector{SetID: "groove_foundations_v1"},
		Out:         out,
		Zip:         zip,
		Registry:    reg,
		Compression: packager.LevelFast,
	})
	require.NoError(t, err)
	return out, res.ManifestPath
}

func TestPublish_UploadsZipsThenManifest(t *testing.T) {
	_, manifestPath := buildZips(t, true)
	store := &fakeStore{}
	reg := metrics.NewRegistry()
	p, err := publish.NewPublisher(store, publish.Options{
		Bucket:   "ota",
		Prefix:   "/releases/2026.03/",
		Verifier: verify.NewVerifier(verify.Options{}),
		Metrics:  reg,
	})
	require.NoError(t, err)

	report, err := p.Publish(context.Background(), manifestPath)
	require.NoError(t, err)
	require.Len(t, report.Objects, 6)
	require.Len(t, store.puts, 6)

	assert.Equal(t, "releases/2026.03/ota_bundle__rock_straight_v1.zip", store.puts[0].key)
	last := store.puts[5]
	assert.Equal(t, "releases/2026.03/"+manifest.OTAFile, last.key)
	for _, put := range store.puts {
		assert.Equal(t, "ota", put.bucket)
		assert.Equal(t, integrity.SumBytes(put.data), put.digest)
	}

	textfile := filepath.Join(t.TempDir(), "publish.prom")
	require.NoError(t, reg.WriteTextfile(textfile))
	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sgc_objects_published_total 6")
}

func TestPublish_NoZips(t *testing.T) {
	_, manifestPath := buildZips(t, false)
	p, err := publish.NewPublisher(&fakeStore{}, publish.Options{Bucket: "ota"})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), manifestPath)
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)
}

func TestPublish_RefusesTamperedZip(t *testing.T) {
	out, manifestPath := buildZips(t, true)
	zp := filepath.Join(out, "ota_bundle__house_grid_v1.zip")
	data, err := os.ReadFile(zp)
	require.NoError(t, err)
	// Re-zip a modified bundle under the same name.
	require.NoError(t, os.Remove(zp))
	dir := filepath.Join(out, "ota_bundle__house_grid_v1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundle.PackFile), []byte("{}"), 0644))
	_, err = packager.ZipDir(context.Background(), dir, zp, packager.LevelFast)
	require.NoError(t, err)
	require.NotEqual(t, data, mustRead(t, zp))

	store := &fakeStore{}
	p, err := publish.NewPublisher(store, publish.Options{Bucket: "ota", Verifier: verify.NewVerifier(verify.Options{})})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), manifestPath)
	assert.ErrorIs(t, err, errclass.ErrDigestMismatch)
	assert.Empty(t, store.puts, "nothing may be uploaded when a zip fails verification")
}

func TestPublish_MissingZip(t *testing.T) {
	out, manifestPath := buildZips(t, true)
	require.NoError(t, os.Remove(filepath.Join(out, "ota_bundle__disco_four_on_floor_v1.zip")))

	store := &fakeStore{}
	p, err := publish.NewPublisher(store, publish.Options{Bucket: "ota"})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), manifestPath)
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)
	assert.Empty(t, store.puts)
}

func TestPublish_StoreFailureStopsBeforeManifest(t *testing.T) {
	_, manifestPath := buildZips(t, true)
	store := &fakeStore{failKey: "ota_bundle__house_grid_v1.zip"}
	p, err := publish.NewPublisher(store, publish.Options{Bucket: "ota"})
	require.NoError(t, err)

	report, err := p.Publish(context.Background(), manifestPath)
	require.Error(t, err)
	assert.Len(t, report.Objects, 2)
	for _, put := range store.puts {
		assert.NotEqual(t, manifest.OTAFile, put.key)
	}
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := publish.NewPublisher(nil, publish.Options{Bucket: "ota"})
	assert.Error(t, err)
	_, err = publish.NewPublisher(&fakeStore{}, publish.Options{})
	assert.Error(t, err)
}

func TestPublish_MissingManifest(t *testing.T) {
	p, err := publish.NewPublisher(&fakeStore{}, publish.Options{Bucket: "ota"})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), filepath.Join(t.TempDir(), manifest.OTAFile))
	assert.ErrorIs(t, err, errclass.ErrManifestNotFound)
}

func mustRead(t *testing.T, p string) []byte {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return data
}
