// Package manifest defines the documents that describe OTA bundles: the
// per-bundle manifest.json, the top-level ota_manifest.json and the
// multi-pack bundle_manifest.json wrapper.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/smartguitar/sgc/internal/artifact"
	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/fsutil"
	"github.com/smartguitar/sgc/pkg/jsonutil"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// File names inside a bundle tree.
const (
	BundleFile  = "manifest.json"
	WrapperFile = "bundle_manifest.json"
	OTAFile     = "ota_manifest.json"
)

// Schema identifiers.
const (
	SchemaVersion   = "v1"
	BundleSchemaID  = "ota_bundle"
	OTASchemaID     = "ota_bundle_manifest"
	WrapperSchemaID = "ota_multi_pack_bundle"
)

// Contract names a versioned document schema.
type Contract struct {
	SchemaID      string `json:"schema_id"`
	SchemaVersion string `json:"schema_version"`
}

// Target routes a bundle to devices.
type Target struct {
	DeviceModel *string `json:"device_model"`
	MinFirmware *string `json:"min_firmware"`
}

// Bundle is the manifest.json stored at the root of every bundle directory.
type Bundle struct {
	Contract      Contract            `json:"contract"`
	BundleName    string              `json:"bundle_name"`
	Product       string              `json:"product"`
	Target        Target              `json:"target"`
	CreatedAtUnix int64               `json:"created_at_unix"`
	AssignmentID  string              `json:"assignment_id"`
	SessionID     string              `json:"session_id"`
	Artifacts     []artifact.Artifact `json:"artifacts"`
	Signature     *signer.Signature   `json:"signature"`
}

// NewBundle starts a bundle manifest with the current contract.
func NewBundle(name, product string, target Target) *Bundle {
	return &Bundle{
		Contract:   Contract{SchemaID: BundleSchemaID, SchemaVersion: SchemaVersion},
		BundleName: name,
		Product:    product,
		Target:     target,
		Artifacts:  []artifact.Artifact{},
	}
}

// Validate checks the contract and that every artifact has a relative path
// inside the bundle and a well-formed digest.
func (b *Bundle) Validate() error {
	if b.Contract.SchemaID != BundleSchemaID {
		return errclass.ErrManifestInvalid.WithMessagef("schema_id %q, want %q", b.Contract.SchemaID, BundleSchemaID)
	}
	if b.Contract.SchemaVersion != SchemaVersion {
		return errclass.ErrManifestInvalid.WithMessagef("unsupported schema_version %q", b.Contract.SchemaVersion)
	}
	seen := make(map[string]bool, len(b.Artifacts))
	for _, a := range b.Artifacts {
		clean, err := pathutil.CleanRel(a.Path)
		if err != nil {
			return err
		}
		if seen[clean] {
			return errclass.ErrManifestInvalid.WithMessagef("artifact %s listed twice", clean)
		}
		seen[clean] = true
		if _, err := integrity.ParseDigest(string(a.SHA256)); err != nil {
			return errclass.ErrManifestInvalid.WithMessagef("artifact %s: %v", a.Path, err)
		}
	}
	return nil
}

// WriteBundle signs b when s is non-nil and writes it to dir/manifest.json.
func WriteBundle(dir string, b *Bundle, s *signer.Signer) error {
	b.Signature = nil
	if s != nil {
		sig, err := s.Sign(b)
		if err != nil {
			return err
		}
		b.Signature = &sig
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return writeDoc(filepath.Join(dir, BundleFile), b)
}

// ReadBundle parses a manifest.json without validating it, so that callers
// can report each bad artifact on its own. The raw bytes are returned for
// signature checks.
func ReadBundle(path string) (*Bundle, []byte, error) {
	raw, err := readDoc(path)
	if err != nil {
		return nil, nil, err
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, nil, errclass.ErrManifestInvalid.WithMessagef("parse %s: %v", path, err)
	}
	return &b, raw, nil
}

func writeDoc(path string, v any) error {
	data, err := jsonutil.CanonicalIndent(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return fsutil.AtomicWrite(path, data, 0644)
}

func readDoc(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrManifestNotFound.WithMessage(path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

// StringPtr returns nil for "" and &s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
