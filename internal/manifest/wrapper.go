package manifest

import (
	"encoding/json"
	"path"
	"path/filepath"

	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// Wrapper is the bundle_manifest.json at the root of a multi-pack bundle.
type Wrapper struct {
	SchemaID       string    `json:"schema_id"`
	SchemaVersion  string    `json:"schema_version"`
	SetID          string    `json:"set_id"`
	SetDisplayName string    `json:"set_display_name"`
	Tier           string    `json:"tier"`
	PackCount      int       `json:"pack_count"`
	Packs          []SubPack `json:"packs"`

	// Signature is present only on wrappers written with a secret.
	Signature *signer.Signature `json:"signature,omitempty"`
}

// NewWrapper builds a wrapper over packs.
func NewWrapper(setID, displayName, tier string, packs []SubPack) *Wrapper {
	return &Wrapper{
		SchemaID:       WrapperSchemaID,
		SchemaVersion:  SchemaVersion,
		SetID:          setID,
		SetDisplayName: displayName,
		Tier:           tier,
		PackCount:      len(packs),
		Packs:          packs,
	}
}

// SubManifestPath is the wrapper-relative manifest path for a sub-bundle.
func SubManifestPath(subBundleDir string) string {
	return path.Join(subBundleDir, BundleFile)
}

// Validate checks the wrapper contract and path containment: every
// sub_bundle_dir is strictly inside the bundle root and every
// manifest_path strictly inside its sub_bundle_dir.
func (w *Wrapper) Validate() error {
	if w.SchemaID != WrapperSchemaID || w.SchemaVersion != SchemaVersion {
		return errclass.ErrManifestInvalid.WithMessagef("contract %s/%s, want %s/%s", w.SchemaID, w.SchemaVersion, WrapperSchemaID, SchemaVersion)
	}
	if w.SetID == "" {
		return errclass.ErrManifestInvalid.WithMessage("wrapper without set_id")
	}
	if w.PackCount != len(w.Packs) {
		return errclass.ErrManifestInvalid.WithMessagef("pack_count %d but %d packs listed", w.PackCount, len(w.Packs))
	}
	dirs := make(map[string]bool, len(w.Packs))
	for _, p := range w.Packs {
		dir, err := pathutil.CleanRel(p.SubBundleDir)
		if err != nil {
			return err
		}
		if dirs[dir] {
			return errclass.ErrNameCollision.WithMessagef("sub-bundle directory %s used twice", dir)
		}
		dirs[dir] = true

		mp, err := pathutil.CleanRel(p.ManifestPath)
		if err != nil {
			return err
		}
		if !pathutil.IsStrictlyWithin(filepath.FromSlash(dir), filepath.FromSlash(mp)) {
			return errclass.ErrPathEscape.WithMessagef("manifest_path %s is outside sub_bundle_dir %s", p.ManifestPath, p.SubBundleDir)
		}
	}
	return nil
}

// WriteWrapper validates w, signs it when s is non-nil and writes it to
// root/bundle_manifest.json.
func WriteWrapper(root string, w *Wrapper, s *signer.Signer) error {
	w.Signature = nil
	if err := w.Validate(); err != nil {
		return err
	}
	if s != nil {
		sig, err := s.Sign(w)
		if err != nil {
			return err
		}
		w.Signature = &sig
	}
	return writeDoc(filepath.Join(root, WrapperFile), w)
}

// ReadWrapper parses and validates a bundle_manifest.json. The raw bytes
// are returned for signature checks.
func ReadWrapper(p string) (*Wrapper, []byte, error) {
	raw, err := readDoc(p)
	if err != nil {
		return nil, nil, err
	}
	var w Wrapper
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, nil, errclass.ErrManifestInvalid.WithMessagef("parse %s: %v", p, err)
	}
	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	return &w, raw, nil
}
