package packager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// ClaimOutput makes sure path is free for a new bundle directory or zip.
// An existing path is a name collision unless force is set, in which case
// the previous output is removed.
func ClaimOutput(path string, force bool) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !force {
		return errclass.ErrNameCollision.WithMessagef("%s already exists (use --force to replace it)", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove previous output %s: %w", path, err)
	}
	return nil
}

// MultiRoot is the combined root directory of a multi-pack bundle. Each
// pack gets one sub-bundle directory named after it.
type MultiRoot struct {
	dir   string
	names map[string]bool
	packs []manifest.SubPack
}

// NewMultiRoot creates dir. The directory must have been claimed with
// ClaimOutput.
func NewMultiRoot(dir string) (*MultiRoot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create multi-pack root: %w", err)
	}
	return &MultiRoot{dir: dir, names: map[string]bool{}}, nil
}

// AddSub reserves the sub-bundle directory for packID and returns its
// path. A sibling with the same name is a collision.
func (m *MultiRoot) AddSub(packID, displayName string) (string, error) {
	if err := pathutil.ValidateName(packID); err != nil {
		return "", err
	}
	if m.names[packID] {
		return "", errclass.ErrNameCollision.WithMessagef("sub-bundle %s already added", packID)
	}
	sub := filepath.Join(m.dir, packID)
	if _, err := os.Lstat(sub); err == nil {
		return "", errclass.ErrNameCollision.WithMessagef("sub-bundle directory %s already exists", sub)
	}
	m.names[packID] = true
	m.packs = append(m.packs, manifest.SubPack{
		DancePackID:  packID,
		DisplayName:  displayName,
		SubBundleDir: packID,
		ManifestPath: manifest.SubManifestPath(packID),
	})
	return sub, nil
}

// Packs returns the sub-bundles added so far, in order.
func (m *MultiRoot) Packs() []manifest.SubPack {
	return append([]manifest.SubPack(nil), m.packs...)
}

// Finish writes bundle_manifest.json into the root, signed with s when
// it is non-nil.
func (m *MultiRoot) Finish(setID, setDisplayName, tier string, s *signer.Signer) (*manifest.Wrapper, error) {
	w := manifest.NewWrapper(setID, setDisplayName, tier, m.Packs())
	if err := manifest.WriteWrapper(m.dir, w, s); err != nil {
		return nil, err
	}
	return w, nil
}
